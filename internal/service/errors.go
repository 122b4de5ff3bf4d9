package service

import (
	"errors"
	"fmt"

	"local-assistant/pkg/llm"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrNoActiveSession = fmt.Errorf("%w: no active session", ErrSessionNotFound)
	ErrInvalidRole     = llm.ErrInvalidRole
	ErrModelFileAbsent = errors.New("model file does not exist")
)

// StoreError wraps any persistence failure with the operation that hit it.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func storeError(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}
