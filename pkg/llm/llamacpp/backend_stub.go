//go:build !llamacpp

package llamacpp

import (
	"errors"

	"local-assistant/pkg/llm"
)

const Available = false

var ErrUnavailable = errors.New("native inference backend not compiled in; rebuild with -tags llamacpp")

type Backend struct{}

func New() *Backend {
	return &Backend{}
}

func (b *Backend) LoadModel(path string, params llm.ModelParams) (llm.Model, error) {
	return nil, ErrUnavailable
}
