package entity

import (
	"maps"
	"time"
)

// contextWindowSize is the number of trailing messages ContextWindow returns.
const contextWindowSize = 20

type Message struct {
	Id        string                 `json:"id"`
	Role      MessageRole            `json:"role"`
	Content   string                 `json:"content"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata"`
}

// Session is the in-memory projection of a Conversation and its messages.
type Session struct {
	Id        string                 `json:"id"`
	Title     string                 `json:"title"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
	Messages  []Message              `json:"messages"`
	Metadata  map[string]interface{} `json:"metadata"`
}

type SessionSummary struct {
	Id        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewSession(id, title string, createdAt, updatedAt time.Time) *Session {
	return &Session{
		Id:        id,
		Title:     title,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
		Messages:  []Message{},
		Metadata:  map[string]interface{}{},
	}
}

// AddMessage appends and moves UpdatedAt to the message timestamp.
func (s *Session) AddMessage(m Message) {
	s.Messages = append(s.Messages, m)
	s.UpdatedAt = m.Timestamp
}

func (s *Session) ContextWindow() []Message {
	if len(s.Messages) <= contextWindowSize {
		return s.Messages
	}
	return s.Messages[len(s.Messages)-contextWindowSize:]
}

func (s *Session) ClearMessages(now time.Time) {
	s.Messages = []Message{}
	s.UpdatedAt = now
}

func (s *Session) Summary() SessionSummary {
	return SessionSummary{
		Id:        s.Id,
		Title:     s.Title,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

// Clone deep-copies the session so callers never share the cached copy.
func (s *Session) Clone() *Session {
	c := *s
	c.Messages = make([]Message, len(s.Messages))
	for i, m := range s.Messages {
		m.Metadata = cloneMap(m.Metadata)
		c.Messages[i] = m
	}
	c.Metadata = cloneMap(s.Metadata)
	return &c
}

func cloneMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return map[string]interface{}{}
	}
	return maps.Clone(m)
}
