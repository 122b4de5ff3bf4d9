package dto

import (
	"time"

	"local-assistant/internal/entity"
)

type CreateSessionRequest struct {
	Title string `json:"title" validate:"required,max=200"`
}

type RenameSessionRequest struct {
	Title string `json:"title" validate:"required,max=200"`
}

type AddMessageRequest struct {
	Role    string `json:"role" validate:"required"`
	Content string `json:"content" validate:"required"`
}

type ChatRequest struct {
	Content string `json:"content" validate:"required"`
}

type PromptRequest struct {
	Prompt string `json:"prompt" validate:"required"`
}

type PruneRequest struct {
	KeepLast int `json:"keep_last" validate:"gte=0"`
}

type SetActiveSessionRequest struct {
	SessionId string `json:"session_id" validate:"required"`
}

type PruneResponse struct {
	Deleted int64 `json:"deleted"`
}

type SessionResponse struct {
	Id           string           `json:"id"`
	Title        string           `json:"title"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
	Messages     []entity.Message `json:"messages"`
	ModelName    string           `json:"model_name"`
	MessageCount int              `json:"message_count"`
}

func NewSessionResponse(s *entity.Session) SessionResponse {
	modelName, _ := s.Metadata["model_name"].(string)
	return SessionResponse{
		Id:           s.Id,
		Title:        s.Title,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
		Messages:     s.Messages,
		ModelName:    modelName,
		MessageCount: len(s.Messages),
	}
}
