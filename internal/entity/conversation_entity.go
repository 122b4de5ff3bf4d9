package entity

import (
	"time"

	"local-assistant/pkg/llm"
)

type MessageRole = llm.Role

type Conversation struct {
	Id        string    `json:"id"`
	Title     string    `json:"title"`
	ModelName string    `json:"model_name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StoredMessage is immutable once inserted. Id is zero until the store assigns it.
type StoredMessage struct {
	Id             int64                  `json:"id"`
	ConversationId string                 `json:"conversation_id"`
	Role           MessageRole            `json:"role"`
	Content        string                 `json:"content"`
	TokenCount     *int                   `json:"token_count,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
}
