package mapper

import (
	"maps"

	"local-assistant/internal/entity"
	"local-assistant/internal/model"
	"local-assistant/pkg/llm"

	"gorm.io/datatypes"
)

type ConversationMapper struct{}

func NewConversationMapper() *ConversationMapper {
	return &ConversationMapper{}
}

// Conversation Mappers

func (m *ConversationMapper) ConversationToEntity(c *model.Conversation) *entity.Conversation {
	if c == nil {
		return nil
	}

	return &entity.Conversation{
		Id:        c.Id,
		Title:     c.Title,
		ModelName: c.ModelName,
		CreatedAt: c.CreatedAt.UTC(),
		UpdatedAt: c.UpdatedAt.UTC(),
	}
}

func (m *ConversationMapper) ConversationToModel(c *entity.Conversation) *model.Conversation {
	if c == nil {
		return nil
	}

	return &model.Conversation{
		Id:        c.Id,
		Title:     c.Title,
		ModelName: c.ModelName,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// Message Mappers

func (m *ConversationMapper) MessageToEntity(msg *model.Message) *entity.StoredMessage {
	if msg == nil {
		return nil
	}

	// Rows are constrained to known roles; anything else predates the constraint and reads as user
	role, err := llm.ParseRole(msg.Role)
	if err != nil {
		role = llm.RoleUser
	}

	return &entity.StoredMessage{
		Id:             msg.Id,
		ConversationId: msg.ConversationId,
		Role:           role,
		Content:        msg.Content,
		TokenCount:     msg.Tokens,
		Metadata:       map[string]interface{}(msg.Metadata),
		CreatedAt:      msg.CreatedAt.UTC(),
	}
}

func (m *ConversationMapper) MessagesToEntities(msgs []*model.Message) []*entity.StoredMessage {
	res := make([]*entity.StoredMessage, 0, len(msgs))
	for _, msg := range msgs {
		res = append(res, m.MessageToEntity(msg))
	}
	return res
}

func (m *ConversationMapper) MessageToModel(msg *entity.StoredMessage) *model.Message {
	if msg == nil {
		return nil
	}

	var metadata datatypes.JSONMap
	if len(msg.Metadata) > 0 {
		metadata = datatypes.JSONMap(maps.Clone(msg.Metadata))
	}

	return &model.Message{
		Id:             msg.Id,
		ConversationId: msg.ConversationId,
		Role:           msg.Role.String(),
		Content:        msg.Content,
		Tokens:         msg.TokenCount,
		Metadata:       metadata,
		CreatedAt:      msg.CreatedAt,
	}
}

// Session Mappers

// StoredToMessage converts at the cache boundary. The in-memory id is the
// stored sequence id so a rehydrated session matches the one it replaced.
func (m *ConversationMapper) StoredToMessage(msg *entity.StoredMessage) entity.Message {
	metadata := map[string]interface{}{}
	if msg.Metadata != nil {
		metadata = maps.Clone(msg.Metadata)
	}

	return entity.Message{
		Id:        FormatMessageId(msg.Id),
		Role:      msg.Role,
		Content:   msg.Content,
		Timestamp: msg.CreatedAt,
		Metadata:  metadata,
	}
}

func (m *ConversationMapper) ToSession(c *entity.Conversation, msgs []*entity.StoredMessage) *entity.Session {
	s := entity.NewSession(c.Id, c.Title, c.CreatedAt, c.UpdatedAt)
	s.Metadata["model_name"] = c.ModelName
	for _, msg := range msgs {
		s.Messages = append(s.Messages, m.StoredToMessage(msg))
	}
	return s
}

func (m *ConversationMapper) ToSummary(c *entity.Conversation) entity.SessionSummary {
	return entity.SessionSummary{
		Id:        c.Id,
		Title:     c.Title,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}
