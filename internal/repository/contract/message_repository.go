package contract

import (
	"context"

	"local-assistant/internal/entity"
	"local-assistant/internal/repository/specification"
)

type MessageRepository interface {
	Create(ctx context.Context, message *entity.StoredMessage) error
	DeleteByConversationId(ctx context.Context, conversationId string) (int64, error)
	// DeleteAllButLatest keeps the keep most recent messages of a conversation
	DeleteAllButLatest(ctx context.Context, conversationId string, keep int) (int64, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.StoredMessage, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
	SumTokens(ctx context.Context, conversationId string) (int64, error)
}
