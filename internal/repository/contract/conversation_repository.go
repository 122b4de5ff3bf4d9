package contract

import (
	"context"
	"time"

	"local-assistant/internal/entity"
	"local-assistant/internal/repository/specification"
)

type ConversationRepository interface {
	Create(ctx context.Context, conversation *entity.Conversation) error
	// UpdateTitle and Touch report the number of rows changed; zero means the id is unknown
	UpdateTitle(ctx context.Context, id, title string, at time.Time) (int64, error)
	Touch(ctx context.Context, id string, at time.Time) (int64, error)
	Delete(ctx context.Context, id string) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Conversation, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Conversation, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
