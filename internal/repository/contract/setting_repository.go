package contract

import (
	"context"

	"local-assistant/internal/entity"
)

type SettingRepository interface {
	// FindByKey returns nil when the key is absent
	FindByKey(ctx context.Context, key string) (*entity.Setting, error)
	Upsert(ctx context.Context, setting *entity.Setting) error
	Delete(ctx context.Context, key string) error
	FindAll(ctx context.Context) ([]*entity.Setting, error)
}
