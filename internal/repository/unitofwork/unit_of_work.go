package unitofwork

import (
	"context"

	"local-assistant/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	ConversationRepository() contract.ConversationRepository
	MessageRepository() contract.MessageRepository
	SettingRepository() contract.SettingRepository
}
