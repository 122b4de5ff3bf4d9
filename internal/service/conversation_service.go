package service

import (
	"context"
	"fmt"
	"slices"
	"time"

	"local-assistant/internal/entity"
	"local-assistant/internal/pkg/logger"
	"local-assistant/internal/repository/specification"
	"local-assistant/internal/repository/unitofwork"

	"github.com/google/uuid"
)

// IConversationService is the typed persistence facade over conversations and their messages.
type IConversationService interface {
	CreateConversation(ctx context.Context, title, modelName string) (*entity.Conversation, error)
	// GetConversation returns nil without error when the id is unknown
	GetConversation(ctx context.Context, id string) (*entity.Conversation, error)
	// LoadConversation reads a conversation and all its messages in one transaction
	LoadConversation(ctx context.Context, id string) (*entity.Conversation, []*entity.StoredMessage, error)
	ListConversations(ctx context.Context, limit, offset int) ([]*entity.Conversation, error)
	CountConversations(ctx context.Context) (int64, error)
	UpdateTitle(ctx context.Context, id, title string) (time.Time, error)
	Touch(ctx context.Context, id string) error
	DeleteConversation(ctx context.Context, id string) error

	AppendMessage(ctx context.Context, msg *entity.StoredMessage) (*entity.StoredMessage, error)
	ListMessages(ctx context.Context, conversationId string) ([]*entity.StoredMessage, error)
	LastMessages(ctx context.Context, conversationId string, n int) ([]*entity.StoredMessage, error)
	PruneMessages(ctx context.Context, conversationId string, keepLast int) (int64, error)
	CountMessages(ctx context.Context, conversationId string) (int64, error)
	TotalTokens(ctx context.Context, conversationId string) (int64, error)
}

type conversationService struct {
	uowFactory unitofwork.RepositoryFactory
	logger     logger.ILogger
}

func NewConversationService(uowFactory unitofwork.RepositoryFactory, logger logger.ILogger) IConversationService {
	return &conversationService{
		uowFactory: uowFactory,
		logger:     logger,
	}
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func (s *conversationService) CreateConversation(ctx context.Context, title, modelName string) (*entity.Conversation, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	ts := now()
	conversation := &entity.Conversation{
		Id:        uuid.NewString(),
		Title:     title,
		ModelName: modelName,
		CreatedAt: ts,
		UpdatedAt: ts,
	}

	if err := uow.ConversationRepository().Create(ctx, conversation); err != nil {
		return nil, storeError("create conversation", err)
	}

	s.logger.Debug("CONVERSATION", "Conversation created", map[string]interface{}{
		"id":    conversation.Id,
		"model": modelName,
	})
	return conversation, nil
}

func (s *conversationService) GetConversation(ctx context.Context, id string) (*entity.Conversation, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	conversation, err := uow.ConversationRepository().FindOne(ctx, specification.ByID{ID: id})
	if err != nil {
		return nil, storeError("get conversation", err)
	}
	return conversation, nil
}

func (s *conversationService) LoadConversation(ctx context.Context, id string) (*entity.Conversation, []*entity.StoredMessage, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return nil, nil, storeError("load conversation", err)
	}
	defer uow.Rollback()

	conversation, err := uow.ConversationRepository().FindOne(ctx, specification.ByID{ID: id})
	if err != nil {
		return nil, nil, storeError("load conversation", err)
	}
	if conversation == nil {
		return nil, nil, nil
	}

	messages, err := uow.MessageRepository().FindAll(ctx,
		specification.ByConversationID{ConversationID: id},
		specification.Chronological{},
	)
	if err != nil {
		return nil, nil, storeError("load messages", err)
	}

	if err := uow.Commit(); err != nil {
		return nil, nil, storeError("load conversation", err)
	}
	return conversation, messages, nil
}

func (s *conversationService) ListConversations(ctx context.Context, limit, offset int) ([]*entity.Conversation, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	conversations, err := uow.ConversationRepository().FindAll(ctx,
		specification.MostRecentlyUpdated{},
		specification.Pagination{Limit: limit, Offset: offset},
	)
	if err != nil {
		return nil, storeError("list conversations", err)
	}
	return conversations, nil
}

func (s *conversationService) CountConversations(ctx context.Context) (int64, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	count, err := uow.ConversationRepository().Count(ctx)
	if err != nil {
		return 0, storeError("count conversations", err)
	}
	return count, nil
}

func (s *conversationService) UpdateTitle(ctx context.Context, id, title string) (time.Time, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	ts := now()
	rows, err := uow.ConversationRepository().UpdateTitle(ctx, id, title, ts)
	if err != nil {
		return time.Time{}, storeError("update title", err)
	}
	if rows == 0 {
		return time.Time{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return ts, nil
}

func (s *conversationService) Touch(ctx context.Context, id string) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	if _, err := uow.ConversationRepository().Touch(ctx, id, now()); err != nil {
		return storeError("touch conversation", err)
	}
	return nil
}

func (s *conversationService) DeleteConversation(ctx context.Context, id string) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return storeError("delete conversation", err)
	}
	defer uow.Rollback()

	deleted, err := uow.MessageRepository().DeleteByConversationId(ctx, id)
	if err != nil {
		return storeError("delete messages", err)
	}
	if err := uow.ConversationRepository().Delete(ctx, id); err != nil {
		return storeError("delete conversation", err)
	}

	if err := uow.Commit(); err != nil {
		return storeError("delete conversation", err)
	}

	s.logger.Debug("CONVERSATION", "Conversation deleted", map[string]interface{}{
		"id":               id,
		"messages_deleted": deleted,
	})
	return nil
}

// AppendMessage inserts the message and touches its conversation in one transaction.
func (s *conversationService) AppendMessage(ctx context.Context, msg *entity.StoredMessage) (*entity.StoredMessage, error) {
	if !msg.Role.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, msg.Role)
	}

	stored := *msg
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now()
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return nil, storeError("append message", err)
	}
	defer uow.Rollback()

	rows, err := uow.ConversationRepository().Touch(ctx, stored.ConversationId, stored.CreatedAt)
	if err != nil {
		return nil, storeError("touch conversation", err)
	}
	if rows == 0 {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, stored.ConversationId)
	}

	if err := uow.MessageRepository().Create(ctx, &stored); err != nil {
		return nil, storeError("append message", err)
	}

	if err := uow.Commit(); err != nil {
		return nil, storeError("append message", err)
	}
	return &stored, nil
}

func (s *conversationService) ListMessages(ctx context.Context, conversationId string) ([]*entity.StoredMessage, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	messages, err := uow.MessageRepository().FindAll(ctx,
		specification.ByConversationID{ConversationID: conversationId},
		specification.Chronological{},
	)
	if err != nil {
		return nil, storeError("list messages", err)
	}
	return messages, nil
}

func (s *conversationService) LastMessages(ctx context.Context, conversationId string, n int) ([]*entity.StoredMessage, error) {
	if n <= 0 {
		return []*entity.StoredMessage{}, nil
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)

	messages, err := uow.MessageRepository().FindAll(ctx,
		specification.ByConversationID{ConversationID: conversationId},
		specification.Chronological{Desc: true},
		specification.Pagination{Limit: n},
	)
	if err != nil {
		return nil, storeError("last messages", err)
	}

	slices.Reverse(messages)
	return messages, nil
}

func (s *conversationService) PruneMessages(ctx context.Context, conversationId string, keepLast int) (int64, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	deleted, err := uow.MessageRepository().DeleteAllButLatest(ctx, conversationId, max(keepLast, 0))
	if err != nil {
		return 0, storeError("prune messages", err)
	}

	if deleted > 0 {
		s.logger.Info("CONVERSATION", "Pruned messages", map[string]interface{}{
			"id":      conversationId,
			"kept":    keepLast,
			"deleted": deleted,
		})
	}
	return deleted, nil
}

func (s *conversationService) CountMessages(ctx context.Context, conversationId string) (int64, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	count, err := uow.MessageRepository().Count(ctx, specification.ByConversationID{ConversationID: conversationId})
	if err != nil {
		return 0, storeError("count messages", err)
	}
	return count, nil
}

func (s *conversationService) TotalTokens(ctx context.Context, conversationId string) (int64, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	total, err := uow.MessageRepository().SumTokens(ctx, conversationId)
	if err != nil {
		return 0, storeError("total tokens", err)
	}
	return total, nil
}
