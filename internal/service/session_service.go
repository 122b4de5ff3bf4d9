package service

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"local-assistant/internal/constant"
	"local-assistant/internal/entity"
	"local-assistant/internal/mapper"
	"local-assistant/internal/pkg/logger"
	"local-assistant/internal/repository/memory"
	"local-assistant/pkg/events"
	"local-assistant/pkg/llm"

	"go.opentelemetry.io/otel/attribute"
)

// ISessionService keeps one canonical in-memory copy per session on top of
// the conversation store. Writes reach the store before the cache.
type ISessionService interface {
	CreateSession(ctx context.Context, title string) (*entity.Session, error)
	GetSession(ctx context.Context, id string) (*entity.Session, error)
	AddMessage(ctx context.Context, sessionId, role, content string) (*entity.Message, error)
	// AppendMessage persists a fully built message; ConversationId is taken from sessionId
	AppendMessage(ctx context.Context, sessionId string, msg *entity.StoredMessage) (*entity.Message, error)
	AddMessageToActive(ctx context.Context, role, content string) (*entity.Message, error)
	ListSessions(ctx context.Context) ([]entity.SessionSummary, error)
	DeleteSession(ctx context.Context, id string) error
	RenameSession(ctx context.Context, id, title string) error
	PruneSession(ctx context.Context, id string, keepLast int) (int64, error)

	SetActiveSession(ctx context.Context, id string) (*entity.Session, error)
	GetActiveSession(ctx context.Context) (*entity.Session, error)
	ActiveSessionID() (string, bool)

	SetCurrentModel(name string)
	CurrentModel() string
	CachedSessions() int
}

type sessionService struct {
	conversationService IConversationService
	publisherService    IPublisherService
	mapper              *mapper.ConversationMapper
	logger              logger.ILogger

	// mu guards the cache, the active pointer and the model tag
	mu           sync.RWMutex
	cache        *memory.SessionCache
	activeID     string
	currentModel string

	// writeMu orders store writes, and store reads that fill the cache,
	// with their cache mutation
	writeMu sync.Mutex
}

func NewSessionService(
	conversationService IConversationService,
	publisherService IPublisherService,
	capacity int,
	logger logger.ILogger,
) (ISessionService, error) {
	s := &sessionService{
		conversationService: conversationService,
		publisherService:    publisherService,
		mapper:              mapper.NewConversationMapper(),
		logger:              logger,
	}

	cache, err := memory.NewSessionCache(capacity, func(id string) {
		s.logger.Debug("SESSION", "Session evicted from cache", map[string]interface{}{"id": id})
	})
	if err != nil {
		return nil, err
	}
	s.cache = cache

	return s, nil
}

func (s *sessionService) CreateSession(ctx context.Context, title string) (*entity.Session, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	conversation, err := s.conversationService.CreateConversation(ctx, title, s.CurrentModel())
	if err != nil {
		return nil, err
	}

	session := s.mapper.ToSession(conversation, nil)

	s.mu.Lock()
	s.cache.Save(session)
	if s.activeID == "" {
		s.activeID = session.Id
	}
	s.mu.Unlock()

	s.publish(ctx, constant.EventSessionCreated, session.Id, map[string]interface{}{"title": title})

	s.logger.Info("SESSION", "Session created", map[string]interface{}{
		"id":    session.Id,
		"title": title,
	})
	return session.Clone(), nil
}

func (s *sessionService) GetSession(ctx context.Context, id string) (*entity.Session, error) {
	s.mu.RLock()
	cached, ok := s.cache.Get(id)
	if ok {
		clone := cached.Clone()
		s.mu.RUnlock()
		return clone, nil
	}
	s.mu.RUnlock()

	// A store read must not land in the cache after a newer append or delete
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return s.rehydrate(ctx, id)
}

// rehydrate loads the session from the store into the cache and returns a
// copy. Callers hold writeMu; the cache lock is only taken for the insert.
func (s *sessionService) rehydrate(ctx context.Context, id string) (_ *entity.Session, err error) {
	s.mu.RLock()
	if cached, ok := s.cache.Get(id); ok {
		clone := cached.Clone()
		s.mu.RUnlock()
		return clone, nil
	}
	s.mu.RUnlock()

	ctx, span := startSpan(ctx, "session.rehydrate", attribute.String("session.id", id))
	defer func() { finishSpan(span, err) }()

	conversation, messages, err := s.conversationService.LoadConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	if conversation == nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	loaded := s.mapper.ToSession(conversation, messages)

	s.mu.Lock()
	s.cache.Save(loaded)
	clone := loaded.Clone()
	s.mu.Unlock()

	s.logger.Debug("SESSION", "Session rehydrated", map[string]interface{}{
		"id":       id,
		"messages": len(loaded.Messages),
	})
	return clone, nil
}

func (s *sessionService) AddMessage(ctx context.Context, sessionId, role, content string) (*entity.Message, error) {
	parsed, err := llm.ParseRole(role)
	if err != nil {
		return nil, err
	}

	return s.AppendMessage(ctx, sessionId, &entity.StoredMessage{
		Role:    parsed,
		Content: content,
	})
}

func (s *sessionService) AppendMessage(ctx context.Context, sessionId string, msg *entity.StoredMessage) (*entity.Message, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	toStore := *msg
	toStore.ConversationId = sessionId

	stored, err := s.conversationService.AppendMessage(ctx, &toStore)
	if err != nil {
		return nil, err
	}

	message := s.mapper.StoredToMessage(stored)

	s.mu.Lock()
	cached, ok := s.cache.Get(sessionId)
	if ok && !containsMessage(cached, message.Id) {
		cached.AddMessage(message)
	}
	s.mu.Unlock()

	if !ok {
		// The store already holds the new message and writeMu keeps other
		// loads out, so the reload includes it
		if _, err := s.rehydrate(ctx, sessionId); err != nil {
			return nil, err
		}
	}

	s.publish(ctx, constant.EventMessageAppended, sessionId, map[string]interface{}{
		"message_id": message.Id,
		"role":       message.Role.String(),
	})
	return &message, nil
}

func containsMessage(session *entity.Session, id string) bool {
	for i := len(session.Messages) - 1; i >= 0; i-- {
		if session.Messages[i].Id == id {
			return true
		}
	}
	return false
}

func (s *sessionService) AddMessageToActive(ctx context.Context, role, content string) (*entity.Message, error) {
	id, ok := s.ActiveSessionID()
	if !ok {
		return nil, ErrNoActiveSession
	}
	return s.AddMessage(ctx, id, role, content)
}

func (s *sessionService) ListSessions(ctx context.Context) ([]entity.SessionSummary, error) {
	conversations, err := s.conversationService.ListConversations(ctx, -1, 0)
	if err != nil {
		return nil, err
	}

	summaries := make([]entity.SessionSummary, 0, len(conversations))
	for _, c := range conversations {
		summaries = append(summaries, s.mapper.ToSummary(c))
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt)
	})
	return summaries, nil
}

func (s *sessionService) DeleteSession(ctx context.Context, id string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.conversationService.DeleteConversation(ctx, id); err != nil {
		return err
	}

	s.mu.Lock()
	s.cache.Delete(id)
	if s.activeID == id {
		s.activeID = ""
	}
	s.mu.Unlock()

	s.publish(ctx, constant.EventSessionDeleted, id, nil)

	s.logger.Info("SESSION", "Session deleted", map[string]interface{}{"id": id})
	return nil
}

func (s *sessionService) RenameSession(ctx context.Context, id, title string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	updatedAt, err := s.conversationService.UpdateTitle(ctx, id, title)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if cached, ok := s.cache.Get(id); ok {
		cached.Title = title
		cached.UpdatedAt = updatedAt
	}
	s.mu.Unlock()

	s.publish(ctx, constant.EventSessionRenamed, id, map[string]interface{}{"title": title})
	return nil
}

// PruneSession keeps the keepLast most recent messages. The cached copy is
// dropped and rebuilt from the store on next access.
func (s *sessionService) PruneSession(ctx context.Context, id string, keepLast int) (int64, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	conversation, err := s.conversationService.GetConversation(ctx, id)
	if err != nil {
		return 0, err
	}
	if conversation == nil {
		return 0, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	deleted, err := s.conversationService.PruneMessages(ctx, id, keepLast)
	if err != nil {
		return 0, err
	}

	if deleted > 0 {
		s.mu.Lock()
		s.cache.Delete(id)
		s.mu.Unlock()
	}
	return deleted, nil
}

// SetActiveSession loads the session if it is not cached.
func (s *sessionService) SetActiveSession(ctx context.Context, id string) (*entity.Session, error) {
	s.writeMu.Lock()
	session, err := s.rehydrate(ctx, id)
	if err != nil {
		s.writeMu.Unlock()
		return nil, err
	}

	s.mu.Lock()
	s.activeID = id
	s.mu.Unlock()
	s.writeMu.Unlock()

	s.publish(ctx, constant.EventSessionActivated, id, nil)
	return session, nil
}

func (s *sessionService) GetActiveSession(ctx context.Context) (*entity.Session, error) {
	id, ok := s.ActiveSessionID()
	if !ok {
		return nil, ErrNoActiveSession
	}
	return s.GetSession(ctx, id)
}

func (s *sessionService) ActiveSessionID() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeID, s.activeID != ""
}

func (s *sessionService) SetCurrentModel(name string) {
	s.mu.Lock()
	s.currentModel = name
	s.mu.Unlock()
}

func (s *sessionService) CurrentModel() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentModel
}

func (s *sessionService) CachedSessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cache.Len()
}

func (s *sessionService) publish(ctx context.Context, eventType, sessionId string, data map[string]interface{}) {
	if s.publisherService == nil {
		return
	}

	payload := map[string]interface{}{"session_id": sessionId}
	for k, v := range data {
		payload[k] = v
	}

	// Events are advisory; the store write already succeeded
	if err := s.publisherService.Publish(ctx, events.New(eventType, payload)); err != nil {
		s.logger.Warn("SESSION", "Failed to publish session event", map[string]interface{}{
			"type":  eventType,
			"id":    sessionId,
			"error": err.Error(),
		})
	}
}
