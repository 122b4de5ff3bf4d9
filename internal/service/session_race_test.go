package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"local-assistant/internal/entity"
	"local-assistant/internal/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pausingConversations holds the first LoadConversation after it has read
// the store, and holds every later one until proceed is closed.
type pausingConversations struct {
	IConversationService

	mu    sync.Mutex
	loads int

	paused  chan struct{}
	release chan struct{}
	proceed chan struct{}
}

func newPausingConversations(inner IConversationService) *pausingConversations {
	return &pausingConversations{
		IConversationService: inner,
		paused:               make(chan struct{}),
		release:              make(chan struct{}),
		proceed:              make(chan struct{}),
	}
}

func (p *pausingConversations) LoadConversation(ctx context.Context, id string) (*entity.Conversation, []*entity.StoredMessage, error) {
	p.mu.Lock()
	p.loads++
	n := p.loads
	p.mu.Unlock()

	if n > 1 {
		<-p.proceed
	}

	conversation, messages, err := p.IConversationService.LoadConversation(ctx, id)
	if n == 1 {
		close(p.paused)
		<-p.release
	}
	return conversation, messages, err
}

// evictedPair creates two sessions in a single-slot cache so the first is
// only in the store.
func evictedPair(t *testing.T) (*fixture, *pausingConversations, ISessionService, *entity.Session) {
	t.Helper()
	f := newFixture(t, 1)
	pausing := newPausingConversations(f.conversations)

	sessions, err := NewSessionService(pausing, nil, 1, logger.NewNopLogger())
	require.NoError(t, err)

	first, err := sessions.CreateSession(context.Background(), "first")
	require.NoError(t, err)
	_, err = sessions.CreateSession(context.Background(), "second")
	require.NoError(t, err)
	require.Equal(t, 1, sessions.CachedSessions())

	return f, pausing, sessions, first
}

func TestSessionService_SlowMissDoesNotHideAppend(t *testing.T) {
	f, pausing, sessions, first := evictedPair(t)
	ctx := context.Background()

	read := make(chan error, 1)
	go func() {
		_, err := sessions.GetSession(ctx, first.Id)
		read <- err
	}()
	<-pausing.paused

	appended := make(chan error, 1)
	go func() {
		_, err := sessions.AddMessage(ctx, first.Id, "user", "M")
		appended <- err
	}()

	time.Sleep(50 * time.Millisecond)
	close(pausing.release)
	require.NoError(t, <-read)
	close(pausing.proceed)
	require.NoError(t, <-appended)

	stored, err := f.conversations.ListMessages(ctx, first.Id)
	require.NoError(t, err)
	require.Len(t, stored, 1)

	cached, err := sessions.GetSession(ctx, first.Id)
	require.NoError(t, err)
	assert.Equal(t, []string{"M"}, messageContents(cached))
}

func TestSessionService_SlowMissDoesNotResurrectDeleted(t *testing.T) {
	_, pausing, sessions, first := evictedPair(t)
	ctx := context.Background()

	read := make(chan error, 1)
	go func() {
		_, err := sessions.GetSession(ctx, first.Id)
		read <- err
	}()
	<-pausing.paused

	deleted := make(chan error, 1)
	go func() {
		deleted <- sessions.DeleteSession(ctx, first.Id)
	}()

	time.Sleep(50 * time.Millisecond)
	close(pausing.release)
	require.NoError(t, <-read)
	close(pausing.proceed)
	require.NoError(t, <-deleted)

	_, err := sessions.GetSession(ctx, first.Id)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
