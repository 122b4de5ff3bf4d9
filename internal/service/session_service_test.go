package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"local-assistant/internal/entity"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func messageContents(s *entity.Session) []string {
	out := make([]string, 0, len(s.Messages))
	for _, m := range s.Messages {
		out = append(out, m.Content)
	}
	return out
}

func TestSessionService_CreateSession(t *testing.T) {
	f := newFixture(t, 8)
	ctx := context.Background()

	f.sessions.SetCurrentModel("tiny.gguf")

	created, err := f.sessions.CreateSession(ctx, "Test")
	require.NoError(t, err)
	assert.Equal(t, "Test", created.Title)
	assert.NotNil(t, created.Messages)
	assert.Empty(t, created.Messages)

	active, ok := f.sessions.ActiveSessionID()
	require.True(t, ok)
	assert.Equal(t, created.Id, active)

	// The second session does not steal the active pointer
	second, err := f.sessions.CreateSession(ctx, "Other")
	require.NoError(t, err)
	active, _ = f.sessions.ActiveSessionID()
	assert.Equal(t, created.Id, active)
	assert.NotEqual(t, created.Id, second.Id)

	conv, err := f.conversations.GetConversation(ctx, created.Id)
	require.NoError(t, err)
	require.NotNil(t, conv)
	assert.Equal(t, "tiny.gguf", conv.ModelName)
}

func TestSessionService_GetSessionReturnsCopy(t *testing.T) {
	f := newFixture(t, 8)
	ctx := context.Background()

	created, err := f.sessions.CreateSession(ctx, "Copy")
	require.NoError(t, err)
	_, err = f.sessions.AddMessage(ctx, created.Id, "user", "hello")
	require.NoError(t, err)

	got, err := f.sessions.GetSession(ctx, created.Id)
	require.NoError(t, err)
	got.Title = "mutated"
	got.Messages[0].Content = "mutated"

	again, err := f.sessions.GetSession(ctx, created.Id)
	require.NoError(t, err)
	assert.Equal(t, "Copy", again.Title)
	assert.Equal(t, []string{"hello"}, messageContents(again))
}

func TestSessionService_GetSessionNotFound(t *testing.T) {
	f := newFixture(t, 8)

	_, err := f.sessions.GetSession(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionService_EvictionIsTransparent(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	first, err := f.sessions.CreateSession(ctx, "First")
	require.NoError(t, err)
	for _, m := range []struct{ role, content string }{
		{"system", "be brief"},
		{"user", "hi"},
		{"assistant", "hello"},
		{"tool", "{}"},
	} {
		_, err := f.sessions.AddMessage(ctx, first.Id, m.role, m.content)
		require.NoError(t, err)
	}

	before, err := f.sessions.GetSession(ctx, first.Id)
	require.NoError(t, err)

	// Capacity 1: creating another session evicts the first
	_, err = f.sessions.CreateSession(ctx, "Second")
	require.NoError(t, err)
	assert.Equal(t, 1, f.sessions.CachedSessions())

	after, err := f.sessions.GetSession(ctx, first.Id)
	require.NoError(t, err)

	if diff := cmp.Diff(before, after); diff != "" {
		t.Errorf("rehydrated session differs (-before +after):\n%s", diff)
	}
}

func TestSessionService_AppendOrderingAgreesWithStore(t *testing.T) {
	f := newFixture(t, 8)
	ctx := context.Background()

	s, err := f.sessions.CreateSession(ctx, "Order")
	require.NoError(t, err)

	for _, c := range []string{"M1", "M2", "M3"} {
		_, err := f.sessions.AddMessage(ctx, s.Id, "user", c)
		require.NoError(t, err)
	}

	got, err := f.sessions.GetSession(ctx, s.Id)
	require.NoError(t, err)
	assert.Equal(t, []string{"M1", "M2", "M3"}, messageContents(got))

	stored, err := f.conversations.ListMessages(ctx, s.Id)
	require.NoError(t, err)
	require.Len(t, stored, 3)
	for i, m := range stored {
		assert.Equal(t, got.Messages[i].Content, m.Content)
		assert.True(t, got.Messages[i].Timestamp.Equal(m.CreatedAt))
	}
	assert.True(t, got.UpdatedAt.Equal(stored[2].CreatedAt))
}

func TestSessionService_AddMessageOnEvictedSession(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	first, err := f.sessions.CreateSession(ctx, "First")
	require.NoError(t, err)
	_, err = f.sessions.AddMessage(ctx, first.Id, "user", "one")
	require.NoError(t, err)

	_, err = f.sessions.CreateSession(ctx, "Second")
	require.NoError(t, err)

	_, err = f.sessions.AddMessage(ctx, first.Id, "assistant", "two")
	require.NoError(t, err)

	got, err := f.sessions.GetSession(ctx, first.Id)
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, messageContents(got))
}

func TestSessionService_AddMessageErrors(t *testing.T) {
	f := newFixture(t, 8)
	ctx := context.Background()

	s, err := f.sessions.CreateSession(ctx, "Errors")
	require.NoError(t, err)

	_, err = f.sessions.AddMessage(ctx, s.Id, "narrator", "x")
	assert.ErrorIs(t, err, ErrInvalidRole)

	_, err = f.sessions.AddMessage(ctx, "missing", "user", "x")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	got, err := f.sessions.GetSession(ctx, s.Id)
	require.NoError(t, err)
	assert.Empty(t, got.Messages)
}

func TestSessionService_ConcurrentAppends(t *testing.T) {
	f := newFixture(t, 8)
	ctx := context.Background()

	s, err := f.sessions.CreateSession(ctx, "Busy")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.sessions.AddMessage(ctx, s.Id, "user", fmt.Sprintf("m%d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := f.sessions.GetSession(ctx, s.Id)
	require.NoError(t, err)

	stored, err := f.conversations.ListMessages(ctx, s.Id)
	require.NoError(t, err)
	assert.Equal(t, contents(stored), messageContents(got))
	assert.Len(t, got.Messages, 10)
}

func TestSessionService_RenameToSameTitle(t *testing.T) {
	f := newFixture(t, 8)
	ctx := context.Background()

	s, err := f.sessions.CreateSession(ctx, "Same")
	require.NoError(t, err)

	require.NoError(t, f.sessions.RenameSession(ctx, s.Id, "Same"))

	got, err := f.sessions.GetSession(ctx, s.Id)
	require.NoError(t, err)
	assert.Equal(t, "Same", got.Title)
	assert.False(t, got.UpdatedAt.Before(s.UpdatedAt))

	require.NoError(t, f.sessions.RenameSession(ctx, s.Id, "Different"))
	got, err = f.sessions.GetSession(ctx, s.Id)
	require.NoError(t, err)
	assert.Equal(t, "Different", got.Title)

	assert.ErrorIs(t, f.sessions.RenameSession(ctx, "missing", "x"), ErrSessionNotFound)
}

func TestSessionService_ListSessionsReadsStore(t *testing.T) {
	f := newFixture(t, 8)
	ctx := context.Background()

	// A conversation the cache has never seen
	untouched, err := f.conversations.CreateConversation(ctx, "From disk", "")
	require.NoError(t, err)

	s, err := f.sessions.CreateSession(ctx, "Cached")
	require.NoError(t, err)
	_, err = f.sessions.AddMessage(ctx, s.Id, "user", "bump")
	require.NoError(t, err)

	list, err := f.sessions.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, s.Id, list[0].Id)
	assert.Equal(t, untouched.Id, list[1].Id)
}

func TestSessionService_DeleteSession(t *testing.T) {
	f := newFixture(t, 8)
	ctx := context.Background()

	s, err := f.sessions.CreateSession(ctx, "Gone")
	require.NoError(t, err)
	_, err = f.sessions.AddMessage(ctx, s.Id, "user", "bye")
	require.NoError(t, err)

	require.NoError(t, f.sessions.DeleteSession(ctx, s.Id))

	_, ok := f.sessions.ActiveSessionID()
	assert.False(t, ok)

	_, err = f.sessions.GetSession(ctx, s.Id)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	msgs, err := f.conversations.ListMessages(ctx, s.Id)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	_, err = f.sessions.GetActiveSession(ctx)
	assert.ErrorIs(t, err, ErrNoActiveSession)
}

func TestSessionService_ActiveSession(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	_, err := f.sessions.AddMessageToActive(ctx, "user", "nobody home")
	assert.ErrorIs(t, err, ErrNoActiveSession)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	first, err := f.sessions.CreateSession(ctx, "First")
	require.NoError(t, err)
	second, err := f.sessions.CreateSession(ctx, "Second")
	require.NoError(t, err)

	// first was evicted by second; activating it reloads it
	activated, err := f.sessions.SetActiveSession(ctx, first.Id)
	require.NoError(t, err)
	assert.Equal(t, first.Id, activated.Id)

	_, err = f.sessions.AddMessageToActive(ctx, "user", "to first")
	require.NoError(t, err)

	active, err := f.sessions.GetActiveSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.Id, active.Id)
	assert.Equal(t, []string{"to first"}, messageContents(active))

	_, err = f.sessions.SetActiveSession(ctx, "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	// Deleting a session that is not active keeps the pointer
	require.NoError(t, f.sessions.DeleteSession(ctx, second.Id))
	id, ok := f.sessions.ActiveSessionID()
	assert.True(t, ok)
	assert.Equal(t, first.Id, id)
}

func TestSessionService_PruneSession(t *testing.T) {
	f := newFixture(t, 8)
	ctx := context.Background()

	s, err := f.sessions.CreateSession(ctx, "Prune")
	require.NoError(t, err)
	for _, c := range []string{"a", "b", "c", "d"} {
		_, err := f.sessions.AddMessage(ctx, s.Id, "user", c)
		require.NoError(t, err)
	}

	deleted, err := f.sessions.PruneSession(ctx, s.Id, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	got, err := f.sessions.GetSession(ctx, s.Id)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "d"}, messageContents(got))

	_, err = f.sessions.PruneSession(ctx, "missing", 1)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
