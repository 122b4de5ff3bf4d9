package service

import (
	"context"
	"testing"

	"local-assistant/internal/entity"
	"local-assistant/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func appendText(t *testing.T, svc IConversationService, conversationId string, role llm.Role, content string) *entity.StoredMessage {
	t.Helper()
	stored, err := svc.AppendMessage(context.Background(), &entity.StoredMessage{
		ConversationId: conversationId,
		Role:           role,
		Content:        content,
	})
	require.NoError(t, err)
	return stored
}

func contents(msgs []*entity.StoredMessage) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Content)
	}
	return out
}

func TestConversationService_CreateAndGet(t *testing.T) {
	f := newFixture(t, 8)
	ctx := context.Background()

	created, err := f.conversations.CreateConversation(ctx, "Test", "tiny.gguf")
	require.NoError(t, err)
	assert.NotEmpty(t, created.Id)
	assert.Equal(t, created.CreatedAt, created.UpdatedAt)

	got, err := f.conversations.GetConversation(ctx, created.Id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Test", got.Title)
	assert.Equal(t, "tiny.gguf", got.ModelName)
	assert.True(t, created.CreatedAt.Equal(got.CreatedAt))

	missing, err := f.conversations.GetConversation(ctx, "does-not-exist")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestConversationService_AppendOrdering(t *testing.T) {
	f := newFixture(t, 8)
	ctx := context.Background()

	conv, err := f.conversations.CreateConversation(ctx, "Order", "")
	require.NoError(t, err)

	m1 := appendText(t, f.conversations, conv.Id, llm.RoleUser, "M1")
	appendText(t, f.conversations, conv.Id, llm.RoleAssistant, "M2")
	m3 := appendText(t, f.conversations, conv.Id, llm.RoleUser, "M3")
	assert.Less(t, m1.Id, m3.Id)

	msgs, err := f.conversations.ListMessages(ctx, conv.Id)
	require.NoError(t, err)
	assert.Equal(t, []string{"M1", "M2", "M3"}, contents(msgs))

	// Appending touches the conversation
	got, err := f.conversations.GetConversation(ctx, conv.Id)
	require.NoError(t, err)
	assert.True(t, got.UpdatedAt.Equal(m3.CreatedAt))

	last, err := f.conversations.LastMessages(ctx, conv.Id, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"M2", "M3"}, contents(last))

	count, err := f.conversations.CountMessages(ctx, conv.Id)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestConversationService_AppendErrors(t *testing.T) {
	f := newFixture(t, 8)
	ctx := context.Background()

	_, err := f.conversations.AppendMessage(ctx, &entity.StoredMessage{
		ConversationId: "missing",
		Role:           llm.RoleUser,
		Content:        "hello",
	})
	assert.ErrorIs(t, err, ErrSessionNotFound)

	conv, err := f.conversations.CreateConversation(ctx, "Roles", "")
	require.NoError(t, err)

	_, err = f.conversations.AppendMessage(ctx, &entity.StoredMessage{
		ConversationId: conv.Id,
		Role:           llm.Role("narrator"),
		Content:        "hello",
	})
	assert.ErrorIs(t, err, ErrInvalidRole)

	msgs, err := f.conversations.ListMessages(ctx, conv.Id)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestConversationService_ListNewestFirst(t *testing.T) {
	f := newFixture(t, 8)
	ctx := context.Background()

	first, err := f.conversations.CreateConversation(ctx, "first", "")
	require.NoError(t, err)
	second, err := f.conversations.CreateConversation(ctx, "second", "")
	require.NoError(t, err)

	// A new message moves the older conversation to the top
	appendText(t, f.conversations, first.Id, llm.RoleUser, "bump")

	list, err := f.conversations.ListConversations(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first.Id, list[0].Id)
	assert.Equal(t, second.Id, list[1].Id)

	page, err := f.conversations.ListConversations(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, second.Id, page[0].Id)

	count, err := f.conversations.CountConversations(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestConversationService_Prune(t *testing.T) {
	tests := []struct {
		name        string
		keep        int
		wantDeleted int64
		want        []string
	}{
		{name: "keep fewer than stored", keep: 2, wantDeleted: 3, want: []string{"m4", "m5"}},
		{name: "keep exactly stored", keep: 5, wantDeleted: 0, want: []string{"m1", "m2", "m3", "m4", "m5"}},
		{name: "keep more than stored", keep: 9, wantDeleted: 0, want: []string{"m1", "m2", "m3", "m4", "m5"}},
		{name: "keep none", keep: 0, wantDeleted: 5, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 8)
			ctx := context.Background()

			conv, err := f.conversations.CreateConversation(ctx, "Prune", "")
			require.NoError(t, err)
			for _, c := range []string{"m1", "m2", "m3", "m4", "m5"} {
				appendText(t, f.conversations, conv.Id, llm.RoleUser, c)
			}

			deleted, err := f.conversations.PruneMessages(ctx, conv.Id, tt.keep)
			require.NoError(t, err)
			assert.Equal(t, tt.wantDeleted, deleted)

			msgs, err := f.conversations.ListMessages(ctx, conv.Id)
			require.NoError(t, err)
			assert.Equal(t, tt.want, contents(msgs))
		})
	}
}

func TestConversationService_DeleteCascades(t *testing.T) {
	f := newFixture(t, 8)
	ctx := context.Background()

	conv, err := f.conversations.CreateConversation(ctx, "Doomed", "")
	require.NoError(t, err)
	appendText(t, f.conversations, conv.Id, llm.RoleUser, "one")
	appendText(t, f.conversations, conv.Id, llm.RoleAssistant, "two")

	require.NoError(t, f.conversations.DeleteConversation(ctx, conv.Id))

	msgs, err := f.conversations.ListMessages(ctx, conv.Id)
	require.NoError(t, err)
	assert.NotNil(t, msgs)
	assert.Empty(t, msgs)

	got, err := f.conversations.GetConversation(ctx, conv.Id)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestConversationService_TotalTokens(t *testing.T) {
	f := newFixture(t, 8)
	ctx := context.Background()

	conv, err := f.conversations.CreateConversation(ctx, "Tokens", "")
	require.NoError(t, err)

	total, err := f.conversations.TotalTokens(ctx, conv.Id)
	require.NoError(t, err)
	assert.Zero(t, total)

	for _, n := range []int{12, 30} {
		n := n
		_, err := f.conversations.AppendMessage(ctx, &entity.StoredMessage{
			ConversationId: conv.Id,
			Role:           llm.RoleAssistant,
			Content:        "reply",
			TokenCount:     &n,
		})
		require.NoError(t, err)
	}
	appendText(t, f.conversations, conv.Id, llm.RoleUser, "no count")

	total, err = f.conversations.TotalTokens(ctx, conv.Id)
	require.NoError(t, err)
	assert.Equal(t, int64(42), total)
}

func TestConversationService_UpdateTitle(t *testing.T) {
	f := newFixture(t, 8)
	ctx := context.Background()

	conv, err := f.conversations.CreateConversation(ctx, "Old", "")
	require.NoError(t, err)

	at, err := f.conversations.UpdateTitle(ctx, conv.Id, "New")
	require.NoError(t, err)
	assert.False(t, at.Before(conv.UpdatedAt))

	got, err := f.conversations.GetConversation(ctx, conv.Id)
	require.NoError(t, err)
	assert.Equal(t, "New", got.Title)

	_, err = f.conversations.UpdateTitle(ctx, "missing", "x")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
