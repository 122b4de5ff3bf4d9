package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"local-assistant/internal/constant"
	"local-assistant/internal/pkg/logger"
	"local-assistant/internal/repository/memory"
	"local-assistant/internal/repository/unitofwork"
	"local-assistant/pkg/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsumerService_RemembersLastSession(t *testing.T) {
	db := newTestDB(t)
	log := logger.NewNopLogger()
	factory := unitofwork.NewRepositoryFactory(db)

	bus := events.NewBus(nil)
	t.Cleanup(func() { bus.Close() })

	settings := NewSettingsService(factory, memory.NewSettingCache(time.Minute), log)
	sessions, err := NewSessionService(
		NewConversationService(factory, log),
		NewPublisherService(bus, constant.TopicSessionEvents, log),
		8,
		log,
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	notifier := &recordingNotifier{}
	consumer := NewConsumerService(bus, constant.TopicSessionEvents, settings, notifier, log)
	require.NoError(t, consumer.Consume(ctx))

	lastSession := func() string {
		id, _, _ := settings.LastSessionID(context.Background())
		return id
	}

	first, err := sessions.CreateSession(context.Background(), "First")
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return lastSession() == first.Id }, time.Second, 10*time.Millisecond)

	second, err := sessions.CreateSession(context.Background(), "Second")
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return lastSession() == second.Id }, time.Second, 10*time.Millisecond)

	_, err = sessions.SetActiveSession(context.Background(), first.Id)
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return lastSession() == first.Id }, time.Second, 10*time.Millisecond)

	require.NoError(t, sessions.DeleteSession(context.Background(), first.Id))
	assert.Eventually(t, func() bool {
		_, ok, err := settings.LastSessionID(context.Background())
		return err == nil && !ok
	}, time.Second, 10*time.Millisecond)

	assert.Eventually(t, func() bool {
		types := notifier.types()
		return len(types) == 4 && types[3] == constant.EventSessionDeleted
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{
		constant.EventSessionCreated,
		constant.EventSessionCreated,
		constant.EventSessionActivated,
		constant.EventSessionDeleted,
	}, notifier.types())
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []events.Event
}

func (n *recordingNotifier) Broadcast(evt events.Event) {
	n.mu.Lock()
	n.events = append(n.events, evt)
	n.mu.Unlock()
}

func (n *recordingNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.events))
	for _, e := range n.events {
		out = append(out, e.EventType())
	}
	return out
}

func TestPublisherService_EncodesEvent(t *testing.T) {
	bus := events.NewBus(nil)
	t.Cleanup(func() { bus.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	messages, err := bus.Subscribe(ctx, constant.TopicSessionEvents)
	require.NoError(t, err)

	publisher := NewPublisherService(bus, constant.TopicSessionEvents, logger.NewNopLogger())
	require.NoError(t, publisher.Publish(ctx, events.New(constant.EventSessionRenamed, map[string]interface{}{
		"session_id": "abc",
		"title":      "New",
	})))

	select {
	case msg := <-messages:
		evt, err := events.Decode(msg.Payload)
		require.NoError(t, err)
		msg.Ack()

		assert.Equal(t, constant.EventSessionRenamed, evt.Type)
		assert.Equal(t, "abc", evt.String("session_id"))
		assert.Equal(t, "New", evt.String("title"))
		assert.False(t, evt.OccurredAt.IsZero())
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}
