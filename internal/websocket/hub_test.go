package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"local-assistant/internal/pkg/logger"
	"local-assistant/pkg/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func runHub(t *testing.T) (*Hub, context.CancelFunc, chan struct{}) {
	t.Helper()
	hub := NewHub(logger.NewNopLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()
	return hub, cancel, done
}

func receive(t *testing.T, ch <-chan []byte) []byte {
	t.Helper()
	select {
	case data, ok := <-ch:
		require.True(t, ok, "send channel closed")
		return data
	case <-time.After(time.Second):
		t.Fatal("nothing received")
		return nil
	}
}

func TestHub_BroadcastReachesAllClients(t *testing.T) {
	hub, cancel, done := runHub(t)

	a := &Client{ID: "a", Hub: hub, Send: make(chan []byte, 4)}
	b := &Client{ID: "b", Hub: hub, Send: make(chan []byte, 4)}
	hub.register <- a
	hub.register <- b

	n, err := hub.Clients(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	hub.Broadcast(events.New("session.created", map[string]interface{}{"session_id": "s1"}))

	for _, c := range []*Client{a, b} {
		var frame struct {
			Type string           `json:"type"`
			Data events.BaseEvent `json:"data"`
		}
		require.NoError(t, json.Unmarshal(receive(t, c.Send), &frame))
		assert.Equal(t, "session_event", frame.Type)
		assert.Equal(t, "session.created", frame.Data.Type)
		assert.Equal(t, "s1", frame.Data.String("session_id"))
	}

	cancel()
	<-done

	_, ok := <-a.Send
	assert.False(t, ok)
}

func TestHub_DropsSlowClient(t *testing.T) {
	hub, cancel, done := runHub(t)
	defer func() {
		cancel()
		<-done
	}()

	slow := &Client{ID: "slow", Hub: hub, Send: make(chan []byte)}
	hub.register <- slow

	hub.Broadcast(events.New("session.deleted", nil))

	assert.Eventually(t, func() bool {
		n, err := hub.Clients(context.Background())
		return err == nil && n == 0
	}, time.Second, 10*time.Millisecond)

	_, ok := <-slow.Send
	assert.False(t, ok)
}

func TestHub_UnregisterClosesSend(t *testing.T) {
	hub, cancel, done := runHub(t)
	defer func() {
		cancel()
		<-done
	}()

	c := &Client{ID: "c", Hub: hub, Send: make(chan []byte, 1)}
	hub.register <- c
	hub.unregister <- c

	_, ok := <-c.Send
	assert.False(t, ok)

	// A second unregister is harmless
	hub.unregister <- c
}
