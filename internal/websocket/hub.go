package websocket

import (
	"context"
	"encoding/json"

	"local-assistant/internal/pkg/logger"
	"local-assistant/pkg/events"
)

const broadcastBuffer = 64

// Hub fans session events out to every connected UI client. All client
// bookkeeping happens on the Run goroutine.
type Hub struct {
	clients map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	count      chan chan int
	done       chan struct{}

	logger logger.ILogger
}

func NewHub(log logger.ILogger) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, broadcastBuffer),
		count:      make(chan chan int),
		done:       make(chan struct{}),
		logger:     log,
	}
}

// Run serves the hub until ctx is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.drop(client)
			}
			return

		case client := <-h.register:
			h.clients[client] = struct{}{}
			h.logger.Info("HUB", "Client registered", map[string]interface{}{"client_id": client.ID})

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
				h.logger.Info("HUB", "Client unregistered", map[string]interface{}{"client_id": client.ID})
			}

		case data := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.Send <- data:
				default:
					h.logger.Warn("HUB", "Client send buffer full, dropping client", map[string]interface{}{"client_id": client.ID})
					h.drop(client)
				}
			}

		case reply := <-h.count:
			reply <- len(h.clients)
		}
	}
}

func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	close(client.Send)
}

// Broadcast queues an event for all clients. It never blocks the caller.
func (h *Hub) Broadcast(evt events.Event) {
	data, err := json.Marshal(map[string]interface{}{
		"type": "session_event",
		"data": events.BaseEvent{
			Type:       evt.EventType(),
			Data:       evt.Payload(),
			OccurredAt: evt.Timestamp(),
		},
	})
	if err != nil {
		h.logger.Error("HUB", "Failed to encode event", map[string]interface{}{"error": err})
		return
	}

	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn("HUB", "Broadcast queue full, dropping event", map[string]interface{}{"type": evt.EventType()})
	}
}

// Clients reports the number of registered clients.
func (h *Hub) Clients(ctx context.Context) (int, error) {
	reply := make(chan int, 1)
	select {
	case h.count <- reply:
		return <-reply, nil
	case <-h.done:
		return 0, context.Canceled
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}
