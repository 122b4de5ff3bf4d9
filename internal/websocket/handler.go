package websocket

import (
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// ServeWs registers the connection with the hub and blocks until the peer leaves.
func ServeWs(hub *Hub, c *websocket.Conn) {
	client := &Client{
		ID:   uuid.NewString(),
		Hub:  hub,
		Conn: c,
		Send: make(chan []byte, sendBuffer),
	}
	select {
	case client.Hub.register <- client:
	case <-client.Hub.done:
		c.Close()
		return
	}

	go client.writePump()
	client.readPump()
}
