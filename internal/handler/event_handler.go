package handler

import (
	internalWS "local-assistant/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// EventHandler pushes session lifecycle events to UI clients.
type EventHandler struct {
	hub *internalWS.Hub
}

func NewEventHandler(hub *internalWS.Hub) *EventHandler {
	return &EventHandler{hub: hub}
}

func (h *EventHandler) RegisterRoutes(r fiber.Router) {
	r.Get("/events", RequireUpgrade, websocket.New(func(c *websocket.Conn) {
		internalWS.ServeWs(h.hub, c)
	}))
}
