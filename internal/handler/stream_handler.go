package handler

import (
	"context"

	"local-assistant/internal/dto"
	"local-assistant/internal/pkg/logger"
	"local-assistant/internal/pkg/serverutils"
	"local-assistant/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// StreamHandler serves token streaming over a websocket. Each request frame
// is answered by "chunk" frames followed by a single "done" or "error" frame.
type StreamHandler struct {
	chatService service.IChatService
	logger      logger.ILogger
}

func NewStreamHandler(chatService service.IChatService, log logger.ILogger) *StreamHandler {
	return &StreamHandler{
		chatService: chatService,
		logger:      log,
	}
}

func (h *StreamHandler) RegisterRoutes(r fiber.Router) {
	r.Get("/llm/stream", RequireUpgrade, websocket.New(h.Stream))
}

// RequireUpgrade rejects plain HTTP requests on websocket routes.
func RequireUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

func (h *StreamHandler) Stream(c *websocket.Conn) {
	defer c.Close()

	for {
		var req dto.StreamRequest
		if err := c.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("STREAM", "Stream socket closed", map[string]interface{}{"error": err.Error()})
			}
			return
		}

		if err := serverutils.ValidateRequest(req); err != nil {
			if c.WriteJSON(dto.StreamFrame{Type: "error", Content: err.Error()}) != nil {
				return
			}
			continue
		}

		res, err := h.chatService.GenerateStream(context.Background(), req.Prompt, func(piece string) error {
			return c.WriteJSON(dto.StreamFrame{Type: "chunk", Content: piece})
		})
		if err != nil {
			h.logger.Warn("STREAM", "Stream generation failed", map[string]interface{}{"error": err.Error()})
			if c.WriteJSON(dto.StreamFrame{Type: "error", Content: err.Error()}) != nil {
				return
			}
			continue
		}

		done := dto.StreamFrame{
			Type: "done",
			Result: &dto.GenerateResponse{
				Text:            res.Text,
				TokensGenerated: res.TokensGenerated,
				Completed:       res.Completed,
			},
		}
		if err := c.WriteJSON(done); err != nil {
			return
		}
	}
}
