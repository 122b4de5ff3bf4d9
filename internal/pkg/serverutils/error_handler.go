package serverutils

import (
	"errors"

	"local-assistant/internal/pkg/logger"
	"local-assistant/internal/service"
	"local-assistant/pkg/llm"
	"local-assistant/pkg/llm/engine"
	"local-assistant/pkg/modelfs"

	"github.com/gofiber/fiber/v2"
)

// StatusFor maps a domain error to its HTTP status.
func StatusFor(err error) int {
	var fiberErr *fiber.Error
	var validationErr *ValidationError

	switch {
	case errors.As(err, &fiberErr):
		return fiberErr.Code
	case errors.As(err, &validationErr),
		errors.Is(err, llm.ErrInvalidRole),
		errors.Is(err, modelfs.ErrInvalidName),
		errors.Is(err, engine.ErrContextOverflow):
		return fiber.StatusBadRequest
	case errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, service.ErrModelFileAbsent),
		errors.Is(err, engine.ErrModelNotFound),
		errors.Is(err, modelfs.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, engine.ErrNotLoaded):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

// ErrorHandlerMiddleware turns errors returned by handlers into the error envelope.
func ErrorHandlerMiddleware(log logger.ILogger) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		status := StatusFor(err)
		if status >= fiber.StatusInternalServerError {
			log.Error("HTTP", "Request failed", map[string]interface{}{
				"method": ctx.Method(),
				"path":   ctx.Path(),
				"error":  err,
			})
		}

		return ctx.Status(status).JSON(ErrorResponse(status, err.Error()))
	}
}
