package main

import (
	"context"

	"local-assistant/internal/bootstrap"
)

// restoreState reloads the last model and reactivates the last session.
// Failures are logged; the process starts without them.
func restoreState(ctx context.Context, c *bootstrap.Container) {
	if err := c.LLMService.RestoreLastModel(ctx); err != nil {
		c.Logger.Warn("BOOT", "Failed to restore last model", map[string]interface{}{"error": err.Error()})
	}

	id, ok, err := c.SettingsService.LastSessionID(ctx)
	if err != nil || !ok {
		return
	}
	if _, err := c.SessionService.SetActiveSession(ctx, id); err != nil {
		c.Logger.Warn("BOOT", "Failed to restore last session", map[string]interface{}{
			"session_id": id,
			"error":      err.Error(),
		})
	}
}
