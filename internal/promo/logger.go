package promo

import (
	"context"
	"log/slog"
)

// logAction logs a structured engine event. Codes are passed through
// maskCode by the caller; nothing here ever logs a full code body.
func (e *Engine) logAction(ctx context.Context, level slog.Level, action, result string, attrs ...slog.Attr) {
	allAttrs := []slog.Attr{
		slog.String("component", "promo_engine"),
		slog.String("action", action),
	}
	allAttrs = append(allAttrs, attrs...)
	e.logger.LogAttrs(ctx, level, result, allAttrs...)
}

func (e *Engine) logInfo(ctx context.Context, action, result string, attrs ...slog.Attr) {
	e.logAction(ctx, slog.LevelInfo, action, result, attrs...)
}

func (e *Engine) logWarn(ctx context.Context, action, result string, attrs ...slog.Attr) {
	e.logAction(ctx, slog.LevelWarn, action, result, attrs...)
}

func (e *Engine) logError(ctx context.Context, action, result string, attrs ...slog.Attr) {
	e.logAction(ctx, slog.LevelError, action, result, attrs...)
}
