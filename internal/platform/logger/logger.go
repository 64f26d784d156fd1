// Package logger constructs the process-wide slog.Logger. Services and
// handlers receive it by injection; nothing reads the slog default logger.
package logger

import (
	"log/slog"
	"os"

	"siva/internal/platform/config"
)

// New builds a structured logger from config. Unknown formats fall back to
// text, unknown levels to info.
func New(cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
