package config

import (
	"log/slog"
	"os"
)

// BuildLogger creates the process-wide slog.Logger from the resolved
// config's log_level and log_format fields — no CLI-flag override layer,
// this service has no flags, only config/env.
func BuildLogger(cfg Config) *slog.Logger {
	level := slog.LevelInfo

	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}
