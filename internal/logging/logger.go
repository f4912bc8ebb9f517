// Package logging configures structured logging with log/slog.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Setup builds the process logger from level and format settings.
//
// Level values: "debug", "info", "warn", "error" (default: "info").
// Format values: "text", "json" (default: "text"). Use "json" in
// production for machine parsing.
func Setup(level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
