// Package observability provides logging setup and pipeline metrics.
package observability

import (
	"log/slog"
	"os"
	"strings"
)

// NewLogger builds a JSON slog.Logger at the given level ("debug", "info",
// "warn", "error"; anything else means info) and sets it as the default.
func NewLogger(level string) *slog.Logger {
	var lvl slog.Level

	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	return logger
}
