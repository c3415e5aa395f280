package contract

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Log formats supported by NewLogger.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// ParseLogLevel maps a level name to a slog.Level.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("invalid log level %q (expected debug/info/warn/error)", s)
}

// NewLogger builds a structured logger writing to w.
func NewLogger(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if format == LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// NopLogger discards everything. Components fall back to it when no logger is injected.
func NopLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
