// Package logging builds the process-wide structured logger. Both the
// api and the index worker log JSON lines to stdout tagged with their
// service name, so pipeline events from either binary correlate in one
// stream.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

var levelNames = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// NewJSONLogger returns a JSON slog.Logger carrying a service attribute
// on every record. Unknown level strings fall back to info.
func NewJSONLogger(service, level string) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(level),
	})
	return slog.New(handler).With("service", service)
}

func parseLevel(level string) slog.Level {
	if parsed, ok := levelNames[strings.ToLower(strings.TrimSpace(level))]; ok {
		return parsed
	}
	return slog.LevelInfo
}
