// Package logging builds the slog loggers used across codequiz.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config holds logger settings.
type Config struct {
	// Level is one of debug, info, warn, error. Unknown values mean info.
	Level string

	// Format is json or text. Unknown values mean text.
	Format string

	// Output defaults to stderr so stdout stays free for quiz output.
	Output io.Writer

	AddSource bool
}

// DefaultConfig logs at info level in text format to stderr.
func DefaultConfig() Config {
	return Config{Level: "info", Format: "text", Output: os.Stderr}
}

// New creates a logger from cfg.
func New(cfg Config) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{
		Level:     ParseLevel(cfg.Level),
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = slog.NewJSONHandler(out, opts)
	default:
		handler = slog.NewTextHandler(out, opts)
	}
	return slog.New(handler).With("service", "codequiz")
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// Discard returns a logger that drops everything. Used in tests.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
