package logger

import (
	"io"
	"log/slog"
	"os"
)

// Config holds logger settings
type Config struct {
	Level  slog.Level
	Format string // "json" or "text"
}

// DefaultConfig returns JSON logging at info level.
func DefaultConfig() Config {
	return Config{
		Level:  slog.LevelInfo,
		Format: "json",
	}
}

// FromFlags builds a Config from the debug switch and format name used in
// the service configuration.
func FromFlags(debug bool, format string) Config {
	cfg := DefaultConfig()
	if debug {
		cfg.Level = slog.LevelDebug
	}
	if format != "" {
		cfg.Format = format
	}
	return cfg
}

// New creates a logger writing to stdout and installs it as the default logger.
func New(cfg Config) *slog.Logger {
	logger := NewWithWriter(cfg, os.Stdout)
	slog.SetDefault(logger)
	return logger
}

// NewWithWriter creates a logger writing to w.
func NewWithWriter(cfg Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.Level,
	}

	var handler slog.Handler
	switch cfg.Format {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler)
}
