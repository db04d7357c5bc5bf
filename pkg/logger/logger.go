// Package logger builds the JSON slog loggers shared by the ingest, notify,
// seed, worker, and sweep daemons. Every record carries a "service" attribute
// so logs from the shared binary can be split by subcommand.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config describes a logger. The zero value logs at info level to stdout.
type Config struct {
	// Output receives the JSON records. Defaults to os.Stdout.
	Output io.Writer
	// Level is the minimum level that gets emitted.
	Level slog.Level
	// AddSource attaches the file:line of the call site to each record.
	AddSource bool
	// Service, when non-empty, is attached to every record as a
	// "service" attribute.
	Service string
}

// DefaultConfig returns an info-level stdout config.
func DefaultConfig() *Config {
	return &Config{
		Level:  slog.LevelInfo,
		Output: os.Stdout,
	}
}

// New builds a JSON logger from cfg. A nil cfg gets the defaults.
func New(cfg *Config) *slog.Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level:     cfg.Level,
		AddSource: cfg.AddSource,
	})

	log := slog.New(handler)
	if cfg.Service != "" {
		log = log.With(slog.String("service", cfg.Service))
	}
	return log
}

// NewDefault builds a logger with the default config.
func NewDefault() *slog.Logger {
	return New(DefaultConfig())
}

// NewWithLevel builds a stdout logger at the given level.
func NewWithLevel(level slog.Level) *slog.Logger {
	cfg := DefaultConfig()
	cfg.Level = level
	return New(cfg)
}

// NewService builds a stdout logger at the given level tagged with the
// service name.
func NewService(service string, level slog.Level) *slog.Logger {
	cfg := DefaultConfig()
	cfg.Level = level
	cfg.Service = service
	return New(cfg)
}

// ParseLevel maps a level name to a slog.Level, ignoring case. Anything
// unrecognized falls back to info so a typo in config never silences logs.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
