// Package logger provides structured logging configuration using log/slog.
// Text output is rendered by charmbracelet/log, which implements slog.Handler.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

// EnvLevel is the environment variable that overrides the configured log level.
const EnvLevel = "PLAYQUEUE_LOG_LEVEL"

// Config holds logger configuration.
type Config struct {
	Level  slog.Level
	Format string // "text" or "json"

	// Output defaults to os.Stderr
	Output io.Writer
}

// NewLogger creates a configured slog.Logger.
func NewLogger(cfg Config) *slog.Logger {
	w := cfg.Output
	if w == nil {
		w = os.Stderr
	}

	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:     cfg.Level,
			AddSource: cfg.Level <= slog.LevelDebug,
		}))
	}

	handler := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		// Report the caller for debug output only
		ReportCaller: cfg.Level <= slog.LevelDebug,
		Level:        log.Level(cfg.Level),
	})
	return slog.New(handler)
}

// ParseLevel converts DEBUG, INFO, WARN, WARNING or ERROR to a slog.Level.
// The second result is false for anything else.
func ParseLevel(s string) (slog.Level, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug, true
	case "INFO":
		return slog.LevelInfo, true
	case "WARN", "WARNING":
		return slog.LevelWarn, true
	case "ERROR":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}

// DefaultConfig returns the default logger configuration.
// Parses the PLAYQUEUE_LOG_LEVEL environment variable to set the log level.
// Default: INFO
func DefaultConfig() Config {
	level := slog.LevelInfo
	if lvl, ok := ParseLevel(os.Getenv(EnvLevel)); ok {
		level = lvl
	}

	return Config{
		Level:  level,
		Format: "text",
	}
}

// Component returns a child logger tagged with the component name.
func Component(l *slog.Logger, name string) *slog.Logger {
	if l == nil {
		l = slog.Default()
	}
	return l.With(slog.String("component", name))
}
