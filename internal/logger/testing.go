package logger

import (
	"io"
	"log/slog"
	"os"
)

// TestLogEnv names the variable that turns on logging in tests, holding a
// level such as "debug". Output is discarded when it is unset.
const TestLogEnv = "PLAYQUEUE_TEST_LOG"

// NewTestLogger returns the logger used by package tests.
func NewTestLogger() *slog.Logger {
	raw := os.Getenv(TestLogEnv)
	if raw == "" {
		return NewLogger(Config{Level: slog.LevelError, Format: "text", Output: io.Discard})
	}
	level, ok := ParseLevel(raw)
	if !ok {
		level = slog.LevelDebug
	}
	return NewLogger(Config{Level: level, Format: "text", Output: os.Stderr})
}
