package logger

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
		ok   bool
	}{
		{"debug", slog.LevelDebug, true},
		{"INFO", slog.LevelInfo, true},
		{" warning ", slog.LevelWarn, true},
		{"Error", slog.LevelError, true},
		{"verbose", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseLevel(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestDefaultConfig_EnvOverride(t *testing.T) {
	t.Setenv(EnvLevel, "debug")
	assert.Equal(t, slog.LevelDebug, DefaultConfig().Level)

	t.Setenv(EnvLevel, "nonsense")
	assert.Equal(t, slog.LevelInfo, DefaultConfig().Level)
}

func TestNewLogger_LevelFiltering(t *testing.T) {
	for _, format := range []string{"text", "json"} {
		t.Run(format, func(t *testing.T) {
			var buf bytes.Buffer
			l := NewLogger(Config{Level: slog.LevelWarn, Format: format, Output: &buf})

			l.Info("hidden message")
			l.Warn("visible message", slog.String("engine", "mock"))

			out := buf.String()
			assert.NotContains(t, out, "hidden message")
			assert.Contains(t, out, "visible message")
			assert.Contains(t, out, "mock")
		})
	}
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	l := Component(NewLogger(Config{Level: slog.LevelInfo, Format: "json", Output: &buf}), "workqueue")
	l.Info("hello")
	assert.Contains(t, buf.String(), `"component":"workqueue"`)
}

func TestNewTestLogger(t *testing.T) {
	t.Setenv(TestLogEnv, "")
	quiet := NewTestLogger()
	assert.False(t, quiet.Enabled(context.Background(), slog.LevelWarn))

	t.Setenv(TestLogEnv, "debug")
	assert.True(t, NewTestLogger().Enabled(context.Background(), slog.LevelDebug))
}
