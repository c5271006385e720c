// Package config loads the TOML configuration file.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/tejashwikalptaru/playqueue/internal/domain"
	"github.com/tejashwikalptaru/playqueue/internal/logger"
)

//go:embed config.example.toml
var exampleConf []byte

// Config holds the application configuration.
type Config struct {
	Database DatabaseConfig `toml:"database"`
	Engine   EngineConfig   `toml:"engine"`
	Progress ProgressConfig `toml:"progress"`
	Log      LogConfig      `toml:"log"`
}

// DatabaseConfig holds the library database settings.
type DatabaseConfig struct {
	Path        string   `toml:"path"`
	QueueSize   int      `toml:"queue_size"`
	BusyTimeout Duration `toml:"busy_timeout"`
}

// EngineConfig holds the playback engine settings.
type EngineConfig struct {
	Preferred string `toml:"preferred"`
}

// ProgressConfig holds the progress reporting settings for background operations.
type ProgressConfig struct {
	Epsilon     float64  `toml:"epsilon"`
	MinInterval Duration `toml:"min_interval"`
}

// LogConfig holds the logging settings.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Duration is a time.Duration written as a string like "5s" in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// LoadConfig reads the configuration file at path and validates it.
// Keys missing from the file keep their default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if _, err := toml.Decode(string(data), config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadOrDefault loads the configuration at path, or returns the defaults if
// the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}
	config, err := LoadConfig(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}
	return config, err
}

// DefaultConfig returns the configuration of the embedded example file.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded config: %v", err))
	}
	return &config
}

// CreateConfigFile writes the example configuration to path.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks the configured values.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return domain.NewValidationError("database.path", c.Database.Path, "must not be empty")
	}
	if c.Database.QueueSize < 1 {
		return domain.NewValidationError("database.queue_size", c.Database.QueueSize, "must be at least 1")
	}
	if c.Database.BusyTimeout.Duration < 0 {
		return domain.NewValidationError("database.busy_timeout", c.Database.BusyTimeout, "must not be negative")
	}
	if c.Progress.Epsilon <= 0 || c.Progress.Epsilon >= 1 {
		return domain.NewValidationError("progress.epsilon", c.Progress.Epsilon, "must be between 0 and 1")
	}
	if c.Progress.MinInterval.Duration < 0 {
		return domain.NewValidationError("progress.min_interval", c.Progress.MinInterval, "must not be negative")
	}
	if _, ok := logger.ParseLevel(c.Log.Level); !ok {
		return domain.NewValidationError("log.level", c.Log.Level, "must be DEBUG, INFO, WARN or ERROR")
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return domain.NewValidationError("log.format", c.Log.Format, `must be "text" or "json"`)
	}
	return nil
}

// Logger returns the logger configuration. PLAYQUEUE_LOG_LEVEL overrides the
// configured level.
func (c *Config) Logger() logger.Config {
	level, _ := logger.ParseLevel(c.Log.Level)
	if lvl, ok := logger.ParseLevel(os.Getenv(logger.EnvLevel)); ok {
		level = lvl
	}
	return logger.Config{
		Level:  level,
		Format: c.Log.Format,
	}
}

// LogValue implements slog.LogValuer.
func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("database", c.Database.Path),
		slog.String("engine", c.Engine.Preferred),
		slog.String("log_level", c.Log.Level),
	)
}
