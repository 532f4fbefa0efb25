// Package config loads service configuration from YAML, environment
// variables and a .env file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	BackendMemory     = "memory"
	BackendPostgres   = "postgres"
	BackendClickHouse = "clickhouse"
)

// Config is the complete service configuration.
type Config struct {
	// Log configures structured logging.
	Log LogConfig `yaml:"log"`

	// Store selects and configures the record store.
	Store StoreConfig `yaml:"store"`

	// HTTP configures the API server.
	HTTP HTTPConfig `yaml:"http"`

	// Query tunes the query service.
	Query QueryConfig `yaml:"query"`

	// Kafka configures the optional record consumer.
	Kafka KafkaConfig `yaml:"kafka"`

	// Metrics points at additional metric definitions.
	Metrics MetricsConfig `yaml:"metrics"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// JSON switches the handler from text to JSON.
	JSON bool `yaml:"json"`
}

// StoreConfig selects the record store.
type StoreConfig struct {
	// Backend is memory, postgres or clickhouse.
	Backend string `yaml:"backend"`

	PostgresDSN   string `yaml:"postgres_dsn"`
	ClickHouseDSN string `yaml:"clickhouse_dsn"`

	// Migrate applies schema migrations on startup.
	Migrate bool `yaml:"migrate"`
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
}

// QueryConfig tunes the query service.
type QueryConfig struct {
	// SeriesConcurrency bounds concurrent window computations per series.
	SeriesConcurrency int `yaml:"series_concurrency"`

	// MaxSeriesWindows caps windows per series request.
	MaxSeriesWindows int `yaml:"max_series_windows"`
}

// KafkaConfig configures the record consumer.
type KafkaConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Brokers    []string      `yaml:"brokers"`
	Topic      string        `yaml:"topic"`
	GroupID    string        `yaml:"group_id"`
	MaxBackoff time.Duration `yaml:"max_backoff"`
}

// MetricsConfig points at additional metric definitions.
type MetricsConfig struct {
	// DefinitionsFile is an optional YAML file registered after the
	// built-in metrics.
	DefinitionsFile string `yaml:"definitions_file"`
}

// Load is Read followed by Validate.
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Read reads path over the defaults, then applies environment overrides.
// An empty path skips the file. The result is not validated, so callers can
// layer command-line flags on top first.
func Read(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, fmt.Errorf("apply environment: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level: "info",
		},
		Store: StoreConfig{
			Backend: BackendMemory,
		},
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxBodyBytes:    4 << 20,
		},
		Query: QueryConfig{
			SeriesConcurrency: 4,
			MaxSeriesWindows:  366,
		},
		Kafka: KafkaConfig{
			Topic:      "boostmetrics.records",
			GroupID:    "boostmetrics",
			MaxBackoff: 10 * time.Second,
		},
	}
}
