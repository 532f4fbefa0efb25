package config

import (
	"errors"
	"fmt"

	"cloudboost-metrics/internal/logging"
)

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log: %w", err))
	}

	if err := c.Store.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("store: %w", err))
	}

	if c.HTTP.Addr == "" {
		errs = append(errs, errors.New("http: addr is required"))
	}
	if c.HTTP.MaxBodyBytes < 0 {
		errs = append(errs, errors.New("http: max_body_bytes must not be negative"))
	}

	if c.Query.SeriesConcurrency <= 0 {
		errs = append(errs, errors.New("query: series_concurrency must be positive"))
	}
	if c.Query.MaxSeriesWindows <= 0 {
		errs = append(errs, errors.New("query: max_series_windows must be positive"))
	}

	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			errs = append(errs, errors.New("kafka: brokers required when enabled"))
		}
		if c.Kafka.Topic == "" {
			errs = append(errs, errors.New("kafka: topic required when enabled"))
		}
		if c.Kafka.GroupID == "" {
			errs = append(errs, errors.New("kafka: group_id required when enabled"))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks the store configuration.
func (c *StoreConfig) Validate() error {
	switch c.Backend {
	case BackendMemory:
		return nil
	case BackendPostgres:
		if c.PostgresDSN == "" {
			return errors.New("postgres_dsn is required for the postgres backend")
		}
		return nil
	case BackendClickHouse:
		if c.ClickHouseDSN == "" {
			return errors.New("clickhouse_dsn is required for the clickhouse backend")
		}
		return nil
	}
	return fmt.Errorf("unknown backend %q (memory, postgres, clickhouse)", c.Backend)
}
