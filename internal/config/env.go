package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "BOOSTMETRICS_"

// ApplyEnv overrides fields from BOOSTMETRICS_* variables read through
// lookup. POSTGRES_DSN and CLICKHOUSE_DSN are honored as fallbacks.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	get := func(name string) (string, bool) {
		v, ok := lookup(EnvPrefix + name)
		if !ok || strings.TrimSpace(v) == "" {
			return "", false
		}
		return strings.TrimSpace(v), true
	}

	if v, ok := get("LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	if v, ok := get("LOG_JSON"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sLOG_JSON: %w", EnvPrefix, err)
		}
		c.Log.JSON = b
	}

	if v, ok := get("STORE"); ok {
		c.Store.Backend = v
	}
	if v, ok := lookup("POSTGRES_DSN"); ok && v != "" {
		c.Store.PostgresDSN = v
	}
	if v, ok := get("POSTGRES_DSN"); ok {
		c.Store.PostgresDSN = v
	}
	if v, ok := lookup("CLICKHOUSE_DSN"); ok && v != "" {
		c.Store.ClickHouseDSN = v
	}
	if v, ok := get("CLICKHOUSE_DSN"); ok {
		c.Store.ClickHouseDSN = v
	}

	if v, ok := get("HTTP_ADDR"); ok {
		c.HTTP.Addr = v
	}
	if v, ok := get("SHUTDOWN_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sSHUTDOWN_TIMEOUT: %w", EnvPrefix, err)
		}
		c.HTTP.ShutdownTimeout = d
	}

	if v, ok := get("SERIES_CONCURRENCY"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sSERIES_CONCURRENCY: %w", EnvPrefix, err)
		}
		c.Query.SeriesConcurrency = n
	}

	if v, ok := get("KAFKA_BROKERS"); ok {
		c.Kafka.Brokers = splitList(v)
		c.Kafka.Enabled = len(c.Kafka.Brokers) > 0
	}
	if v, ok := get("KAFKA_TOPIC"); ok {
		c.Kafka.Topic = v
	}
	if v, ok := get("KAFKA_GROUP"); ok {
		c.Kafka.GroupID = v
	}

	if v, ok := get("METRICS_FILE"); ok {
		c.Metrics.DefinitionsFile = v
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// LoadEnvFile sets variables from a KEY=VALUE file without overriding ones
// already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open env file: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(strings.TrimPrefix(key, "export "))
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		if _, set := os.LookupEnv(key); !set {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("set %s: %w", key, err)
			}
		}
	}
	return sc.Err()
}
