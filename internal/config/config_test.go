package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Store.Backend != BackendMemory {
		t.Errorf("expected memory backend, got %s", cfg.Store.Backend)
	}
	if cfg.HTTP.Addr == "" {
		t.Error("expected default http addr")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Store.Backend = BackendPostgres
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for postgres without dsn")
	}

	cfg = DefaultConfig()
	cfg.Store.Backend = "sqlite"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unknown backend")
	}

	cfg = DefaultConfig()
	cfg.Kafka.Enabled = true
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for kafka without brokers")
	}

	cfg = DefaultConfig()
	cfg.Log.Level = "loud"
	cfg.Query.SeriesConcurrency = 0
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected errors")
	}
	if !strings.Contains(err.Error(), "log") || !strings.Contains(err.Error(), "series_concurrency") {
		t.Errorf("expected both errors reported, got %v", err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
log:
  level: debug
store:
  backend: clickhouse
  clickhouse_dsn: clickhouse://localhost:9000/metrics
http:
  addr: ":9999"
  shutdown_timeout: 3s
kafka:
  enabled: true
  brokers: [localhost:9092]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("expected debug, got %s", cfg.Log.Level)
	}
	if cfg.Store.Backend != BackendClickHouse {
		t.Errorf("expected clickhouse, got %s", cfg.Store.Backend)
	}
	if cfg.HTTP.ShutdownTimeout != 3*time.Second {
		t.Errorf("expected 3s, got %s", cfg.HTTP.ShutdownTimeout)
	}
	if cfg.Kafka.Topic != "boostmetrics.records" {
		t.Errorf("expected default topic kept, got %s", cfg.Kafka.Topic)
	}
	if cfg.Query.MaxSeriesWindows != 366 {
		t.Errorf("expected default max_series_windows kept, got %d", cfg.Query.MaxSeriesWindows)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestRead_DefersValidation(t *testing.T) {
	t.Setenv("BOOSTMETRICS_STORE", BackendPostgres)
	t.Setenv("BOOSTMETRICS_POSTGRES_DSN", "")
	t.Setenv("POSTGRES_DSN", "")

	cfg, err := Read("")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if cfg.Store.Backend != BackendPostgres {
		t.Fatalf("expected postgres backend, got %s", cfg.Store.Backend)
	}
	if err := cfg.Validate(); err == nil {
		t.Error("expected Validate to reject postgres without a dsn")
	}
	if _, err := Load(""); err == nil {
		t.Error("expected Load to validate")
	}

	cfg.Store.Backend = BackendMemory
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate failed after override: %v", err)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"BOOSTMETRICS_LOG_LEVEL":          "warn",
		"BOOSTMETRICS_LOG_JSON":           "true",
		"BOOSTMETRICS_STORE":              "postgres",
		"POSTGRES_DSN":                    "postgres://fallback",
		"BOOSTMETRICS_KAFKA_BROKERS":      "a:9092, b:9092",
		"BOOSTMETRICS_SERIES_CONCURRENCY": "8",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := DefaultConfig()
	if err := cfg.ApplyEnv(lookup); err != nil {
		t.Fatalf("ApplyEnv failed: %v", err)
	}
	if cfg.Log.Level != "warn" || !cfg.Log.JSON {
		t.Errorf("unexpected log config %+v", cfg.Log)
	}
	if cfg.Store.Backend != BackendPostgres || cfg.Store.PostgresDSN != "postgres://fallback" {
		t.Errorf("unexpected store config %+v", cfg.Store)
	}
	if !cfg.Kafka.Enabled || len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "b:9092" {
		t.Errorf("unexpected kafka config %+v", cfg.Kafka)
	}
	if cfg.Query.SeriesConcurrency != 8 {
		t.Errorf("expected 8, got %d", cfg.Query.SeriesConcurrency)
	}

	env["BOOSTMETRICS_POSTGRES_DSN"] = "postgres://prefixed"
	if err := cfg.ApplyEnv(lookup); err != nil {
		t.Fatalf("ApplyEnv failed: %v", err)
	}
	if cfg.Store.PostgresDSN != "postgres://prefixed" {
		t.Errorf("prefixed dsn should win, got %s", cfg.Store.PostgresDSN)
	}

	env["BOOSTMETRICS_LOG_JSON"] = "maybe"
	if err := cfg.ApplyEnv(lookup); err == nil {
		t.Error("expected error for bad boolean")
	}
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "# comment\nBOOSTMETRICS_TEST_A=one\nexport BOOSTMETRICS_TEST_B=\"two\"\nBOOSTMETRICS_TEST_C=file\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	t.Setenv("BOOSTMETRICS_TEST_C", "env")
	t.Cleanup(func() {
		os.Unsetenv("BOOSTMETRICS_TEST_A")
		os.Unsetenv("BOOSTMETRICS_TEST_B")
	})

	if err := LoadEnvFile(path); err != nil {
		t.Fatalf("LoadEnvFile failed: %v", err)
	}
	if got := os.Getenv("BOOSTMETRICS_TEST_A"); got != "one" {
		t.Errorf("expected one, got %q", got)
	}
	if got := os.Getenv("BOOSTMETRICS_TEST_B"); got != "two" {
		t.Errorf("expected two, got %q", got)
	}
	if got := os.Getenv("BOOSTMETRICS_TEST_C"); got != "env" {
		t.Errorf("existing variable overridden: %q", got)
	}

	if err := LoadEnvFile(filepath.Join(t.TempDir(), "missing")); err != nil {
		t.Errorf("missing file should be ignored, got %v", err)
	}
}
