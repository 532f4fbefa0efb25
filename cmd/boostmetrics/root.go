package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"cloudboost-metrics/internal/config"
	"cloudboost-metrics/internal/logging"
)

var (
	cfgFile       string
	envFile       string
	logLevel      string
	storeBackend  string
	postgresDSN   string
	clickhouseDSN string
	metricsFile   string
	migrate       bool

	// cfg is resolved in PersistentPreRunE before any subcommand runs.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "boostmetrics",
	Short: "Metrics aggregation engine for business KPIs",
	Long: `boostmetrics computes revenue, lead, messaging, campaign and invoice
KPIs over an append-only record store and serves them over HTTP.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadEnvFile(envFile); err != nil {
			return err
		}
		// Flags override file and environment, so validation waits for them.
		loaded, err := config.Read(cfgFile)
		if err != nil {
			return err
		}

		flags := cmd.Flags()
		if flags.Changed("log-level") {
			loaded.Log.Level = logLevel
		}
		if flags.Changed("store") {
			loaded.Store.Backend = storeBackend
		}
		if flags.Changed("postgres-dsn") {
			loaded.Store.PostgresDSN = postgresDSN
		}
		if flags.Changed("clickhouse-dsn") {
			loaded.Store.ClickHouseDSN = clickhouseDSN
		}
		if flags.Changed("metrics-file") {
			loaded.Metrics.DefinitionsFile = metricsFile
		}
		if flags.Changed("migrate") {
			loaded.Store.Migrate = migrate
		}
		if err := loaded.Validate(); err != nil {
			return fmt.Errorf("validate config: %w", err)
		}

		level, err := logging.ParseLevel(loaded.Log.Level)
		if err != nil {
			return err
		}
		logging.Init(level, loaded.Log.JSON)
		cfg = loaded
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "YAML config file")
	pf.StringVar(&envFile, "env-file", ".env", "KEY=VALUE file loaded before the environment is read")
	pf.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	pf.StringVar(&storeBackend, "store", config.BackendMemory, "record store backend (memory, postgres, clickhouse)")
	pf.StringVar(&postgresDSN, "postgres-dsn", "", "PostgreSQL connection string")
	pf.StringVar(&clickhouseDSN, "clickhouse-dsn", "", "ClickHouse connection string")
	pf.StringVar(&metricsFile, "metrics-file", "", "YAML file with additional metric definitions")
	pf.BoolVar(&migrate, "migrate", false, "apply schema migrations before starting")

	rootCmd.AddCommand(serveCmd, ingestCmd, queryCmd, reportCmd)
}
