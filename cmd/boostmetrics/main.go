// Command boostmetrics runs the metrics aggregation engine: the HTTP query
// API with optional Kafka ingestion, plus offline ingest, query and report
// commands.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
