package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"cloudboost-metrics/internal/domain"
	"cloudboost-metrics/internal/idhash"
	"cloudboost-metrics/internal/ingestion"
	"cloudboost-metrics/internal/logging"
	"cloudboost-metrics/internal/observability"
	"cloudboost-metrics/internal/reporting"
)

var ingestBatchSize int

var ingestCmd = &cobra.Command{
	Use:   "ingest FILE...",
	Short: "Append records from JSON-lines or Parquet files",
	Long: `Append records from JSON-lines files, one record per line, or from Parquet
files written by "report --export-parquet". Records without an id get one derived
from the file name and line or row number, so ingesting a file twice stores
its records once.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.close()

		m := ingestion.NewManager(a.service, "file")
		var total ingestion.Result
		for _, path := range args {
			res, err := ingestPath(ctx, m, path, ingestBatchSize)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d read, %d appended, %d invalid, %d duplicate\n",
				path, res.Read, res.Appended, res.Invalid, res.Duplicates)
			total.Read += res.Read
			total.Appended += res.Appended
		}
		if len(args) > 1 {
			fmt.Fprintf(cmd.OutOrStdout(), "total: %d read, %d appended\n", total.Read, total.Appended)
		}
		return nil
	},
}

// ingestPath appends path as Parquet when it has a .parquet extension and as
// JSON lines otherwise.
func ingestPath(ctx context.Context, m *ingestion.Manager, path string, batchSize int) (ingestion.Result, error) {
	if strings.EqualFold(filepath.Ext(path), ".parquet") {
		return ingestParquet(ctx, m, path, batchSize)
	}
	return m.IngestFile(ctx, path, batchSize)
}

// ingestParquet appends the rows of a Parquet record export. Rows whose
// payload does not decode count as invalid.
func ingestParquet(ctx context.Context, m *ingestion.Manager, path string, batchSize int) (ingestion.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return ingestion.Result{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	rows, err := reporting.ReadRecordsParquet(f)
	if err != nil {
		return ingestion.Result{}, fmt.Errorf("read %s: %w", path, err)
	}

	name := filepath.Base(path)
	log := logging.Component("ingest")
	records := make([]*domain.Record, 0, len(rows))
	var invalid int
	for i, row := range rows {
		rec, err := reporting.RowToRecord(row)
		if err != nil {
			invalid++
			observability.RecordRejected("file", "decode")
			log.Warn("row rejected", "file", name, "row", i+1, "error", err)
			continue
		}
		if rec.ID == "" {
			rec.ID = idhash.RecordID(name, strconv.Itoa(i+1))
		}
		records = append(records, rec)
	}

	res, err := m.IngestRecords(ctx, records, batchSize)
	res.Read += invalid
	res.Invalid += invalid
	return res, err
}

func init() {
	ingestCmd.Flags().IntVar(&ingestBatchSize, "batch-size", ingestion.DefaultBatchSize, "records per append batch")
}
