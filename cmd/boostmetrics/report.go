package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"cloudboost-metrics/internal/reporting"
	"cloudboost-metrics/internal/storage"
)

var (
	reportFrom    string
	reportTo      string
	reportFilter  []string
	reportMetrics []string
	reportTitle   string
	reportFormat  string
	reportOutput  string
	reportParquet string
	reportPreload []string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate a KPI report comparing a window with the previous one",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		window, filter, err := parseWindowFlags(reportFrom, reportTo, reportFilter)
		if err != nil {
			return err
		}

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.close()
		if err := a.preload(ctx, reportPreload); err != nil {
			return err
		}

		report, err := reporting.NewGenerator(a.service).Generate(ctx, reporting.Request{
			Title:     reportTitle,
			Window:    window,
			Filter:    filter,
			MetricIDs: reportMetrics,
		})
		if err != nil {
			return err
		}

		var rendered string
		switch strings.ToLower(reportFormat) {
		case "md", "markdown":
			rendered = reporting.RenderMarkdown(report)
		case "csv":
			rendered = reporting.RenderCSV(report)
		case "json":
			data, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return fmt.Errorf("encode report: %w", err)
			}
			rendered = string(data) + "\n"
		default:
			return fmt.Errorf("unknown format %q (md, csv, json)", reportFormat)
		}

		if err := writeOutput(cmd.OutOrStdout(), reportOutput, rendered); err != nil {
			return err
		}

		if reportParquet != "" {
			set, err := a.store.Query(ctx, storage.RecordQuery{
				Filter: filter,
				Window: window.Span(window.Previous()),
			})
			if err != nil {
				return fmt.Errorf("query records for export: %w", err)
			}
			f, err := create(reportParquet)
			if err != nil {
				return err
			}
			n, err := reporting.WriteRecordsParquet(f, set.All())
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return fmt.Errorf("export parquet: %w", err)
			}
			a.log.Info("records exported", "file", reportParquet, "rows", n)
		}
		return nil
	},
}

func writeOutput(stdout io.Writer, path, content string) error {
	if path == "" || path == "-" {
		_, err := io.WriteString(stdout, content)
		return err
	}
	f, err := create(path)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(f, content); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func create(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	return f, nil
}

func init() {
	f := reportCmd.Flags()
	f.StringVar(&reportFrom, "from", "", "window start (RFC3339)")
	f.StringVar(&reportTo, "to", "", "window end, exclusive (RFC3339)")
	f.StringArrayVar(&reportFilter, "filter", nil, "dimension filter dim:v1,v2 (repeatable)")
	f.StringSliceVar(&reportMetrics, "metrics", nil, "metric ids to include (default all)")
	f.StringVar(&reportTitle, "title", "", "report title")
	f.StringVar(&reportFormat, "format", "md", "output format (md, csv, json)")
	f.StringVarP(&reportOutput, "output", "o", "", "output file (default stdout)")
	f.StringVar(&reportParquet, "export-parquet", "", "also export the window's raw records to this Parquet file")
	f.StringArrayVar(&reportPreload, "load", nil, "JSON-lines or Parquet file appended before reporting (repeatable)")
}
