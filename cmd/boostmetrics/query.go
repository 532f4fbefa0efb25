package main

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"cloudboost-metrics/internal/domain"
	"cloudboost-metrics/internal/query"
)

var (
	queryFrom    string
	queryTo      string
	queryFilter  []string
	queryRollup  string
	queryBucket  time.Duration
	queryPreload []string
)

var (
	headerColor = color.New(color.FgCyan, color.Bold)
	goodColor   = color.New(color.FgGreen)
	warnColor   = color.New(color.FgYellow)
	badColor    = color.New(color.FgRed)
	dimColor    = color.New(color.Faint)
)

var queryCmd = &cobra.Command{
	Use:   "query METRIC",
	Short: "Compute a metric, a series or a rollup",
	Example: `  boostmetrics query deliveryRate --from 2024-03-01T00:00:00Z --to 2024-04-01T00:00:00Z
  boostmetrics query revenue --from 2024-03-01T00:00:00Z --to 2024-04-01T00:00:00Z --rollup region
  boostmetrics query leads --from 2024-03-01T00:00:00Z --to 2024-03-08T00:00:00Z --bucket 24h`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		window, filter, err := parseWindowFlags(queryFrom, queryTo, queryFilter)
		if err != nil {
			return err
		}

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.close()
		if err := a.preload(ctx, queryPreload); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		metricID := args[0]
		switch {
		case queryRollup != "":
			groups, err := a.service.GetRollup(ctx, metricID, filter, window, queryRollup)
			if err != nil {
				return err
			}
			headerColor.Fprintf(out, "%s by %s  %s\n", metricID, queryRollup, window)
			for _, g := range groups {
				printResult(out, g.DimensionValue, g.Result)
			}
			if len(groups) == 0 {
				dimColor.Fprintln(out, "  no groups")
			}

		case queryBucket > 0:
			windows, err := domain.SplitWindows(window.Start, window.End, queryBucket, a.service.Config().MaxSeriesWindows)
			if err != nil {
				return err
			}
			series, err := a.service.GetSeries(ctx, metricID, filter, windows)
			if err != nil {
				return err
			}
			headerColor.Fprintf(out, "%s every %s\n", metricID, queryBucket)
			for _, res := range series {
				printResult(out, res.Window.Start.Format(time.RFC3339), res)
			}

		default:
			res, err := a.service.GetMetric(ctx, metricID, filter, window)
			if err != nil {
				return err
			}
			headerColor.Fprintf(out, "%s  %s\n", metricID, window)
			printResult(out, "value", res)
		}
		return nil
	},
}

func printResult(w io.Writer, label string, res *query.MetricResult) {
	fmt.Fprintf(w, "  %-24s ", label)
	statusColor(res.Status).Fprintf(w, "%-14s", formatResult(res))
	dimColor.Fprintf(w, " %-17s %d records\n", res.Status, res.RecordCount)
}

func formatResult(res *query.MetricResult) string {
	if !res.Value.Defined {
		return "n/a"
	}
	switch res.Unit {
	case domain.UnitPercent:
		return fmt.Sprintf("%.2f%%", res.Value.Number)
	case domain.UnitCount:
		return fmt.Sprintf("%.0f", res.Value.Number)
	}
	return fmt.Sprintf("%.2f", res.Value.Number)
}

func statusColor(s domain.KPIStatus) *color.Color {
	switch s {
	case domain.StatusTargetMet:
		return goodColor
	case domain.StatusWarning:
		return warnColor
	case domain.StatusCritical:
		return badColor
	case domain.StatusInsufficientData:
		return dimColor
	}
	return color.New(color.Reset)
}

// parseWindowFlags builds the window and filter shared by query and report.
func parseWindowFlags(from, to string, filters []string) (domain.TimeWindow, domain.DimensionFilter, error) {
	if from == "" || to == "" {
		return domain.TimeWindow{}, nil, fmt.Errorf("--from and --to are required")
	}
	start, err := time.Parse(time.RFC3339, from)
	if err != nil {
		return domain.TimeWindow{}, nil, fmt.Errorf("--from: %w", err)
	}
	end, err := time.Parse(time.RFC3339, to)
	if err != nil {
		return domain.TimeWindow{}, nil, fmt.Errorf("--to: %w", err)
	}
	window, err := domain.NewTimeWindow(start, end)
	if err != nil {
		return domain.TimeWindow{}, nil, err
	}
	filter, err := domain.ParseDimensionFilter(filters)
	if err != nil {
		return domain.TimeWindow{}, nil, err
	}
	return window, filter, nil
}

func init() {
	f := queryCmd.Flags()
	f.StringVar(&queryFrom, "from", "", "window start (RFC3339)")
	f.StringVar(&queryTo, "to", "", "window end, exclusive (RFC3339)")
	f.StringArrayVar(&queryFilter, "filter", nil, "dimension filter dim:v1,v2 (repeatable)")
	f.StringVar(&queryRollup, "rollup", "", "group by this dimension")
	f.DurationVar(&queryBucket, "bucket", 0, "split the window into a series of this length")
	f.StringArrayVar(&queryPreload, "load", nil, "JSON-lines or Parquet file appended before querying (repeatable)")
}
