package reporting

import (
	"fmt"
	"strings"
	"time"

	"cloudboost-metrics/internal/domain"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString(fmt.Sprintf("# %s\n\n", r.Title))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Window: %s (previous %s)\n\n", r.Window, r.Previous))
	if key := r.Filter.Key(); key != "" {
		sb.WriteString(fmt.Sprintf("Filter: `%s`\n\n", key))
	}
	sb.WriteString(fmt.Sprintf("Report ID: `%s`\n\n", r.ID))

	// Summary
	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Status | Metrics |\n")
	sb.WriteString("|--------|---------|\n")
	sb.WriteString(fmt.Sprintf("| Target met | %d |\n", r.Summary.TargetMet))
	sb.WriteString(fmt.Sprintf("| Warning | %d |\n", r.Summary.Warning))
	sb.WriteString(fmt.Sprintf("| Critical | %d |\n", r.Summary.Critical))
	sb.WriteString(fmt.Sprintf("| Insufficient data | %d |\n", r.Summary.InsufficientData))
	sb.WriteString(fmt.Sprintf("| Total | %d |\n", r.Summary.Metrics))
	sb.WriteString("\n")

	// KPIs
	sb.WriteString("## KPIs\n\n")
	if len(r.Rows) == 0 {
		sb.WriteString("No metrics available.\n\n")
		return sb.String()
	}
	sb.WriteString("| Metric | Current | Previous | Change | Trend | Status | Records |\n")
	sb.WriteString("|--------|---------|----------|--------|-------|--------|---------|\n")
	for _, row := range r.Rows {
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %s | %d |\n",
			row.MetricID,
			formatValue(row.Current, row.Unit),
			formatValue(row.Previous, row.Unit),
			formatChange(row.ChangePct),
			trendArrow(row.Trend),
			row.Status,
			row.RecordCount))
	}
	sb.WriteString("\n")

	return sb.String()
}

func formatValue(v domain.Value, unit domain.Unit) string {
	if !v.Defined {
		return "n/a"
	}
	switch unit {
	case domain.UnitPercent:
		return fmt.Sprintf("%.2f%%", v.Number)
	case domain.UnitCount:
		return fmt.Sprintf("%.0f", v.Number)
	}
	return fmt.Sprintf("%.2f", v.Number)
}

func formatChange(v domain.Value) string {
	if !v.Defined {
		return "n/a"
	}
	return fmt.Sprintf("%+.2f%%", v.Number)
}

func trendArrow(t Trend) string {
	switch t {
	case TrendUp:
		return "▲ up"
	case TrendDown:
		return "▼ down"
	}
	return "= stable"
}
