// Package reporting builds KPI reports over the query service and renders
// them as CSV and Markdown. Raw records can be exported as Parquet.
package reporting

import (
	"context"
	"fmt"
	"sort"
	"time"

	"cloudboost-metrics/internal/domain"
	"cloudboost-metrics/internal/formula"
	"cloudboost-metrics/internal/idhash"
	"cloudboost-metrics/internal/query"
)

// Source provides metric results. *query.Service implements it.
type Source interface {
	GetMetric(ctx context.Context, metricID string, filter domain.DimensionFilter, window domain.TimeWindow) (*query.MetricResult, error)
	GetSnapshot(ctx context.Context, metricID string, filter domain.DimensionFilter, window domain.TimeWindow) (*domain.MetricSnapshot, error)
	ListMetrics() []query.MetricInfo
}

// Request selects what a report covers.
type Request struct {
	Title  string
	Window domain.TimeWindow
	Filter domain.DimensionFilter
	// MetricIDs limits the report; empty means every registered metric.
	MetricIDs []string
}

// Generator produces KPI reports.
type Generator struct {
	source Source
	now    func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a report generator over source.
func NewGenerator(source Source) *Generator {
	return &Generator{
		source: source,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate computes every requested metric for the window and the window
// before it.
func (g *Generator) Generate(ctx context.Context, req Request) (*Report, error) {
	if err := req.Window.Validate(); err != nil {
		return nil, err
	}

	infos := g.source.ListMetrics()
	byID := make(map[string]query.MetricInfo, len(infos))
	for _, info := range infos {
		byID[info.ID] = info
	}

	ids := req.MetricIDs
	if len(ids) == 0 {
		for _, info := range infos {
			ids = append(ids, info.ID)
		}
	}
	ids = append([]string(nil), ids...)
	sort.Strings(ids)

	title := req.Title
	if title == "" {
		title = "KPI Report"
	}
	report := &Report{
		ID:          idhash.ReportID(req.Window.Key()+"|"+req.Filter.Key(), ids),
		Title:       title,
		GeneratedAt: g.now(),
		Window:      req.Window,
		Previous:    req.Window.Previous(),
		Filter:      req.Filter.Normalize(),
		Rows:        make([]KPIRow, 0, len(ids)),
	}

	for _, id := range ids {
		info, ok := byID[id]
		if !ok {
			return nil, &domain.UnknownMetricError{ID: id}
		}
		row, err := g.row(ctx, info, req.Filter, req.Window)
		if err != nil {
			return nil, fmt.Errorf("report metric %s: %w", id, err)
		}
		report.Rows = append(report.Rows, row)
		report.Summary.add(row.Status)
	}
	return report, nil
}

// row reports the rounded values, but the change is taken between the
// unrounded snapshots and rounded once.
func (g *Generator) row(ctx context.Context, info query.MetricInfo, filter domain.DimensionFilter, window domain.TimeWindow) (KPIRow, error) {
	cur, err := g.source.GetMetric(ctx, info.ID, filter, window)
	if err != nil {
		return KPIRow{}, err
	}
	curSnap, err := g.source.GetSnapshot(ctx, info.ID, filter, window)
	if err != nil {
		return KPIRow{}, err
	}
	prevSnap, err := g.source.GetSnapshot(ctx, info.ID, filter, window.Previous())
	if err != nil {
		return KPIRow{}, err
	}

	change := formula.Round(formula.Growth(curSnap.Value, prevSnap.Value), 2)
	return KPIRow{
		MetricID:    info.ID,
		Description: info.Description,
		Unit:        cur.Unit,
		Current:     cur.Value,
		Previous:    formula.Round(prevSnap.Value, prevSnap.Unit.Precision()),
		ChangePct:   change,
		Trend:       trendOf(change),
		Status:      cur.Status,
		RecordCount: cur.RecordCount,
	}, nil
}
