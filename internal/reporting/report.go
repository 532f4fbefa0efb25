package reporting

import (
	"time"

	"cloudboost-metrics/internal/domain"
)

// Trend is the direction of a KPI between two windows.
type Trend string

// Trends.
const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
)

// StableBand is the absolute change, in percent, within which a KPI counts
// as stable.
const StableBand = 0.5

// Report is a KPI report comparing a window with the one before it.
type Report struct {
	ID          string                 `json:"id"`
	Title       string                 `json:"title"`
	GeneratedAt time.Time              `json:"generatedAt"`
	Window      domain.TimeWindow      `json:"window"`
	Previous    domain.TimeWindow      `json:"previous"`
	Filter      domain.DimensionFilter `json:"filter,omitempty"`

	// Rows are sorted by metric id.
	Rows []KPIRow `json:"rows"`

	Summary Summary `json:"summary"`
}

// KPIRow is one metric in a report.
type KPIRow struct {
	MetricID    string           `json:"metricId"`
	Description string           `json:"description,omitempty"`
	Unit        domain.Unit      `json:"unit"`
	Current     domain.Value     `json:"current"`
	Previous    domain.Value     `json:"previous"`
	ChangePct   domain.Value     `json:"changePct"` // undefined when previous is 0 or undefined
	Trend       Trend            `json:"trend"`
	Status      domain.KPIStatus `json:"status"`
	RecordCount int64            `json:"recordCount"`
}

// Summary counts rows per status.
type Summary struct {
	Metrics          int `json:"metrics"`
	TargetMet        int `json:"targetMet"`
	Warning          int `json:"warning"`
	Critical         int `json:"critical"`
	InsufficientData int `json:"insufficientData"`
}

func (s *Summary) add(status domain.KPIStatus) {
	s.Metrics++
	switch status {
	case domain.StatusTargetMet:
		s.TargetMet++
	case domain.StatusWarning:
		s.Warning++
	case domain.StatusCritical:
		s.Critical++
	case domain.StatusInsufficientData:
		s.InsufficientData++
	}
}

// trendOf classifies a change percentage. Undefined changes are stable.
func trendOf(change domain.Value) Trend {
	switch {
	case !change.Defined:
		return TrendStable
	case change.Number > StableBand:
		return TrendUp
	case change.Number < -StableBand:
		return TrendDown
	}
	return TrendStable
}
