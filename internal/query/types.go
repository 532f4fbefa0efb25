package query

import (
	"time"

	"cloudboost-metrics/internal/domain"
)

// MetricResult is a snapshot rounded for presentation.
type MetricResult struct {
	MetricID     string                 `json:"metricId"`
	Value        domain.Value           `json:"value"`
	Unit         domain.Unit            `json:"unit"`
	Status       domain.KPIStatus       `json:"status"`
	Window       domain.TimeWindow      `json:"window"`
	Filter       domain.DimensionFilter `json:"filter,omitempty"`
	ComputedAt   time.Time              `json:"computedAt"`
	RecordCount  int64                  `json:"recordCount"`
	StoreVersion uint64                 `json:"storeVersion"`
}

// RollupResult is one group of a rollup.
type RollupResult struct {
	DimensionValue string        `json:"dimensionValue"`
	Result         *MetricResult `json:"result"`
}

// MetricInfo describes a registered metric.
type MetricInfo struct {
	ID          string             `json:"id"`
	Description string             `json:"description,omitempty"`
	Unit        domain.Unit        `json:"unit"`
	Granularity domain.Granularity `json:"aggregationGranularity"`
	InputKinds  []domain.Kind      `json:"inputKinds"`
	Base        string             `json:"base,omitempty"`
	Target      *float64           `json:"target,omitempty"`
	Warning     *float64           `json:"warning,omitempty"`
	Critical    *float64           `json:"critical,omitempty"`
}
