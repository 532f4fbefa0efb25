package domain

import "time"

// MetricSnapshot is a computed metric value bound to the exact inputs it was
// derived from.
type MetricSnapshot struct {
	MetricID    string          `json:"metricId"`
	Filter      DimensionFilter `json:"filter,omitempty"`
	Window      TimeWindow      `json:"window"`
	Value       Value           `json:"value"`
	Unit        Unit            `json:"unit"`
	ComputedAt  time.Time       `json:"computedAt"`
	RecordCount int64           `json:"recordCount"` // records in the dependency span
	Version     uint64          `json:"storeVersion"`
}

// RollupEntry is one group of a dimensional rollup.
type RollupEntry struct {
	DimensionValue string          `json:"dimensionValue"`
	Snapshot       *MetricSnapshot `json:"snapshot"`
}
