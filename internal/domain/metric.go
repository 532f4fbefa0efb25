package domain

import "iter"

// Unit is the display unit of a metric.
type Unit string

const (
	UnitCurrency Unit = "currency"
	UnitPercent  Unit = "percent"
	UnitCount    Unit = "count"
)

// Valid reports whether u is a recognized unit.
func (u Unit) Valid() bool {
	return u == UnitCurrency || u == UnitPercent || u == UnitCount
}

// Precision returns the number of decimal places results are rounded to.
func (u Unit) Precision() int32 {
	if u == UnitCount {
		return 0
	}
	return 2
}

// Granularity selects how a metric is aggregated.
type Granularity string

const (
	GranularitySum           Granularity = "sum"
	GranularityRatio         Granularity = "ratio"
	GranularityRollingGrowth Granularity = "rolling-growth"
)

// Valid reports whether g is a recognized granularity.
func (g Granularity) Valid() bool {
	switch g {
	case GranularitySum, GranularityRatio, GranularityRollingGrowth:
		return true
	}
	return false
}

// Formula computes a metric value from records. It must be pure and must
// only read the fields of its declared input kinds.
type Formula func(records iter.Seq[*Record]) Value

// MetricDefinition describes how a named metric is derived from records.
type MetricDefinition struct {
	ID          string      `json:"id" yaml:"id"`
	Description string      `json:"description,omitempty" yaml:"description"`
	InputKinds  []Kind      `json:"inputKinds" yaml:"inputKinds"`
	Unit        Unit        `json:"unit" yaml:"unit"`
	Granularity Granularity `json:"aggregationGranularity" yaml:"granularity"`

	// Sum definitions.
	Field string `json:"field,omitempty" yaml:"field"`

	// Ratio definitions.
	Numerator   string `json:"numerator,omitempty" yaml:"numerator"`
	Denominator string `json:"denominator,omitempty" yaml:"denominator"`

	// Rolling-growth definitions.
	Base string `json:"base,omitempty" yaml:"base"`

	// KPI thresholds, all optional.
	Target   *float64 `json:"target,omitempty" yaml:"target"`
	Warning  *float64 `json:"warning,omitempty" yaml:"warning"`
	Critical *float64 `json:"critical,omitempty" yaml:"critical"`

	// Formula is built by the registry for sum and ratio definitions.
	Formula Formula `json:"-" yaml:"-"`
}

// KPIStatus classifies a value against definition thresholds.
type KPIStatus string

const (
	StatusCritical         KPIStatus = "critical"
	StatusWarning          KPIStatus = "warning"
	StatusTargetMet        KPIStatus = "target_met"
	StatusNormal           KPIStatus = "normal"
	StatusInsufficientData KPIStatus = "insufficient_data"
)

// Status returns the KPI status of v for this definition.
func (d *MetricDefinition) Status(v Value) KPIStatus {
	if !v.Defined {
		return StatusInsufficientData
	}
	switch {
	case d.Critical != nil && v.Number <= *d.Critical:
		return StatusCritical
	case d.Warning != nil && v.Number <= *d.Warning:
		return StatusWarning
	case d.Target != nil && v.Number >= *d.Target:
		return StatusTargetMet
	}
	return StatusNormal
}
