package metrics

import (
	"iter"
	"slices"

	"cloudboost-metrics/internal/domain"
	"cloudboost-metrics/internal/formula"
)

// evaluate applies the plan's definition to records from its dependency span.
func evaluate(plan *Plan, records []*domain.Record) domain.Value {
	def := plan.Definition
	if def.Granularity == domain.GranularityRollingGrowth {
		current := apply(plan.Base, inWindow(records, plan.Window))
		previous := apply(plan.Base, inWindow(records, plan.Window.Previous()))
		return formula.Growth(current, previous)
	}
	return apply(def, slices.Values(records))
}

// apply runs a sum or ratio formula. Percent ratios are clamped to [0, 100].
func apply(def *domain.MetricDefinition, records iter.Seq[*domain.Record]) domain.Value {
	v := def.Formula(records)
	if def.Granularity == domain.GranularityRatio && def.Unit == domain.UnitPercent {
		v = formula.Clamp(v, 0, 100)
	}
	return v
}

// inWindow yields the records whose timestamp falls in w.
func inWindow(records []*domain.Record, w domain.TimeWindow) iter.Seq[*domain.Record] {
	return func(yield func(*domain.Record) bool) {
		for _, r := range records {
			if w.Contains(r.Timestamp) && !yield(r) {
				return
			}
		}
	}
}
