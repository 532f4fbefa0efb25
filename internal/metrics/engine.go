// Package metrics is the aggregation engine. It reads matching records for a
// metric's dependency span and applies the metric definition.
package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"cloudboost-metrics/internal/domain"
	"cloudboost-metrics/internal/logging"
	"cloudboost-metrics/internal/observability"
	"cloudboost-metrics/internal/storage"
)

// Resolver looks up metric definitions.
type Resolver interface {
	Resolve(id string) (*domain.MetricDefinition, error)
}

// Engine computes metric snapshots from a record store.
type Engine struct {
	resolver Resolver
	store    storage.RecordStore
	log      *slog.Logger
	now      func() time.Time

	computations atomic.Int64
}

// NewEngine creates an engine over store using resolver for definitions.
func NewEngine(resolver Resolver, store storage.RecordStore) *Engine {
	return &Engine{
		resolver: resolver,
		store:    store,
		log:      logging.Component("engine"),
		now:      time.Now,
	}
}

// SetClock overrides the clock used for ComputedAt.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// Computations returns how many snapshots the engine has computed.
func (e *Engine) Computations() int64 {
	return e.computations.Load()
}

// Store returns the underlying record store.
func (e *Engine) Store() storage.RecordStore {
	return e.store
}

// Plan is a resolved metric request: the definition, its growth base if any,
// and the record query covering its dependency span.
type Plan struct {
	Definition *domain.MetricDefinition
	Base       *domain.MetricDefinition // rolling-growth only
	Filter     domain.DimensionFilter
	Window     domain.TimeWindow
	Query      storage.RecordQuery
}

// Plan validates the request and resolves what it reads.
// Returns *domain.EmptyWindowError or *domain.UnknownMetricError.
func (e *Engine) Plan(metricID string, filter domain.DimensionFilter, window domain.TimeWindow) (*Plan, error) {
	if err := window.Validate(); err != nil {
		return nil, err
	}
	def, err := e.resolver.Resolve(metricID)
	if err != nil {
		return nil, err
	}

	p := &Plan{
		Definition: def,
		Filter:     filter.Normalize(),
		Window:     window,
	}
	span := window
	kinds := def.InputKinds
	if def.Granularity == domain.GranularityRollingGrowth {
		base, err := e.resolver.Resolve(def.Base)
		if err != nil {
			return nil, fmt.Errorf("resolve growth base of %s: %w", def.ID, err)
		}
		p.Base = base
		span = window.Span(window.Previous())
		kinds = base.InputKinds
	}
	p.Query = storage.RecordQuery{Kinds: kinds, Filter: p.Filter, Window: span}
	return p, nil
}

// Compute returns the snapshot for (metricID, filter, window).
// Current and previous windows of a growth metric are read in one query.
func (e *Engine) Compute(ctx context.Context, metricID string, filter domain.DimensionFilter, window domain.TimeWindow) (*domain.MetricSnapshot, error) {
	plan, err := e.Plan(metricID, filter, window)
	if err != nil {
		return nil, err
	}
	return e.ComputePlan(ctx, plan)
}

// ComputePlan evaluates an already resolved plan.
func (e *Engine) ComputePlan(ctx context.Context, plan *Plan) (*domain.MetricSnapshot, error) {
	start := time.Now()

	set, err := e.store.Query(ctx, plan.Query)
	if err != nil {
		return nil, fmt.Errorf("query records for %s: %w", plan.Definition.ID, err)
	}
	records := set.Collect()

	snap := &domain.MetricSnapshot{
		MetricID:    plan.Definition.ID,
		Filter:      plan.Filter,
		Window:      plan.Window,
		Value:       evaluate(plan, records),
		Unit:        plan.Definition.Unit,
		ComputedAt:  e.now().UTC(),
		RecordCount: int64(len(records)),
		Version:     set.Version,
	}

	e.computations.Add(1)
	elapsed := time.Since(start)
	observability.RecordComputation(plan.Definition.ID, string(plan.Definition.Granularity), elapsed)
	e.log.Debug("metric computed",
		"metric", plan.Definition.ID,
		"window", plan.Window.String(),
		"records", snap.RecordCount,
		"version", snap.Version,
		"defined", snap.Value.Defined,
		"duration", elapsed,
	)
	return snap, nil
}

// Rollup computes the metric once per distinct value of dimension among the
// records in the dependency span, from a single consistent read. Records
// without the dimension belong to no group. Entries are sorted by dimension
// value.
func (e *Engine) Rollup(ctx context.Context, metricID string, filter domain.DimensionFilter, window domain.TimeWindow, dimension string) ([]domain.RollupEntry, error) {
	if !domain.IsDimension(dimension) {
		return nil, fmt.Errorf("%w: unknown dimension %q (expected one of %v)", storage.ErrInvalidInput, dimension, domain.Dimensions())
	}
	plan, err := e.Plan(metricID, filter, window)
	if err != nil {
		return nil, err
	}

	set, err := e.store.Query(ctx, plan.Query)
	if err != nil {
		return nil, fmt.Errorf("query records for %s rollup: %w", metricID, err)
	}

	groups := make(map[string][]*domain.Record)
	for r := range set.All() {
		v, ok := r.Dimensions[dimension]
		if !ok {
			continue
		}
		groups[v] = append(groups[v], r)
	}

	values := make([]string, 0, len(groups))
	for v := range groups {
		values = append(values, v)
	}
	sort.Strings(values)

	now := e.now().UTC()
	out := make([]domain.RollupEntry, 0, len(values))
	for _, v := range values {
		records := groups[v]
		out = append(out, domain.RollupEntry{
			DimensionValue: v,
			Snapshot: &domain.MetricSnapshot{
				MetricID:    plan.Definition.ID,
				Filter:      plan.Filter.With(dimension, v),
				Window:      plan.Window,
				Value:       evaluate(plan, records),
				Unit:        plan.Definition.Unit,
				ComputedAt:  now,
				RecordCount: int64(len(records)),
				Version:     set.Version,
			},
		})
	}
	e.computations.Add(int64(len(out)))
	return out, nil
}
