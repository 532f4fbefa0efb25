// Package query is the read side of the engine plus the single append entry
// point. Results are rounded per unit at this boundary.
package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"cloudboost-metrics/internal/cache"
	"cloudboost-metrics/internal/domain"
	"cloudboost-metrics/internal/formula"
	"cloudboost-metrics/internal/logging"
	"cloudboost-metrics/internal/metrics"
	"cloudboost-metrics/internal/observability"
	"cloudboost-metrics/internal/storage"
)

// Catalog lists and resolves metric definitions.
type Catalog interface {
	Resolve(id string) (*domain.MetricDefinition, error)
	List() []*domain.MetricDefinition
}

// Config tunes the service.
type Config struct {
	// SeriesConcurrency bounds concurrent window computations per series.
	SeriesConcurrency int
	// MaxSeriesWindows caps the number of windows per series request.
	MaxSeriesWindows int
}

// DefaultConfig returns the defaults used when fields are zero.
func DefaultConfig() Config {
	return Config{SeriesConcurrency: 4, MaxSeriesWindows: 366}
}

// Service implements the Query API.
type Service struct {
	catalog Catalog
	engine  *metrics.Engine
	cache   *cache.SnapshotCache
	store   storage.RecordStore
	hub     *Hub
	cfg     Config
	log     *slog.Logger
}

// NewService wires the Query API over an engine and its cache.
func NewService(catalog Catalog, engine *metrics.Engine, snapshots *cache.SnapshotCache, cfg Config) *Service {
	def := DefaultConfig()
	if cfg.SeriesConcurrency <= 0 {
		cfg.SeriesConcurrency = def.SeriesConcurrency
	}
	if cfg.MaxSeriesWindows <= 0 {
		cfg.MaxSeriesWindows = def.MaxSeriesWindows
	}
	return &Service{
		catalog: catalog,
		engine:  engine,
		cache:   snapshots,
		store:   engine.Store(),
		hub:     NewHub(),
		cfg:     cfg,
		log:     logging.Component("query"),
	}
}

// Config returns the effective configuration.
func (s *Service) Config() Config { return s.cfg }

// CacheStats exposes snapshot cache counters.
func (s *Service) CacheStats() cache.Stats { return s.cache.Stats() }

// Computations returns the engine's computation count.
func (s *Service) Computations() int64 { return s.engine.Computations() }

// Subscribers returns the number of open metric subscriptions.
func (s *Service) Subscribers() int { return s.hub.Len() }

// GetMetric returns the rounded metric value for filter and window.
func (s *Service) GetMetric(ctx context.Context, metricID string, filter domain.DimensionFilter, window domain.TimeWindow) (*MetricResult, error) {
	start := time.Now()
	defer func() { observability.RecordQuery("getMetric", time.Since(start)) }()

	return s.getMetric(ctx, metricID, filter, window)
}

func (s *Service) getMetric(ctx context.Context, metricID string, filter domain.DimensionFilter, window domain.TimeWindow) (*MetricResult, error) {
	snap, err := s.cache.Get(ctx, metricID, filter, window)
	if err != nil {
		return nil, err
	}
	def, err := s.catalog.Resolve(snap.MetricID)
	if err != nil {
		return nil, err
	}
	return present(def, snap), nil
}

// GetSnapshot returns the cached snapshot without rounding. Callers that
// derive figures from several metric values, such as a change percentage,
// start from these.
func (s *Service) GetSnapshot(ctx context.Context, metricID string, filter domain.DimensionFilter, window domain.TimeWindow) (*domain.MetricSnapshot, error) {
	return s.cache.Get(ctx, metricID, filter, window)
}

// present rounds snap per unit and classifies it against def's thresholds.
func present(def *domain.MetricDefinition, snap *domain.MetricSnapshot) *MetricResult {
	value := formula.Round(snap.Value, snap.Unit.Precision())
	return &MetricResult{
		MetricID:     snap.MetricID,
		Value:        value,
		Unit:         snap.Unit,
		Status:       def.Status(value),
		Window:       snap.Window,
		Filter:       snap.Filter,
		ComputedAt:   snap.ComputedAt,
		RecordCount:  snap.RecordCount,
		StoreVersion: snap.Version,
	}
}

// GetSeries returns one result per window, in input order. Windows are
// computed concurrently up to the configured limit.
func (s *Service) GetSeries(ctx context.Context, metricID string, filter domain.DimensionFilter, windows []domain.TimeWindow) ([]*MetricResult, error) {
	start := time.Now()
	defer func() { observability.RecordQuery("getSeries", time.Since(start)) }()

	if len(windows) > s.cfg.MaxSeriesWindows {
		return nil, fmt.Errorf("%w: %d windows exceeds limit of %d", storage.ErrInvalidInput, len(windows), s.cfg.MaxSeriesWindows)
	}
	if _, err := s.catalog.Resolve(metricID); err != nil {
		return nil, err
	}
	for _, w := range windows {
		if err := w.Validate(); err != nil {
			return nil, err
		}
	}

	out := make([]*MetricResult, len(windows))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.SeriesConcurrency)
	for i, w := range windows {
		g.Go(func() error {
			res, err := s.getMetric(gctx, metricID, filter, w)
			if err != nil {
				return err
			}
			out[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetRollup computes the metric once per distinct value of dimension present
// in the filtered dependency span, sorted by dimension value. All groups come
// from one store read and are added to the snapshot cache under the narrowed
// filter.
func (s *Service) GetRollup(ctx context.Context, metricID string, filter domain.DimensionFilter, window domain.TimeWindow, dimension string) ([]RollupResult, error) {
	start := time.Now()
	defer func() { observability.RecordQuery("getRollup", time.Since(start)) }()

	entries, err := s.engine.Rollup(ctx, metricID, filter, window, dimension)
	if err != nil {
		return nil, err
	}
	def, err := s.catalog.Resolve(metricID)
	if err != nil {
		return nil, err
	}

	out := make([]RollupResult, 0, len(entries))
	for _, e := range entries {
		s.cache.Put(e.Snapshot)
		out = append(out, RollupResult{DimensionValue: e.DimensionValue, Result: present(def, e.Snapshot)})
	}
	return out, nil
}

// ListMetrics returns the catalog sorted by id.
func (s *Service) ListMetrics() []MetricInfo {
	defs := s.catalog.List()
	out := make([]MetricInfo, len(defs))
	for i, d := range defs {
		out[i] = MetricInfo{
			ID:          d.ID,
			Description: d.Description,
			Unit:        d.Unit,
			Granularity: d.Granularity,
			InputKinds:  d.InputKinds,
			Base:        d.Base,
			Target:      d.Target,
			Warning:     d.Warning,
			Critical:    d.Critical,
		}
	}
	return out
}

// Append stores one record received through the API. A record without an id
// is assigned a random UUID.
func (s *Service) Append(ctx context.Context, r *domain.Record) error {
	return s.AppendBatch(ctx, "api", []*domain.Record{r})
}

// AppendBatch stores records atomically and signals affected subscribers.
// source labels the ingestion path in metrics and logs.
func (s *Service) AppendBatch(ctx context.Context, source string, records []*domain.Record) error {
	if len(records) == 0 {
		return nil
	}
	for _, r := range records {
		if r != nil && r.ID == "" {
			r.ID = uuid.NewString()
		}
	}

	var err error
	if len(records) == 1 {
		err = s.store.Append(ctx, records[0])
	} else {
		err = s.store.AppendBulk(ctx, records)
	}
	if err != nil {
		observability.RecordRejected(source, rejectReason(err))
		return err
	}

	for _, r := range records {
		observability.RecordAppended(source, string(r.Kind), 1)
	}
	s.hub.Notify(records)
	s.log.Debug("records appended", "source", source, "count", len(records))
	return nil
}

// Watch subscribes to changes of a metric's dependency span. The channel
// receives a signal after every append that may change the metric's value.
func (s *Service) Watch(metricID string, filter domain.DimensionFilter, window domain.TimeWindow) (<-chan struct{}, func(), error) {
	plan, err := s.engine.Plan(metricID, filter, window)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := s.hub.Subscribe(plan.Query)
	observability.UpdateStreamSubscribers(s.hub.Len())
	return ch, func() {
		cancel()
		observability.UpdateStreamSubscribers(s.hub.Len())
	}, nil
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidRecord):
		return "invalid"
	case errors.Is(err, storage.ErrDuplicateKey):
		return "duplicate"
	}
	return "error"
}
