// Package cache memoizes metric snapshots. An entry stays valid while the
// store's record count for its dependency span is unchanged; there is no
// time-based eviction.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"cloudboost-metrics/internal/domain"
	"cloudboost-metrics/internal/logging"
	"cloudboost-metrics/internal/metrics"
	"cloudboost-metrics/internal/storage"
)

// Observer receives cache events.
type Observer interface {
	CacheHit()
	CacheMiss()
	CacheStale()
	CacheCoalesced()
	CacheSize(n int)
}

// Computer plans and computes snapshots. *metrics.Engine implements it.
type Computer interface {
	Plan(metricID string, filter domain.DimensionFilter, window domain.TimeWindow) (*metrics.Plan, error)
	ComputePlan(ctx context.Context, plan *metrics.Plan) (*domain.MetricSnapshot, error)
}

type entry struct {
	snapshot *domain.MetricSnapshot
	// verified is the latest store version at which the entry's record count
	// was confirmed.
	verified uint64
}

// Stats is a point-in-time view of cache counters.
type Stats struct {
	Entries   int   `json:"entries"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Stale     int64 `json:"stale"`
	Coalesced int64 `json:"coalesced"`
}

// SnapshotCache is a single-flight snapshot cache in front of a Computer.
type SnapshotCache struct {
	computer Computer
	store    storage.RecordStore
	obs      Observer
	log      *slog.Logger

	mu      sync.RWMutex
	entries map[string]*entry
	group   singleflight.Group

	hits, misses, stale, coalesced atomic.Int64
}

// New creates a cache. obs may be nil.
func New(computer Computer, store storage.RecordStore, obs Observer) *SnapshotCache {
	return &SnapshotCache{
		computer: computer,
		store:    store,
		obs:      obs,
		log:      logging.Component("cache"),
		entries:  make(map[string]*entry),
	}
}

// Get returns the snapshot for (metricID, filter, window), recomputing it when
// the record count of its dependency span has changed.
//
// Concurrent misses for one key share a single computation. If ctx ends
// first, Get returns ctx.Err() and the computation continues for the other
// callers; a failed computation leaves the cache untouched.
func (c *SnapshotCache) Get(ctx context.Context, metricID string, filter domain.DimensionFilter, window domain.TimeWindow) (*domain.MetricSnapshot, error) {
	plan, err := c.computer.Plan(metricID, filter, window)
	if err != nil {
		return nil, err
	}
	key := SnapshotKey(plan.Definition.ID, plan.Filter, plan.Window)

	snap, st, err := c.lookup(ctx, key, plan)
	if err != nil {
		return nil, err
	}
	if st == stateStale {
		c.stale.Add(1)
		if c.obs != nil {
			c.obs.CacheStale()
		}
		c.log.Debug("snapshot stale", "metric", plan.Definition.ID, "window", plan.Window.String())
	}
	if st == stateFresh {
		c.hits.Add(1)
		if c.obs != nil {
			c.obs.CacheHit()
		}
		return snap, nil
	}

	c.misses.Add(1)
	if c.obs != nil {
		c.obs.CacheMiss()
	}

	ch := c.group.DoChan(key, func() (any, error) {
		// Another flight may have filled the entry since lookup.
		computeCtx := context.WithoutCancel(ctx)
		if snap, st, err := c.lookup(computeCtx, key, plan); err == nil && st == stateFresh {
			return snap, nil
		}
		snap, err := c.computer.ComputePlan(computeCtx, plan)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[key] = &entry{snapshot: snap, verified: snap.Version}
		n := len(c.entries)
		c.mu.Unlock()
		if c.obs != nil {
			c.obs.CacheSize(n)
		}
		return snap, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			c.coalesced.Add(1)
			if c.obs != nil {
				c.obs.CacheCoalesced()
			}
		}
		return res.Val.(*domain.MetricSnapshot), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Put stores a snapshot computed outside Get, such as one group of a
// rollup. An entry already verified at the same or a newer store version is
// kept.
func (c *SnapshotCache) Put(snap *domain.MetricSnapshot) {
	key := SnapshotKey(snap.MetricID, snap.Filter.Normalize(), snap.Window)
	c.mu.Lock()
	if cur, ok := c.entries[key]; ok && cur.verified >= snap.Version {
		c.mu.Unlock()
		return
	}
	c.entries[key] = &entry{snapshot: snap, verified: snap.Version}
	n := len(c.entries)
	c.mu.Unlock()
	if c.obs != nil {
		c.obs.CacheSize(n)
	}
}

type state int

const (
	stateAbsent state = iota
	stateFresh
	stateStale
)

// lookup returns the cached snapshot for key and whether it is still valid.
// The store version is a fast path; a moved version falls back to comparing
// the record count of the dependency span.
func (c *SnapshotCache) lookup(ctx context.Context, key string, plan *metrics.Plan) (*domain.MetricSnapshot, state, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, stateAbsent, nil
	}

	version, err := c.store.Version(ctx)
	if err != nil {
		return nil, stateAbsent, fmt.Errorf("read store version: %w", err)
	}
	if version == e.verified {
		return e.snapshot, stateFresh, nil
	}

	count, err := c.store.Count(ctx, plan.Query)
	if err != nil {
		return nil, stateAbsent, fmt.Errorf("count dependency span: %w", err)
	}
	if count != e.snapshot.RecordCount {
		return nil, stateStale, nil
	}

	c.mu.Lock()
	if cur := c.entries[key]; cur == e && version > e.verified {
		c.entries[key] = &entry{snapshot: e.snapshot, verified: version}
	}
	c.mu.Unlock()
	return e.snapshot, stateFresh, nil
}

// Stats returns current counters.
func (c *SnapshotCache) Stats() Stats {
	c.mu.RLock()
	n := len(c.entries)
	c.mu.RUnlock()
	return Stats{
		Entries:   n,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Stale:     c.stale.Load(),
		Coalesced: c.coalesced.Load(),
	}
}
