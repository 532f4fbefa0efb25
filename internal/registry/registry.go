// Package registry is the catalog of metric definitions.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"cloudboost-metrics/internal/domain"
	"cloudboost-metrics/internal/formula"
)

// ErrSealed is returned by Register after Seal.
var ErrSealed = errors.New("registry is sealed")

// Registry holds metric definitions by id.
// Definitions are registered at startup; Seal makes the catalog read-only.
type Registry struct {
	mu     sync.RWMutex
	defs   map[string]*domain.MetricDefinition
	sealed bool
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{defs: make(map[string]*domain.MetricDefinition)}
}

// Register validates def, builds its formula and adds it.
// Returns *domain.DuplicateMetricError if the id exists and an error
// wrapping domain.ErrInvalidDefinition if def is incomplete.
func (r *Registry) Register(def domain.MetricDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return ErrSealed
	}
	if _, exists := r.defs[def.ID]; exists {
		return &domain.DuplicateMetricError{ID: def.ID}
	}
	if err := r.prepareLocked(&def); err != nil {
		return err
	}

	stored := def
	stored.InputKinds = append([]domain.Kind(nil), def.InputKinds...)
	r.defs[def.ID] = &stored
	return nil
}

func invalid(id, format string, args ...any) error {
	return fmt.Errorf("%w %q: %s", domain.ErrInvalidDefinition, id, fmt.Sprintf(format, args...))
}

// prepareLocked validates def and fills in derived parts.
func (r *Registry) prepareLocked(def *domain.MetricDefinition) error {
	if def.ID == "" {
		return invalid(def.ID, "missing id")
	}
	if !def.Unit.Valid() {
		return invalid(def.ID, "unknown unit %q", def.Unit)
	}

	switch def.Granularity {
	case domain.GranularitySum:
		if def.Formula == nil {
			if def.Field == "" {
				return invalid(def.ID, "sum requires field")
			}
			def.Formula = formula.Sum(def.Field)
		}
	case domain.GranularityRatio:
		if def.Formula == nil {
			if def.Numerator == "" || def.Denominator == "" {
				return invalid(def.ID, "ratio requires numerator and denominator")
			}
			def.Formula = formula.Ratio(def.Numerator, def.Denominator, def.Unit == domain.UnitPercent)
		}
	case domain.GranularityRollingGrowth:
		base, ok := r.defs[def.Base]
		if !ok {
			return invalid(def.ID, "unknown growth base %q", def.Base)
		}
		if base.Granularity == domain.GranularityRollingGrowth {
			return invalid(def.ID, "growth base %q is itself a growth metric", def.Base)
		}
		if def.Unit != domain.UnitPercent {
			return invalid(def.ID, "growth unit must be percent")
		}
		if len(def.InputKinds) == 0 {
			def.InputKinds = base.InputKinds
		}
		def.Formula = nil
	default:
		return invalid(def.ID, "unknown granularity %q", def.Granularity)
	}

	if len(def.InputKinds) == 0 {
		return invalid(def.ID, "no input kinds")
	}
	for _, k := range def.InputKinds {
		if !k.Valid() {
			return invalid(def.ID, "unknown input kind %q", k)
		}
	}
	return nil
}

// Resolve returns the definition for id.
// Returns *domain.UnknownMetricError if id is not registered.
func (r *Registry) Resolve(id string) (*domain.MetricDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.defs[id]
	if !ok {
		return nil, &domain.UnknownMetricError{ID: id}
	}
	return def, nil
}

// List returns all definitions sorted by id.
func (r *Registry) List() []*domain.MetricDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.MetricDefinition, 0, len(r.defs))
	for _, d := range r.defs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Seal rejects further registrations.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}
