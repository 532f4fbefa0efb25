package storage

import (
	"context"
	"iter"

	"cloudboost-metrics/internal/domain"
)

// RecordQuery selects records by kind, dimension filter and time window.
// An empty Kinds slice selects all kinds.
type RecordQuery struct {
	Kinds  []domain.Kind
	Filter domain.DimensionFilter
	Window domain.TimeWindow
}

// Matches reports whether r satisfies every part of the query.
func (q RecordQuery) Matches(r *domain.Record) bool {
	if !q.Window.Contains(r.Timestamp) {
		return false
	}
	if len(q.Kinds) > 0 {
		found := false
		for _, k := range q.Kinds {
			if r.Kind == k {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return q.Filter.Matches(r.Dimensions)
}

// RecordSet is a consistent view of matching records.
// Records are ordered by timestamp ascending, ties broken by insertion order.
type RecordSet struct {
	// Version is the store version the view is consistent at.
	Version uint64

	records []*domain.Record
	filter  func(*domain.Record) bool
}

// NewRecordSet wraps records already in query order. If match is non-nil,
// records are filtered lazily during iteration.
func NewRecordSet(version uint64, records []*domain.Record, match func(*domain.Record) bool) *RecordSet {
	return &RecordSet{Version: version, records: records, filter: match}
}

// All yields matching records in order. Records must not be modified.
func (s *RecordSet) All() iter.Seq[*domain.Record] {
	return func(yield func(*domain.Record) bool) {
		for _, r := range s.records {
			if s.filter != nil && !s.filter(r) {
				continue
			}
			if !yield(r) {
				return
			}
		}
	}
}

// Collect materializes the set.
func (s *RecordSet) Collect() []*domain.Record {
	out := make([]*domain.Record, 0, len(s.records))
	for r := range s.All() {
		out = append(out, r)
	}
	return out
}

// RecordStore is the append-only ledger of business events.
type RecordStore interface {
	// Append adds a record and assigns its Seq.
	// Returns *domain.InvalidRecordError if the record fails validation and
	// ErrDuplicateKey if the id exists.
	Append(ctx context.Context, r *domain.Record) error

	// AppendBulk adds records atomically. Fails entire batch on any invalid
	// record or duplicate id.
	AppendBulk(ctx context.Context, records []*domain.Record) error

	// Query returns records matching q, ordered by timestamp ASC then Seq ASC.
	Query(ctx context.Context, q RecordQuery) (*RecordSet, error)

	// Count returns the number of records matching q.
	Count(ctx context.Context, q RecordQuery) (int64, error)

	// Version returns the total number of records ever appended.
	Version(ctx context.Context) (uint64, error)
}

// CheckRecord validates r for append. A record without an id is rejected.
func CheckRecord(r *domain.Record) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if r.ID == "" {
		return &domain.InvalidRecordError{Field: "id", Reason: "missing id"}
	}
	return nil
}

// CheckBatch validates every record and rejects duplicate ids inside the batch.
func CheckBatch(records []*domain.Record) error {
	batchKeys := make(map[string]struct{}, len(records))
	for _, r := range records {
		if err := CheckRecord(r); err != nil {
			return err
		}
		if _, exists := batchKeys[r.ID]; exists {
			return ErrDuplicateKey
		}
		batchKeys[r.ID] = struct{}{}
	}
	return nil
}
