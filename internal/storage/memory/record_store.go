package memory

import (
	"context"
	"sort"
	"sync"

	"cloudboost-metrics/internal/domain"
	"cloudboost-metrics/internal/storage"
)

// RecordStore is an in-memory implementation of storage.RecordStore.
// Records are kept sorted by (Timestamp, Seq) so window lookups are a binary
// search.
type RecordStore struct {
	mu      sync.RWMutex
	ids     map[string]struct{}
	ordered []*domain.Record // sorted by Timestamp ASC, Seq ASC
	version uint64
}

// NewRecordStore creates a new in-memory record store.
func NewRecordStore() *RecordStore {
	return &RecordStore{
		ids: make(map[string]struct{}),
	}
}

// Append adds a record. Returns ErrDuplicateKey if the id exists.
func (s *RecordStore) Append(_ context.Context, r *domain.Record) error {
	if err := storage.CheckRecord(r); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.ids[r.ID]; exists {
		return storage.ErrDuplicateKey
	}
	s.insertLocked(r)
	return nil
}

// AppendBulk adds records atomically. Fails entire batch on any duplicate.
func (s *RecordStore) AppendBulk(_ context.Context, records []*domain.Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := storage.CheckBatch(records); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// First pass: check against stored ids
	for _, r := range records {
		if _, exists := s.ids[r.ID]; exists {
			return storage.ErrDuplicateKey
		}
	}

	// Second pass: insert all
	for _, r := range records {
		s.insertLocked(r)
	}
	return nil
}

// insertLocked stores a copy of r after every record with the same or an
// earlier timestamp. Seq increases monotonically, so ties stay in insertion
// order.
func (s *RecordStore) insertLocked(r *domain.Record) {
	s.version++
	rec := r.Clone()
	rec.Seq = s.version
	r.Seq = rec.Seq

	i := sort.Search(len(s.ordered), func(i int) bool {
		return s.ordered[i].Timestamp.After(rec.Timestamp)
	})
	s.ordered = append(s.ordered, nil)
	copy(s.ordered[i+1:], s.ordered[i:])
	s.ordered[i] = rec
	s.ids[rec.ID] = struct{}{}
}

// windowLocked returns the sub-slice of records inside w.
func (s *RecordStore) windowLocked(w domain.TimeWindow) []*domain.Record {
	lo := sort.Search(len(s.ordered), func(i int) bool {
		return !s.ordered[i].Timestamp.Before(w.Start)
	})
	hi := sort.Search(len(s.ordered), func(i int) bool {
		return !s.ordered[i].Timestamp.Before(w.End)
	})
	if lo >= hi {
		return nil
	}
	return s.ordered[lo:hi]
}

// Query returns records matching q in (Timestamp, Seq) order.
// The window slice is copied under the read lock; kind and dimension
// matching happen lazily during iteration.
func (s *RecordStore) Query(_ context.Context, q storage.RecordQuery) (*storage.RecordSet, error) {
	if err := q.Window.Validate(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	window := s.windowLocked(q.Window)
	snapshot := make([]*domain.Record, len(window))
	copy(snapshot, window)

	return storage.NewRecordSet(s.version, snapshot, q.Matches), nil
}

// Count returns the number of records matching q.
func (s *RecordStore) Count(_ context.Context, q storage.RecordQuery) (int64, error) {
	if err := q.Window.Validate(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, r := range s.windowLocked(q.Window) {
		if q.Matches(r) {
			n++
		}
	}
	return n, nil
}

// Version returns the total number of records ever appended.
func (s *RecordStore) Version(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version, nil
}

var _ storage.RecordStore = (*RecordStore)(nil)
