package query

import (
	"sync"

	"cloudboost-metrics/internal/domain"
	"cloudboost-metrics/internal/storage"
)

// Hub signals subscribers when appended records fall inside the dependency
// span they watch. A signal means "recompute"; it carries no data, and
// pending signals coalesce.
type Hub struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]*subscription
}

type subscription struct {
	query storage.RecordQuery
	ch    chan struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[int]*subscription)}
}

// Subscribe registers interest in records matching q. The returned cancel
// function must be called to release the subscription.
func (h *Hub) Subscribe(q storage.RecordQuery) (<-chan struct{}, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	sub := &subscription{query: q, ch: make(chan struct{}, 1)}
	h.subs[id] = sub

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
		})
	}
}

// Notify signals every subscription matching at least one record.
func (h *Hub) Notify(records []*domain.Record) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, sub := range h.subs {
		for _, r := range records {
			if sub.query.Matches(r) {
				select {
				case sub.ch <- struct{}{}:
				default:
				}
				break
			}
		}
	}
}

// Len returns the number of active subscriptions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
