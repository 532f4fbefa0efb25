package storage

import (
	"errors"
	"testing"
	"time"

	"cloudboost-metrics/internal/domain"
)

func TestRecordQueryMatches(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	q := RecordQuery{
		Kinds:  []domain.Kind{domain.KindMessage},
		Filter: domain.DimensionFilter{domain.DimChannel: {"WhatsApp"}},
		Window: domain.TimeWindow{Start: start, End: start.Add(24 * time.Hour)},
	}
	r := &domain.Record{
		Kind:       domain.KindMessage,
		Timestamp:  start,
		Dimensions: map[string]string{domain.DimChannel: "WhatsApp"},
	}
	if !q.Matches(r) {
		t.Error("Expected record at window start to match")
	}

	r2 := *r
	r2.Timestamp = start.Add(24 * time.Hour)
	if q.Matches(&r2) {
		t.Error("Expected record at window end to be excluded")
	}

	r3 := *r
	r3.Kind = domain.KindRevenue
	if q.Matches(&r3) {
		t.Error("Expected record of other kind to be excluded")
	}
}

func TestRecordSetLazyFilter(t *testing.T) {
	records := []*domain.Record{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	set := NewRecordSet(3, records, func(r *domain.Record) bool { return r.ID != "b" })

	got := set.Collect()
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "c" {
		t.Errorf("Unexpected records: %v", got)
	}

	n := 0
	for range set.All() {
		n++
		break
	}
	if n != 1 {
		t.Errorf("Expected early stop after 1, got %d", n)
	}
}

func TestCheckBatch(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mk := func(id string) *domain.Record {
		return &domain.Record{ID: id, Kind: domain.KindRevenue, Timestamp: ts,
			Payload: domain.Payload{domain.FieldAmount: 1}}
	}

	if err := CheckBatch([]*domain.Record{mk("a"), mk("b")}); err != nil {
		t.Fatalf("CheckBatch failed: %v", err)
	}
	if err := CheckBatch([]*domain.Record{mk("a"), mk("a")}); !errors.Is(err, ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
	if err := CheckBatch([]*domain.Record{mk("")}); !errors.Is(err, domain.ErrInvalidRecord) {
		t.Errorf("Expected ErrInvalidRecord for missing id, got %v", err)
	}
}
