package ingestion

import (
	"sort"

	"cloudboost-metrics/internal/domain"
)

// SortRecords orders records by (timestamp ASC, id ASC).
func SortRecords(records []*domain.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return compareRecords(records[i], records[j]) < 0
	})
}

func compareRecords(a, b *domain.Record) int {
	if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
		return c
	}
	switch {
	case a.ID < b.ID:
		return -1
	case a.ID > b.ID:
		return 1
	}
	return 0
}
