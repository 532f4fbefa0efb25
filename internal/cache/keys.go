package cache

import (
	"crypto/sha1"
	"encoding/hex"
	"strconv"
	"strings"

	"cloudboost-metrics/internal/domain"
)

// SnapshotKey builds the cache key for a metric snapshot. Equivalent filters
// (same accepted sets in any order) produce the same key.
func SnapshotKey(metricID string, filter domain.DimensionFilter, window domain.TimeWindow) string {
	return makeKey(
		"snapshot",
		strconv.Quote(strings.TrimSpace(metricID)),
		filter.Key(),
		window.Key(),
	)
}

func makeKey(parts ...string) string {
	joined := strings.Join(parts, "|")
	h := sha1.Sum([]byte(joined))
	return hex.EncodeToString(h[:])
}
