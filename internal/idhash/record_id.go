package idhash

import (
	"crypto/sha256"
	"strings"

	"github.com/mr-tron/base58"
)

// RecordID computes a deterministic record id from its source coordinates.
// Formula: base58(SHA256(part1|part2|...)).
// Re-delivery of the same source message yields the same id, which the store
// rejects as a duplicate.
func RecordID(parts ...string) string {
	hash := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return base58.Encode(hash[:])
}

// ReportID computes a deterministic id for a report over the given metric ids
// and window key.
func ReportID(windowKey string, metricIDs []string) string {
	return RecordID(append([]string{"report", windowKey}, metricIDs...)...)
}
