// Package ingestion feeds records into the store from Kafka topics and
// JSON-lines files.
package ingestion

import (
	"context"

	"cloudboost-metrics/internal/domain"
)

// Appender stores records atomically. *query.Service implements it.
type Appender interface {
	AppendBatch(ctx context.Context, source string, records []*domain.Record) error
}
