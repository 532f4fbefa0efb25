package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cloudboost-metrics/internal/domain"
	"cloudboost-metrics/internal/logging"
	"cloudboost-metrics/internal/storage"
)

// Result counts the outcome of an ingestion run.
type Result struct {
	Read       int `json:"read"`
	Appended   int `json:"appended"`
	Invalid    int `json:"invalid"`
	Duplicates int `json:"duplicates"`
}

func (r *Result) add(o Result) {
	r.Read += o.Read
	r.Appended += o.Appended
	r.Invalid += o.Invalid
	r.Duplicates += o.Duplicates
}

// Manager appends batches in deterministic order. When a batch is rejected
// because of an invalid or duplicate record, it falls back to appending one
// record at a time so the remaining records still land.
type Manager struct {
	appender Appender
	source   string
	log      *slog.Logger
}

// NewManager creates a manager that labels appends with source.
func NewManager(appender Appender, source string) *Manager {
	return &Manager{
		appender: appender,
		source:   source,
		log:      logging.Component("ingestion").With("source", source),
	}
}

// IngestBatch appends records sorted by (timestamp, id).
// Errors other than invalid or duplicate records abort the batch.
func (m *Manager) IngestBatch(ctx context.Context, records []*domain.Record) (Result, error) {
	res := Result{Read: len(records)}
	if len(records) == 0 {
		return res, nil
	}

	SortRecords(records)

	err := m.appender.AppendBatch(ctx, m.source, records)
	if err == nil {
		res.Appended = len(records)
		return res, nil
	}
	if !rejected(err) {
		return res, fmt.Errorf("append batch of %d: %w", len(records), err)
	}

	m.log.Debug("batch rejected, appending individually", "size", len(records), "error", err)
	for _, r := range records {
		err := m.appender.AppendBatch(ctx, m.source, []*domain.Record{r})
		switch {
		case err == nil:
			res.Appended++
		case errors.Is(err, storage.ErrDuplicateKey):
			res.Duplicates++
		case errors.Is(err, domain.ErrInvalidRecord):
			res.Invalid++
			m.log.Warn("record rejected", "id", r.ID, "error", err)
		default:
			return res, fmt.Errorf("append record %s: %w", r.ID, err)
		}
	}
	return res, nil
}

// IngestRecords appends records in batches of batchSize.
func (m *Manager) IngestRecords(ctx context.Context, records []*domain.Record, batchSize int) (Result, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	var total Result
	for start := 0; start < len(records); start += batchSize {
		end := min(start+batchSize, len(records))
		res, err := m.IngestBatch(ctx, records[start:end])
		total.add(res)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func rejected(err error) bool {
	return errors.Is(err, domain.ErrInvalidRecord) || errors.Is(err, storage.ErrDuplicateKey)
}
