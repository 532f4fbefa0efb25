package ingestion

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"cloudboost-metrics/internal/domain"
	"cloudboost-metrics/internal/idhash"
	"cloudboost-metrics/internal/observability"
)

// DefaultBatchSize is the number of lines appended per batch.
const DefaultBatchSize = 500

// maxLineBytes bounds a single JSON-lines record.
const maxLineBytes = 1 << 20

// IngestFile appends the JSON-lines records in path.
func (m *Manager) IngestFile(ctx context.Context, path string, batchSize int) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return m.IngestJSONL(ctx, f, filepath.Base(path), batchSize)
}

// IngestJSONL reads one record per line from r. Records without an id get a
// deterministic one derived from name and line number, so re-ingesting the
// same input is idempotent. Lines that do not decode count as invalid.
func (m *Manager) IngestJSONL(ctx context.Context, r io.Reader, name string, batchSize int) (Result, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	var (
		total Result
		batch = make([]*domain.Record, 0, batchSize)
		line  int
	)
	flush := func() error {
		res, err := m.IngestBatch(ctx, batch)
		total.add(res)
		batch = batch[:0]
		return err
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 || raw[0] == '#' {
			continue
		}

		var rec domain.Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			total.Read++
			total.Invalid++
			observability.RecordRejected(m.source, "decode")
			m.log.Warn("line rejected", "file", name, "line", line, "error", err)
			continue
		}
		if rec.ID == "" {
			rec.ID = idhash.RecordID(name, strconv.Itoa(line))
		}
		batch = append(batch, &rec)

		if len(batch) == batchSize {
			if err := flush(); err != nil {
				return total, err
			}
		}
		if err := ctx.Err(); err != nil {
			return total, err
		}
	}
	if err := sc.Err(); err != nil {
		return total, fmt.Errorf("read %s line %d: %w", name, line+1, err)
	}
	if err := flush(); err != nil {
		return total, err
	}

	m.log.Info("file ingested",
		"file", name,
		"read", total.Read,
		"appended", total.Appended,
		"invalid", total.Invalid,
		"duplicates", total.Duplicates,
	)
	return total, nil
}
