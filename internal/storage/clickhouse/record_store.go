package clickhouse

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"cloudboost-metrics/internal/domain"
	"cloudboost-metrics/internal/storage"
)

// RecordStore implements storage.RecordStore using ClickHouse.
//
// MergeTree does not enforce uniqueness, so id checks and seq assignment are
// serialized through mu. One writer process per table is assumed; under that
// assumption seq runs 1..N without gaps and equals the store version.
type RecordStore struct {
	conn *Conn

	mu  sync.Mutex
	seq uint64
}

// NewRecordStore creates a RecordStore and resumes seq from the table.
func NewRecordStore(ctx context.Context, conn *Conn) (*RecordStore, error) {
	var maxSeq uint64
	if err := conn.QueryRow(ctx, `SELECT max(seq) FROM records`).Scan(&maxSeq); err != nil {
		return nil, fmt.Errorf("read max seq: %w", err)
	}
	return &RecordStore{conn: conn, seq: maxSeq}, nil
}

// Compile-time interface check.
var _ storage.RecordStore = (*RecordStore)(nil)

// Append adds a record. Returns ErrDuplicateKey if the id exists.
func (s *RecordStore) Append(ctx context.Context, r *domain.Record) error {
	return s.AppendBulk(ctx, []*domain.Record{r})
}

// AppendBulk adds records in one insert block. Fails entire batch on any
// duplicate.
func (s *RecordStore) AppendBulk(ctx context.Context, records []*domain.Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := storage.CheckBatch(records); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	var existing uint64
	if err := s.conn.QueryRow(ctx, `SELECT count() FROM records WHERE has(?, id)`, ids).Scan(&existing); err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if existing > 0 {
		return storage.ErrDuplicateKey
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO records (seq, id, kind, ts_ns, dimensions, payload)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	next := s.seq
	for _, r := range records {
		next++
		dims := r.Dimensions
		if dims == nil {
			dims = map[string]string{}
		}
		err = batch.Append(
			next, r.ID, string(r.Kind), r.Timestamp.UnixNano(),
			dims, map[string]float64(r.Payload),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	for _, r := range records {
		s.seq++
		r.Seq = s.seq
	}
	return nil
}

// whereClause renders q as a SQL predicate with positional arguments.
func whereClause(q storage.RecordQuery) (string, []any) {
	conds := []string{"ts_ns >= ?", "ts_ns < ?"}
	args := []any{q.Window.Start.UnixNano(), q.Window.End.UnixNano()}

	if len(q.Kinds) > 0 {
		kinds := make([]string, len(q.Kinds))
		for i, k := range q.Kinds {
			kinds[i] = string(k)
		}
		conds = append(conds, "has(?, kind)")
		args = append(args, kinds)
	}

	filter := q.Filter.Normalize()
	dims := make([]string, 0, len(filter))
	for d := range filter {
		dims = append(dims, d)
	}
	sort.Strings(dims)
	for _, d := range dims {
		conds = append(conds, "mapContains(dimensions, ?) AND has(?, dimensions[?])")
		args = append(args, d, filter[d], d)
	}

	return strings.Join(conds, " AND "), args
}

// Query returns records matching q, ordered by ts ASC, seq ASC.
// Rows are bounded by the version read first, so appends racing the query
// are excluded.
func (s *RecordStore) Query(ctx context.Context, q storage.RecordQuery) (*storage.RecordSet, error) {
	if err := q.Window.Validate(); err != nil {
		return nil, err
	}

	version, err := s.Version(ctx)
	if err != nil {
		return nil, err
	}

	where, args := whereClause(q)
	args = append(args, version)
	query := `
		SELECT seq, id, kind, ts_ns, dimensions, payload
		FROM records
		WHERE ` + where + ` AND seq <= ?
		ORDER BY ts_ns ASC, seq ASC
	`
	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}
	return storage.NewRecordSet(version, records, nil), nil
}

// Count returns the number of records matching q.
func (s *RecordStore) Count(ctx context.Context, q storage.RecordQuery) (int64, error) {
	if err := q.Window.Validate(); err != nil {
		return 0, err
	}

	where, args := whereClause(q)
	var n uint64
	if err := s.conn.QueryRow(ctx, `SELECT count() FROM records WHERE `+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return int64(n), nil
}

// Version returns the total number of records ever appended.
func (s *RecordStore) Version(ctx context.Context) (uint64, error) {
	var n uint64
	if err := s.conn.QueryRow(ctx, `SELECT count() FROM records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("read version: %w", err)
	}
	return n, nil
}

// scanRecords scans multiple rows into a slice of Record.
func scanRecords(rows rowScanner) ([]*domain.Record, error) {
	var records []*domain.Record

	for rows.Next() {
		var (
			r       domain.Record
			kind    string
			tsNanos int64
			payload map[string]float64
		)
		err := rows.Scan(&r.Seq, &r.ID, &kind, &tsNanos, &r.Dimensions, &payload)
		if err != nil {
			return nil, fmt.Errorf("scan record row: %w", err)
		}
		r.Kind = domain.Kind(kind)
		r.Timestamp = time.Unix(0, tsNanos).UTC()
		r.Payload = domain.Payload(payload)
		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate record rows: %w", err)
	}

	return records, nil
}
