package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"cloudboost-metrics/internal/domain"
	"cloudboost-metrics/internal/storage"
)

// RecordStore implements storage.RecordStore using PostgreSQL.
// Dimensions and payload are stored as JSONB; seq is a BIGSERIAL.
type RecordStore struct {
	pool *Pool
}

// NewRecordStore creates a new RecordStore.
func NewRecordStore(pool *Pool) *RecordStore {
	return &RecordStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RecordStore = (*RecordStore)(nil)

const insertRecordQuery = `
	INSERT INTO records (id, kind, ts_ns, dimensions, payload)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING seq
`

// execer is satisfied by both *Pool and pgx.Tx.
type execer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func insertRecord(ctx context.Context, db execer, r *domain.Record) error {
	dims := r.Dimensions
	if dims == nil {
		dims = map[string]string{}
	}
	var seq int64
	err := db.QueryRow(ctx, insertRecordQuery,
		r.ID,
		string(r.Kind),
		r.Timestamp.UnixNano(),
		dims,
		map[string]float64(r.Payload),
	).Scan(&seq)
	if err != nil {
		return classify(err)
	}
	r.Seq = uint64(seq)
	return nil
}

// Append adds a record. Returns ErrDuplicateKey if the id exists.
func (s *RecordStore) Append(ctx context.Context, r *domain.Record) error {
	if err := storage.CheckRecord(r); err != nil {
		return err
	}
	if err := insertRecord(ctx, s.pool, r); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return err
		}
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

// AppendBulk adds records atomically. Fails entire batch on any duplicate.
func (s *RecordStore) AppendBulk(ctx context.Context, records []*domain.Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := storage.CheckBatch(records); err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, r := range records {
		if err := insertRecord(ctx, tx, r); err != nil {
			if errors.Is(err, storage.ErrDuplicateKey) {
				return err
			}
			return fmt.Errorf("insert record in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// whereClause renders q as a SQL predicate with positional arguments.
// Timestamps are compared as unix nanoseconds, matching the ts_ns column.
func whereClause(q storage.RecordQuery) (string, []any) {
	conds := []string{"ts_ns >= $1", "ts_ns < $2"}
	args := []any{q.Window.Start.UnixNano(), q.Window.End.UnixNano()}

	if len(q.Kinds) > 0 {
		kinds := make([]string, len(q.Kinds))
		for i, k := range q.Kinds {
			kinds[i] = string(k)
		}
		args = append(args, kinds)
		conds = append(conds, fmt.Sprintf("kind = ANY($%d)", len(args)))
	}

	filter := q.Filter.Normalize()
	dims := make([]string, 0, len(filter))
	for d := range filter {
		dims = append(dims, d)
	}
	sort.Strings(dims)
	for _, d := range dims {
		args = append(args, d, filter[d])
		conds = append(conds, fmt.Sprintf("dimensions->>$%d::text = ANY($%d)", len(args)-1, len(args)))
	}

	return strings.Join(conds, " AND "), args
}

// Query returns records matching q, ordered by timestamp then seq.
// The rows and the version are read in one REPEATABLE READ transaction.
func (s *RecordStore) Query(ctx context.Context, q storage.RecordQuery) (*storage.RecordSet, error) {
	if err := q.Window.Validate(); err != nil {
		return nil, err
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var version int64
	if err := tx.QueryRow(ctx, `SELECT count(*) FROM records`).Scan(&version); err != nil {
		return nil, fmt.Errorf("read version: %w", err)
	}

	where, args := whereClause(q)
	query := `
		SELECT seq, id, kind, ts_ns, dimensions, payload
		FROM records
		WHERE ` + where + `
		ORDER BY ts_ns ASC, seq ASC
	`
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return storage.NewRecordSet(uint64(version), records, nil), nil
}

// Count returns the number of records matching q.
func (s *RecordStore) Count(ctx context.Context, q storage.RecordQuery) (int64, error) {
	if err := q.Window.Validate(); err != nil {
		return 0, err
	}

	where, args := whereClause(q)
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM records WHERE `+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

// Version returns the total number of records ever appended.
func (s *RecordStore) Version(ctx context.Context) (uint64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("read version: %w", err)
	}
	return uint64(n), nil
}

// scanRecords scans multiple rows into a slice of Record.
func scanRecords(rows pgx.Rows) ([]*domain.Record, error) {
	var records []*domain.Record

	for rows.Next() {
		var (
			r    domain.Record
			seq  int64
			ts   int64
			kind string
		)
		err := rows.Scan(
			&seq,
			&r.ID,
			&kind,
			&ts,
			&r.Dimensions,
			&r.Payload,
		)
		if err != nil {
			return nil, fmt.Errorf("scan record row: %w", err)
		}
		r.Seq = uint64(seq)
		r.Kind = domain.Kind(kind)
		r.Timestamp = time.Unix(0, ts).UTC()
		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate record rows: %w", err)
	}

	return records, nil
}
