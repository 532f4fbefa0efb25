// Package postgres stores records in PostgreSQL. The records table is guarded
// by a trigger that rejects UPDATE and DELETE.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"cloudboost-metrics/internal/storage"
)

// Pool is the connection pool shared by the record store and migrations.
type Pool struct {
	*pgxpool.Pool
}

// NewPool connects to dsn and verifies the connection. Pool sizing can be
// tuned through the usual pool_max_conns DSN parameter.
func NewPool(ctx context.Context, dsn string) (*Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConnIdleTime == 0 {
		cfg.MaxConnIdleTime = 5 * time.Minute
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Pool{Pool: pool}, nil
}

const (
	codeUniqueViolation = "23505"
	codeRaiseException  = "P0001"
)

// classify maps driver errors onto storage sentinels. Unrecognized errors
// are returned unchanged.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case codeUniqueViolation:
		return storage.ErrDuplicateKey
	case codeRaiseException:
		return fmt.Errorf("%w: %s", storage.ErrInvalidInput, pgErr.Message)
	}
	return err
}
