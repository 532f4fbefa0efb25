package migrations

import (
	"context"
	"errors"
	"fmt"

	chstore "cloudboost-metrics/internal/storage/clickhouse"
)

// RunClickhouseMigrations creates the database named in dsn when missing,
// applies the embedded schema one statement at a time and returns a
// connection to that database. Every statement must be idempotent; ClickHouse
// has no transactional DDL to record progress against.
func RunClickhouseMigrations(ctx context.Context, dsn string) (*chstore.Conn, error) {
	list, err := load(ClickhouseFS, "clickhouse")
	if err != nil {
		return nil, err
	}

	opts, err := chstore.ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	database := opts.Auth.Database
	if database == "" {
		return nil, errors.New("clickhouse dsn names no database")
	}

	// The target database may not exist yet, so create it from the default one.
	opts.Auth.Database = ""
	admin, err := chstore.Open(ctx, opts)
	if err != nil {
		return nil, err
	}
	err = admin.CreateDatabase(ctx, database)
	admin.Close()
	if err != nil {
		return nil, err
	}

	opts, err = chstore.ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	conn, err := chstore.Open(ctx, opts)
	if err != nil {
		return nil, err
	}
	for _, m := range list {
		for _, stmt := range statements(m.body) {
			if err := conn.Exec(ctx, stmt); err != nil {
				conn.Close()
				return nil, fmt.Errorf("apply migration %s: %w", m.name, err)
			}
		}
		logger().Info("migration applied", "backend", "clickhouse", "database", conn.Database(), "file", m.name)
	}
	return conn, nil
}
