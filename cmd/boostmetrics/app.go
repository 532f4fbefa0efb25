package main

import (
	"context"
	"fmt"
	"log/slog"

	"cloudboost-metrics/internal/cache"
	"cloudboost-metrics/internal/config"
	"cloudboost-metrics/internal/ingestion"
	"cloudboost-metrics/internal/logging"
	"cloudboost-metrics/internal/metrics"
	"cloudboost-metrics/internal/observability"
	"cloudboost-metrics/internal/query"
	"cloudboost-metrics/internal/registry"
	"cloudboost-metrics/internal/storage"
	chstore "cloudboost-metrics/internal/storage/clickhouse"
	"cloudboost-metrics/internal/storage/memory"
	"cloudboost-metrics/internal/storage/migrations"
	pgstore "cloudboost-metrics/internal/storage/postgres"
)

// app holds the single engine instance and everything wired around it.
type app struct {
	registry *registry.Registry
	store    storage.RecordStore
	engine   *metrics.Engine
	service  *query.Service
	log      *slog.Logger
	close    func()
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	log := logging.Component("app")

	reg := registry.Default()
	if path := cfg.Metrics.DefinitionsFile; path != "" {
		n, err := reg.LoadFile(path)
		if err != nil {
			return nil, fmt.Errorf("load metric definitions: %w", err)
		}
		log.Info("metric definitions loaded", "file", path, "count", n)
	}
	reg.Seal()

	store, closeStore, err := openStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	engine := metrics.NewEngine(reg, store)
	snapshots := cache.New(engine, store, observability.CacheObserver{})
	svc := query.NewService(reg, engine, snapshots, query.Config{
		SeriesConcurrency: cfg.Query.SeriesConcurrency,
		MaxSeriesWindows:  cfg.Query.MaxSeriesWindows,
	})

	log.Info("engine ready", "store", cfg.Store.Backend, "metrics", len(reg.List()))
	return &app{
		registry: reg,
		store:    store,
		engine:   engine,
		service:  svc,
		log:      log,
		close:    closeStore,
	}, nil
}

func openStore(ctx context.Context, sc config.StoreConfig) (storage.RecordStore, func(), error) {
	switch sc.Backend {
	case config.BackendPostgres:
		pool, err := pgstore.NewPool(ctx, sc.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		if sc.Migrate {
			if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
				pool.Close()
				return nil, nil, err
			}
		}
		return pgstore.NewRecordStore(pool), pool.Close, nil

	case config.BackendClickHouse:
		var (
			conn *chstore.Conn
			err  error
		)
		if sc.Migrate {
			conn, err = migrations.RunClickhouseMigrations(ctx, sc.ClickHouseDSN)
		} else {
			conn, err = chstore.NewConn(ctx, sc.ClickHouseDSN)
		}
		if err != nil {
			return nil, nil, fmt.Errorf("connect clickhouse: %w", err)
		}
		store, err := chstore.NewRecordStore(ctx, conn)
		if err != nil {
			conn.Close()
			return nil, nil, err
		}
		return store, func() { conn.Close() }, nil
	}
	return memory.NewRecordStore(), func() {}, nil
}

// preload ingests JSON-lines files, used to seed the memory backend for
// one-shot commands.
func (a *app) preload(ctx context.Context, files []string) error {
	if len(files) == 0 {
		return nil
	}
	m := ingestion.NewManager(a.service, "file")
	for _, f := range files {
		if _, err := ingestPath(ctx, m, f, 0); err != nil {
			return err
		}
	}
	return nil
}
