package postgres_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cloudboost-metrics/internal/domain"
	"cloudboost-metrics/internal/storage"
	"cloudboost-metrics/internal/storage/migrations"
	"cloudboost-metrics/internal/storage/postgres"
)

var base = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func message(id string, at time.Time, channel string, sent, delivered float64) *domain.Record {
	return &domain.Record{
		ID:         id,
		Kind:       domain.KindMessage,
		Timestamp:  at,
		Dimensions: map[string]string{domain.DimChannel: channel, domain.DimRegion: "Riyadh"},
		Payload:    domain.Payload{domain.FieldSent: sent, domain.FieldDelivered: delivered},
	}
}

func window() domain.TimeWindow {
	return domain.TimeWindow{Start: base, End: base.Add(24 * time.Hour)}
}

func TestRecordStore_AppendAndQuery(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := postgres.NewRecordStore(pool)

	r := message("m1", base.Add(time.Hour), "WhatsApp", 650, 618)
	require.NoError(t, store.Append(ctx, r))
	assert.NotZero(t, r.Seq)

	require.NoError(t, store.Append(ctx, message("m2", base.Add(2*time.Hour), "SMS", 100, 90)))

	set, err := store.Query(ctx, storage.RecordQuery{
		Kinds:  []domain.Kind{domain.KindMessage},
		Filter: domain.DimensionFilter{domain.DimChannel: {"WhatsApp"}},
		Window: window(),
	})
	require.NoError(t, err)

	got := set.Collect()
	require.Len(t, got, 1)
	assert.Equal(t, "m1", got[0].ID)
	assert.Equal(t, domain.KindMessage, got[0].Kind)
	assert.Equal(t, "WhatsApp", got[0].Dimensions[domain.DimChannel])
	assert.InDelta(t, 618, got[0].Payload[domain.FieldDelivered], 0.0001)
	assert.True(t, got[0].Timestamp.Equal(base.Add(time.Hour)))
	assert.Equal(t, uint64(2), set.Version)
}

func TestRecordStore_DuplicateKey(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := postgres.NewRecordStore(pool)

	require.NoError(t, store.Append(ctx, message("m1", base, "SMS", 1, 1)))
	err := store.Append(ctx, message("m1", base, "SMS", 2, 2))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestRecordStore_AppendBulkAtomic(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := postgres.NewRecordStore(pool)

	require.NoError(t, store.Append(ctx, message("existing", base, "SMS", 1, 1)))

	err := store.AppendBulk(ctx, []*domain.Record{
		message("new", base, "SMS", 1, 1),
		message("existing", base, "SMS", 1, 1),
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	n, err := store.Count(ctx, storage.RecordQuery{Window: window()})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestRecordStore_OrderingAndCount(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := postgres.NewRecordStore(pool)

	at := base.Add(time.Hour)
	var batch []*domain.Record
	for i := 0; i < 5; i++ {
		batch = append(batch, message(fmt.Sprintf("tie-%d", i), at, "SMS", 1, 1))
	}
	batch = append(batch, message("early", base, "Email", 1, 1))
	require.NoError(t, store.AppendBulk(ctx, batch))

	set, err := store.Query(ctx, storage.RecordQuery{Window: window()})
	require.NoError(t, err)
	got := set.Collect()
	require.Len(t, got, 6)
	assert.Equal(t, "early", got[0].ID)
	for i := 1; i < len(got); i++ {
		assert.Equal(t, fmt.Sprintf("tie-%d", i-1), got[i].ID)
	}

	n, err := store.Count(ctx, storage.RecordQuery{
		Filter: domain.DimensionFilter{domain.DimChannel: {"SMS", "Email"}},
		Window: domain.TimeWindow{Start: base.Add(time.Minute), End: base.Add(2 * time.Hour)},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	v, err := store.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(6), v)
}

func TestRecordStore_NanosecondTimestamps(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := postgres.NewRecordStore(pool)

	// Both fall in the same microsecond; the window ends between them.
	inside := base.Add(time.Hour + 500)
	end := base.Add(time.Hour + 800)
	require.NoError(t, store.Append(ctx, message("in", inside, "SMS", 1, 1)))
	require.NoError(t, store.Append(ctx, message("out", end, "SMS", 1, 1)))

	set, err := store.Query(ctx, storage.RecordQuery{Window: domain.TimeWindow{Start: base, End: end}})
	require.NoError(t, err)
	got := set.Collect()
	require.Len(t, got, 1)
	assert.Equal(t, "in", got[0].ID)
	assert.True(t, got[0].Timestamp.Equal(inside), "timestamp %s", got[0].Timestamp)
}

func TestRecordStore_RejectsUpdate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := postgres.NewRecordStore(pool)
	require.NoError(t, store.Append(ctx, message("m1", base, "SMS", 1, 1)))

	_, err := pool.Exec(ctx, `UPDATE records SET kind = 'Revenue' WHERE id = 'm1'`)
	assert.Error(t, err)
	_, err = pool.Exec(ctx, `DELETE FROM records WHERE id = 'm1'`)
	assert.Error(t, err)
}

func TestMigrations_RerunIsNoop(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, postgres.NewRecordStore(pool).Append(ctx, message("m1", base, "SMS", 1, 1)))
	require.NoError(t, migrations.RunPostgresMigrations(ctx, pool))

	var applied int
	require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM schema_migrations`).Scan(&applied))
	assert.Equal(t, 1, applied)

	v, err := postgres.NewRecordStore(pool).Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), v)
}
