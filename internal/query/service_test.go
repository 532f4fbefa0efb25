package query

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"cloudboost-metrics/internal/cache"
	"cloudboost-metrics/internal/domain"
	"cloudboost-metrics/internal/metrics"
	"cloudboost-metrics/internal/registry"
	"cloudboost-metrics/internal/storage"
	"cloudboost-metrics/internal/storage/memory"
)

var march = domain.TimeWindow{
	Start: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	reg := registry.Default()
	store := memory.NewRecordStore()
	engine := metrics.NewEngine(reg, store)
	return NewService(reg, engine, cache.New(engine, store, nil), Config{})
}

func message(id, channel string, at time.Time, sent, delivered float64) *domain.Record {
	return &domain.Record{
		ID:         id,
		Kind:       domain.KindMessage,
		Timestamp:  at,
		Dimensions: map[string]string{domain.DimChannel: channel},
		Payload:    domain.Payload{domain.FieldSent: sent, domain.FieldDelivered: delivered},
	}
}

func TestGetMetric_RoundsAndClassifies(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	if err := s.Append(ctx, message("m1", "sms", march.Start, 1200, 1141)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	res, err := s.GetMetric(ctx, "deliveryRate", nil, march)
	if err != nil {
		t.Fatalf("GetMetric failed: %v", err)
	}
	if !res.Value.Defined || res.Value.Number != 95.08 {
		t.Errorf("expected 95.08, got %s", res.Value)
	}
	if res.Unit != domain.UnitPercent {
		t.Errorf("expected percent unit, got %s", res.Unit)
	}
	if res.Status != domain.StatusTargetMet {
		t.Errorf("expected target status, got %s", res.Status)
	}
	if res.RecordCount != 1 {
		t.Errorf("expected 1 record, got %d", res.RecordCount)
	}
}

func TestGetMetric_UndefinedIsInsufficientData(t *testing.T) {
	s := newTestService(t)

	res, err := s.GetMetric(context.Background(), "deliveryRate", nil, march)
	if err != nil {
		t.Fatalf("GetMetric failed: %v", err)
	}
	if res.Value.Defined {
		t.Errorf("expected undefined value, got %s", res.Value)
	}
	if res.Status != domain.StatusInsufficientData {
		t.Errorf("expected insufficient data, got %s", res.Status)
	}
}

func TestGetMetric_Errors(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	if _, err := s.GetMetric(ctx, "nope", nil, march); !errors.Is(err, domain.ErrUnknownMetric) {
		t.Errorf("expected ErrUnknownMetric, got %v", err)
	}
	empty := domain.TimeWindow{Start: march.End, End: march.Start}
	if _, err := s.GetMetric(ctx, "revenue", nil, empty); !errors.Is(err, domain.ErrEmptyWindow) {
		t.Errorf("expected ErrEmptyWindow, got %v", err)
	}
}

func TestAppend_AssignsID(t *testing.T) {
	s := newTestService(t)
	r := &domain.Record{
		Kind:      domain.KindRevenue,
		Timestamp: march.Start,
		Payload:   domain.Payload{domain.FieldAmount: 10},
	}
	if err := s.Append(context.Background(), r); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if r.ID == "" {
		t.Fatal("expected generated id")
	}
}

func TestAppend_RejectsDuplicate(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	if err := s.Append(ctx, message("m1", "sms", march.Start, 10, 9)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	err := s.Append(ctx, message("m1", "sms", march.Start, 10, 9))
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestGetSeries_PreservesOrder(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	windows, err := domain.SplitWindows(march.Start, march.Start.Add(5*24*time.Hour), 24*time.Hour, 0)
	if err != nil {
		t.Fatalf("SplitWindows failed: %v", err)
	}
	var batch []*domain.Record
	for i, w := range windows {
		batch = append(batch, &domain.Record{
			ID:        fmt.Sprintf("r%d", i),
			Kind:      domain.KindRevenue,
			Timestamp: w.Start.Add(time.Hour),
			Payload:   domain.Payload{domain.FieldAmount: float64(i + 1)},
		})
	}
	if err := s.AppendBatch(ctx, "test", batch); err != nil {
		t.Fatalf("AppendBatch failed: %v", err)
	}

	series, err := s.GetSeries(ctx, "revenue", nil, windows)
	if err != nil {
		t.Fatalf("GetSeries failed: %v", err)
	}
	if len(series) != len(windows) {
		t.Fatalf("expected %d results, got %d", len(windows), len(series))
	}
	for i, res := range series {
		if res.Window != windows[i] {
			t.Errorf("result %d: window %s, want %s", i, res.Window, windows[i])
		}
		if res.Value.Number != float64(i+1) {
			t.Errorf("result %d: expected %d, got %s", i, i+1, res.Value)
		}
	}
}

func TestGetSeries_RejectsEmptyWindow(t *testing.T) {
	s := newTestService(t)
	windows := []domain.TimeWindow{march, {Start: march.End, End: march.End}}
	if _, err := s.GetSeries(context.Background(), "revenue", nil, windows); !errors.Is(err, domain.ErrEmptyWindow) {
		t.Errorf("expected ErrEmptyWindow, got %v", err)
	}
}

func TestGetSeries_WindowLimit(t *testing.T) {
	reg := registry.Default()
	store := memory.NewRecordStore()
	engine := metrics.NewEngine(reg, store)
	s := NewService(reg, engine, cache.New(engine, store, nil), Config{MaxSeriesWindows: 2})

	windows := []domain.TimeWindow{march, march, march}
	if _, err := s.GetSeries(context.Background(), "revenue", nil, windows); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestGetRollup_GroupsSortedAndFiltered(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	batch := []*domain.Record{
		message("m1", "whatsapp", march.Start, 100, 99),
		message("m2", "sms", march.Start, 100, 90),
		message("m3", "email", march.Start, 100, 50),
	}
	if err := s.AppendBatch(ctx, "test", batch); err != nil {
		t.Fatalf("AppendBatch failed: %v", err)
	}

	rollup, err := s.GetRollup(ctx, "deliveryRate", nil, march, domain.DimChannel)
	if err != nil {
		t.Fatalf("GetRollup failed: %v", err)
	}
	want := []string{"email", "sms", "whatsapp"}
	if len(rollup) != len(want) {
		t.Fatalf("expected %d groups, got %d", len(want), len(rollup))
	}
	for i, g := range rollup {
		if g.DimensionValue != want[i] {
			t.Errorf("group %d: expected %s, got %s", i, want[i], g.DimensionValue)
		}
	}
	if rollup[1].Result.Value.Number != 90 {
		t.Errorf("expected sms 90, got %s", rollup[1].Result.Value)
	}

	filtered, err := s.GetRollup(ctx, "deliveryRate", domain.DimensionFilter{domain.DimChannel: {"sms", "email"}}, march, domain.DimChannel)
	if err != nil {
		t.Fatalf("GetRollup failed: %v", err)
	}
	if len(filtered) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(filtered))
	}

	if _, err := s.GetRollup(ctx, "deliveryRate", nil, march, "color"); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestWatch_SignalsOnRelevantAppend(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	ch, cancel, err := s.Watch("deliveryRate", domain.DimensionFilter{domain.DimChannel: {"sms"}}, march)
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	defer cancel()

	if err := s.Append(ctx, message("m1", "email", march.Start, 1, 1)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	select {
	case <-ch:
		t.Fatal("unexpected signal for unrelated record")
	default:
	}

	if err := s.Append(ctx, message("m2", "sms", march.Start, 1, 1)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	select {
	case <-ch:
	default:
		t.Fatal("expected signal for matching record")
	}

	cancel()
	if n := s.Subscribers(); n != 0 {
		t.Errorf("expected 0 subscribers after cancel, got %d", n)
	}
}

func TestListMetrics(t *testing.T) {
	s := newTestService(t)
	list := s.ListMetrics()
	if len(list) == 0 {
		t.Fatal("expected built-in metrics")
	}
	for i := 1; i < len(list); i++ {
		if list[i-1].ID >= list[i].ID {
			t.Errorf("metrics not sorted: %s before %s", list[i-1].ID, list[i].ID)
		}
	}
}

func revenue(id, region string, at time.Time, amount float64) *domain.Record {
	return &domain.Record{
		ID:         id,
		Kind:       domain.KindRevenue,
		Timestamp:  at,
		Dimensions: map[string]string{domain.DimRegion: region},
		Payload:    domain.Payload{domain.FieldAmount: amount},
	}
}

func TestGetRollup_ServesLaterGroupQueries(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	batch := []*domain.Record{
		revenue("r1", "riyadh", march.Start, 10),
		revenue("r2", "jeddah", march.Start, 20),
		revenue("r3", "riyadh", march.Start.Add(time.Hour), 5),
	}
	if err := s.AppendBatch(ctx, "test", batch); err != nil {
		t.Fatalf("AppendBatch failed: %v", err)
	}

	if _, err := s.GetRollup(ctx, "revenue", nil, march, domain.DimRegion); err != nil {
		t.Fatalf("GetRollup failed: %v", err)
	}
	computed := s.Computations()
	hits := s.CacheStats().Hits

	res, err := s.GetMetric(ctx, "revenue", domain.DimensionFilter{domain.DimRegion: {"riyadh"}}, march)
	if err != nil {
		t.Fatalf("GetMetric failed: %v", err)
	}
	if res.Value.Number != 15 {
		t.Errorf("expected 15, got %s", res.Value)
	}
	if s.Computations() != computed {
		t.Errorf("expected group query to reuse rollup snapshot, computations %d -> %d", computed, s.Computations())
	}
	if s.CacheStats().Hits != hits+1 {
		t.Errorf("expected a cache hit, stats %+v", s.CacheStats())
	}
}

func TestGetRollup_CommaInGroupValue(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	batch := []*domain.Record{
		revenue("r1", "a,b", march.Start, 2),
		revenue("r2", "a", march.Start, 1),
		revenue("r3", "b", march.Start, 4),
	}
	if err := s.AppendBatch(ctx, "test", batch); err != nil {
		t.Fatalf("AppendBatch failed: %v", err)
	}

	if _, err := s.GetRollup(ctx, "revenue", nil, march, domain.DimRegion); err != nil {
		t.Fatalf("GetRollup failed: %v", err)
	}
	filter, err := domain.ParseDimensionFilter([]string{"region:a,b"})
	if err != nil {
		t.Fatalf("ParseDimensionFilter failed: %v", err)
	}
	res, err := s.GetMetric(ctx, "revenue", filter, march)
	if err != nil {
		t.Fatalf("GetMetric failed: %v", err)
	}
	if res.Value.Number != 5 {
		t.Errorf("expected a or b to total 5, got %s", res.Value)
	}
}

func TestGetMetric_RevenueGrowth(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	feb := march.Previous()
	batch := []*domain.Record{
		revenue("prev", "riyadh", feb.Start.Add(24*time.Hour), 45000),
		revenue("cur", "riyadh", march.Start.Add(24*time.Hour), 52000),
	}
	if err := s.AppendBatch(ctx, "test", batch); err != nil {
		t.Fatalf("AppendBatch failed: %v", err)
	}

	res, err := s.GetMetric(ctx, "revenueGrowth", nil, march)
	if err != nil {
		t.Fatalf("GetMetric failed: %v", err)
	}
	if !res.Value.Defined || res.Value.Number != 15.56 {
		t.Errorf("expected 15.56, got %s", res.Value)
	}
	if res.Status != domain.StatusTargetMet {
		t.Errorf("expected target status, got %s", res.Status)
	}
}
