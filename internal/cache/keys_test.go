package cache

import (
	"testing"
	"time"

	"cloudboost-metrics/internal/domain"
)

func TestSnapshotKeyCanonical(t *testing.T) {
	w := domain.TimeWindow{Start: time.Unix(0, 0).UTC(), End: time.Unix(3600, 0).UTC()}
	a := SnapshotKey("deliveryRate", domain.DimensionFilter{domain.DimChannel: {"SMS", "WhatsApp"}}, w)
	b := SnapshotKey("deliveryRate", domain.DimensionFilter{domain.DimChannel: {"WhatsApp", "SMS"}, domain.DimRegion: {}}, w)
	if a != b {
		t.Fatalf("expected equivalent filters to share a key: %s != %s", a, b)
	}

	c := SnapshotKey("deliveryRate", domain.DimensionFilter{domain.DimChannel: {"SMS"}}, w)
	if a == c {
		t.Fatalf("expected different keys for different filters: %s", a)
	}

	w2 := domain.TimeWindow{Start: w.Start, End: w.End.Add(time.Second)}
	if a == SnapshotKey("deliveryRate", domain.DimensionFilter{domain.DimChannel: {"SMS", "WhatsApp"}}, w2) {
		t.Fatalf("expected different keys for different windows: %s", a)
	}
}

func TestSnapshotKeyValueWithComma(t *testing.T) {
	w := domain.TimeWindow{Start: time.Unix(0, 0).UTC(), End: time.Unix(3600, 0).UTC()}

	group := SnapshotKey("revenue", domain.DimensionFilter{domain.DimRegion: {"a,b"}}, w)
	parsed, err := domain.ParseDimensionFilter([]string{"region:a,b"})
	if err != nil {
		t.Fatalf("ParseDimensionFilter failed: %v", err)
	}
	if group == SnapshotKey("revenue", parsed, w) {
		t.Fatalf("expected region \"a,b\" and regions a or b to have different keys")
	}
}
