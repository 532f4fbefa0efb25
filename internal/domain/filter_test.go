package domain

import "testing"

func TestDimensionFilterMatches(t *testing.T) {
	dims := map[string]string{DimChannel: "WhatsApp", DimRegion: "Riyadh"}

	tests := []struct {
		name   string
		filter DimensionFilter
		want   bool
	}{
		{"empty filter", DimensionFilter{}, true},
		{"nil filter", nil, true},
		{"single match", DimensionFilter{DimChannel: {"WhatsApp"}}, true},
		{"set match", DimensionFilter{DimChannel: {"SMS", "WhatsApp"}}, true},
		{"all keys must match", DimensionFilter{DimChannel: {"WhatsApp"}, DimRegion: {"Jeddah"}}, false},
		{"missing dimension", DimensionFilter{DimPlatform: {"Instagram"}}, false},
		{"empty value set is unconstrained", DimensionFilter{DimPlatform: {}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Matches(dims); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDimensionFilterKeyCanonical(t *testing.T) {
	a := DimensionFilter{DimRegion: {"Jeddah", "Riyadh"}, DimChannel: {"SMS"}}
	b := DimensionFilter{DimChannel: {"SMS", "SMS"}, DimRegion: {"Riyadh", "Jeddah"}, DimPlatform: {}}
	if a.Key() != b.Key() {
		t.Errorf("Expected equal keys, got %q and %q", a.Key(), b.Key())
	}
}

func TestDimensionFilterKeySeparatorsInValues(t *testing.T) {
	single := DimensionFilter{DimRegion: {"a,b"}}
	pair := DimensionFilter{DimRegion: {"a", "b"}}
	if single.Key() == pair.Key() {
		t.Fatalf("Expected distinct keys, both are %q", single.Key())
	}

	injected := DimensionFilter{DimRegion: {`a";"channel"="x`}}
	split := DimensionFilter{DimRegion: {"a"}, DimChannel: {"x"}}
	if injected.Key() == split.Key() {
		t.Fatalf("Expected distinct keys, both are %q", injected.Key())
	}
}

func TestParseDimensionFilter(t *testing.T) {
	f, err := ParseDimensionFilter([]string{"region:Riyadh,Jeddah", "channel:SMS"})
	if err != nil {
		t.Fatalf("ParseDimensionFilter failed: %v", err)
	}
	if len(f[DimRegion]) != 2 || f[DimChannel][0] != "SMS" {
		t.Errorf("Unexpected filter: %v", f)
	}
	if _, err := ParseDimensionFilter([]string{"country:SA"}); err == nil {
		t.Error("Expected error for unknown dimension")
	}
}

func TestStatus(t *testing.T) {
	target, warning, critical := 95.0, 90.0, 80.0
	def := &MetricDefinition{ID: "deliveryRate", Target: &target, Warning: &warning, Critical: &critical}

	cases := map[float64]KPIStatus{
		75: StatusCritical,
		85: StatusWarning,
		92: StatusNormal,
		96: StatusTargetMet,
	}
	for v, want := range cases {
		if got := def.Status(Number(v)); got != want {
			t.Errorf("Status(%v) = %s, want %s", v, got, want)
		}
	}
	if got := def.Status(Undefined); got != StatusInsufficientData {
		t.Errorf("Status(undefined) = %s, want %s", got, StatusInsufficientData)
	}
}
