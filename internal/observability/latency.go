package observability

import (
	"sync"
	"time"

	"github.com/DataDog/sketches-go/ddsketch"
)

// sketchAccuracy is the relative accuracy of reported quantiles.
const sketchAccuracy = 0.01

// Quantiles summarizes observed latencies in milliseconds.
type Quantiles struct {
	Count float64 `json:"count"`
	P50   float64 `json:"p50Ms"`
	P90   float64 `json:"p90Ms"`
	P99   float64 `json:"p99Ms"`
	Max   float64 `json:"maxMs"`
}

// LatencyTracker keeps one DDSketch per operation.
type LatencyTracker struct {
	mu       sync.Mutex
	sketches map[string]*ddsketch.DDSketch
}

// NewLatencyTracker creates an empty tracker.
func NewLatencyTracker() *LatencyTracker {
	return &LatencyTracker{sketches: make(map[string]*ddsketch.DDSketch)}
}

// DefaultLatency backs the /status endpoint.
var DefaultLatency = NewLatencyTracker()

// Observe adds d to the sketch for operation.
func (t *LatencyTracker) Observe(operation string, d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	sketch, ok := t.sketches[operation]
	if !ok {
		var err error
		sketch, err = ddsketch.NewDefaultDDSketch(sketchAccuracy)
		if err != nil {
			return
		}
		t.sketches[operation] = sketch
	}
	ms := float64(d) / float64(time.Millisecond)
	if ms < 0 {
		ms = 0
	}
	_ = sketch.Add(ms)
}

// Snapshot returns quantiles per operation.
func (t *LatencyTracker) Snapshot() map[string]Quantiles {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]Quantiles, len(t.sketches))
	for op, sketch := range t.sketches {
		if sketch.IsEmpty() {
			continue
		}
		p50, _ := sketch.GetValueAtQuantile(0.50)
		p90, _ := sketch.GetValueAtQuantile(0.90)
		p99, _ := sketch.GetValueAtQuantile(0.99)
		max, _ := sketch.GetMaxValue()
		out[op] = Quantiles{
			Count: sketch.GetCount(),
			P50:   p50,
			P90:   p90,
			P99:   p99,
			Max:   max,
		}
	}
	return out
}
