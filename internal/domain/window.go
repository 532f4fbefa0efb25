package domain

import (
	"fmt"
	"strings"
	"time"
)

// TimeWindow is the half-open interval [Start, End).
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewTimeWindow builds a window and rejects degenerate ones.
func NewTimeWindow(start, end time.Time) (TimeWindow, error) {
	w := TimeWindow{Start: start.UTC(), End: end.UTC()}
	if err := w.Validate(); err != nil {
		return TimeWindow{}, err
	}
	return w, nil
}

// Validate returns *EmptyWindowError when Start >= End.
func (w TimeWindow) Validate() error {
	if !w.Start.Before(w.End) {
		return &EmptyWindowError{Window: w}
	}
	return nil
}

// Duration returns the window length.
func (w TimeWindow) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Contains reports whether t falls in [Start, End).
func (w TimeWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Previous returns the adjacent window of equal length ending at Start.
func (w TimeWindow) Previous() TimeWindow {
	return TimeWindow{Start: w.Start.Add(-w.Duration()), End: w.Start}
}

// Span returns the smallest window covering both w and o.
func (w TimeWindow) Span(o TimeWindow) TimeWindow {
	out := w
	if o.Start.Before(out.Start) {
		out.Start = o.Start
	}
	if o.End.After(out.End) {
		out.End = o.End
	}
	return out
}

// Key returns a canonical string form used in cache keys.
func (w TimeWindow) Key() string {
	return fmt.Sprintf("%d/%d", w.Start.UnixNano(), w.End.UnixNano())
}

func (w TimeWindow) String() string {
	return w.Start.UTC().Format(time.RFC3339) + "/" + w.End.UTC().Format(time.RFC3339)
}

// ParseTimeWindow parses "start/end" with RFC3339 timestamps.
func ParseTimeWindow(s string) (TimeWindow, error) {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 {
		return TimeWindow{}, fmt.Errorf("window %q: expected start/end", s)
	}
	start, err := time.Parse(time.RFC3339, strings.TrimSpace(parts[0]))
	if err != nil {
		return TimeWindow{}, fmt.Errorf("window start: %w", err)
	}
	end, err := time.Parse(time.RFC3339, strings.TrimSpace(parts[1]))
	if err != nil {
		return TimeWindow{}, fmt.Errorf("window end: %w", err)
	}
	return NewTimeWindow(start, end)
}

// SplitWindows divides [start, end) into consecutive windows of length step.
// The last window is truncated at end. At most max windows are produced;
// max <= 0 means no limit.
func SplitWindows(start, end time.Time, step time.Duration, max int) ([]TimeWindow, error) {
	if step <= 0 {
		return nil, fmt.Errorf("step must be positive, got %s", step)
	}
	if err := (TimeWindow{Start: start, End: end}).Validate(); err != nil {
		return nil, err
	}
	var out []TimeWindow
	for t := start.UTC(); t.Before(end); t = t.Add(step) {
		if max > 0 && len(out) == max {
			return nil, fmt.Errorf("range %s/%s with step %s exceeds %d windows",
				start.Format(time.RFC3339), end.Format(time.RFC3339), step, max)
		}
		we := t.Add(step)
		if we.After(end) {
			we = end.UTC()
		}
		out = append(out, TimeWindow{Start: t, End: we})
	}
	return out, nil
}
