package api

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"cloudboost-metrics/internal/domain"
)

var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// parseWindow reads the from and to query parameters (RFC3339).
func parseWindow(q url.Values) (domain.TimeWindow, error) {
	from, to := q.Get("from"), q.Get("to")
	if from == "" || to == "" {
		return domain.TimeWindow{}, badRequest("from and to are required")
	}
	start, err := time.Parse(time.RFC3339, from)
	if err != nil {
		return domain.TimeWindow{}, badRequest("from: %v", err)
	}
	end, err := time.Parse(time.RFC3339, to)
	if err != nil {
		return domain.TimeWindow{}, badRequest("to: %v", err)
	}
	return domain.NewTimeWindow(start, end)
}

// parseFilter reads repeated filter=dim:v1,v2 parameters.
func parseFilter(q url.Values) (domain.DimensionFilter, error) {
	f, err := domain.ParseDimensionFilter(q["filter"])
	if err != nil {
		return nil, badRequest("%v", err)
	}
	return f, nil
}

// parseSeriesWindows reads either repeated window=from/to parameters or a
// from/to range split into bucket-sized windows.
func parseSeriesWindows(q url.Values, max int) ([]domain.TimeWindow, error) {
	if raw := q["window"]; len(raw) > 0 {
		if len(raw) > max {
			return nil, badRequest("%d windows exceeds limit of %d", len(raw), max)
		}
		out := make([]domain.TimeWindow, 0, len(raw))
		for _, s := range raw {
			w, err := domain.ParseTimeWindow(s)
			if err != nil {
				if errors.Is(err, domain.ErrEmptyWindow) {
					return nil, err
				}
				return nil, badRequest("%v", err)
			}
			out = append(out, w)
		}
		return out, nil
	}

	whole, err := parseWindow(q)
	if err != nil {
		return nil, err
	}
	bucket := 24 * time.Hour
	if b := q.Get("bucket"); b != "" {
		if bucket, err = time.ParseDuration(b); err != nil {
			return nil, badRequest("bucket: %v", err)
		}
	}
	windows, err := domain.SplitWindows(whole.Start, whole.End, bucket, max)
	if err != nil {
		return nil, badRequest("%v", err)
	}
	return windows, nil
}
