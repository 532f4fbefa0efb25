package domain

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is matching against the typed errors below.
var (
	ErrInvalidRecord   = errors.New("invalid record")
	ErrUnknownMetric   = errors.New("unknown metric")
	ErrDuplicateMetric = errors.New("duplicate metric")
	ErrEmptyWindow     = errors.New("empty window")

	// ErrInvalidDefinition is returned for structurally incomplete metric
	// definitions. It is wrapped with the offending id and reason.
	ErrInvalidDefinition = errors.New("invalid metric definition")
)

// InvalidRecordError is returned when a record is rejected at ingestion.
type InvalidRecordError struct {
	Field  string
	Reason string
}

func (e *InvalidRecordError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid record: %s", e.Reason)
	}
	return fmt.Sprintf("invalid record: %s: %s", e.Field, e.Reason)
}

func (e *InvalidRecordError) Is(target error) bool { return target == ErrInvalidRecord }

// UnknownMetricError is returned when a metric id is not registered.
type UnknownMetricError struct {
	ID string
}

func (e *UnknownMetricError) Error() string {
	return fmt.Sprintf("unknown metric %q", e.ID)
}

func (e *UnknownMetricError) Is(target error) bool { return target == ErrUnknownMetric }

// DuplicateMetricError is returned when a metric id is registered twice.
type DuplicateMetricError struct {
	ID string
}

func (e *DuplicateMetricError) Error() string {
	return fmt.Sprintf("metric %q already registered", e.ID)
}

func (e *DuplicateMetricError) Is(target error) bool { return target == ErrDuplicateMetric }

// EmptyWindowError is returned for windows whose start is not before their end.
type EmptyWindowError struct {
	Window TimeWindow
}

func (e *EmptyWindowError) Error() string {
	return fmt.Sprintf("empty window: start %s is not before end %s",
		e.Window.Start.Format("2006-01-02T15:04:05Z07:00"),
		e.Window.End.Format("2006-01-02T15:04:05Z07:00"))
}

func (e *EmptyWindowError) Is(target error) bool { return target == ErrEmptyWindow }
