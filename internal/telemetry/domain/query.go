package telemetry

import (
	"context"
	"time"
)

// QueryParams filters a telemetry fetch. At least one filter must be set.
// The time range is half-open: [TimeFrom, TimeTo).
type QueryParams struct {
	TripID   *int64
	TimeFrom *time.Time
	TimeTo   *time.Time
}

// Shape identifies which filters are present, independent of their values.
type Shape uint8

const (
	ShapeTripID Shape = 1 << iota
	ShapeTimeFrom
	ShapeTimeTo
)

// Shape returns the filter shape of the params.
func (p QueryParams) Shape() Shape {
	var shape Shape
	if p.TripID != nil {
		shape |= ShapeTripID
	}
	if p.TimeFrom != nil {
		shape |= ShapeTimeFrom
	}
	if p.TimeTo != nil {
		shape |= ShapeTimeTo
	}
	return shape
}

// Validate rejects params without any filter.
func (p QueryParams) Validate() error {
	if p.Shape() == 0 {
		return ErrInvalidQuery
	}
	return nil
}

// ForTrip builds params for one trip in [from, to).
func ForTrip(tripID int64, from, to time.Time) QueryParams {
	return QueryParams{TripID: &tripID, TimeFrom: &from, TimeTo: &to}
}

// ForRange builds params for all trips in [from, to).
func ForRange(from, to time.Time) QueryParams {
	return QueryParams{TimeFrom: &from, TimeTo: &to}
}

// TelemetryQuery fetches telemetry samples ordered by time ascending.
type TelemetryQuery interface {
	Fetch(ctx context.Context, params QueryParams) ([]Sample, error)
}

// TelemetryRepository persists telemetry samples.
type TelemetryRepository interface {
	InsertSamples(ctx context.Context, samples []Sample) error
}
