package telemetry

import "errors"

var (
	// ErrInvalidQuery is returned when a fetch carries no filter at all.
	ErrInvalidQuery = errors.New("telemetry: query requires trip_id, time_from or time_to")
	// ErrDataSourceUnavailable wraps store failures while fetching telemetry.
	ErrDataSourceUnavailable = errors.New("telemetry: data source unavailable")
	// ErrUnknownColumn is returned for columns that are not boolean status flags.
	ErrUnknownColumn = errors.New("telemetry: unknown status column")
	// ErrTripNotFound is returned when a trip id has no trips row.
	ErrTripNotFound = errors.New("telemetry: trip not found")
)
