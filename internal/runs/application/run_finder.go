package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"ztbus-analyser/internal/observability/metrics"
	runs "ztbus-analyser/internal/runs/domain"
	telemetry "ztbus-analyser/internal/telemetry/domain"
	windows "ztbus-analyser/internal/windows/domain"
)

// Target selects the status column to scan and the window type emitted per run.
type Target struct {
	Column string
	Emits  windows.WindowType
	Origin string
}

var (
	// HaltBrakeTarget emits HaltBrakeApplied for halt brake runs.
	HaltBrakeTarget = Target{
		Column: telemetry.ColumnHaltBrakeIsActive,
		Emits:  windows.HaltBrakeApplied,
		Origin: "halt_brake_emitter",
	}
	// ParkBrakeTarget emits ParkBrakeApplied for park brake runs.
	ParkBrakeTarget = Target{
		Column: telemetry.ColumnParkBrakeIsActive,
		Emits:  windows.ParkBrakeApplied,
		Origin: "park_brake_emitter",
	}
)

// RunFinder loads a trigger window's telemetry for all trips, detects closed
// runs per trip and emits one window per run.
type RunFinder struct {
	query    telemetry.TelemetryQuery
	detector *runs.Detector
	emitter  windows.Emitter
	trips    telemetry.TripReader
	logger   *log.Logger
}

// RunFinderOption configures the run finder.
type RunFinderOption func(*RunFinder)

// WithTripReader enriches emitted windows with bus_id and route_id.
func WithTripReader(trips telemetry.TripReader) RunFinderOption {
	return func(f *RunFinder) {
		f.trips = trips
	}
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) RunFinderOption {
	return func(f *RunFinder) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// NewRunFinder constructs a run finder.
func NewRunFinder(query telemetry.TelemetryQuery, detector *runs.Detector, emitter windows.Emitter, opts ...RunFinderOption) (*RunFinder, error) {
	if query == nil {
		return nil, errors.New("run finder: nil telemetry query")
	}
	if detector == nil {
		return nil, errors.New("run finder: nil detector")
	}
	if emitter == nil {
		return nil, errors.New("run finder: nil emitter")
	}
	finder := &RunFinder{
		query:    query,
		detector: detector,
		emitter:  emitter,
		logger:   log.Default(),
	}
	for _, opt := range opts {
		opt(finder)
	}
	return finder, nil
}

// FindRuns detects the target's runs closed in window and emits them.
// The result is the number of runs found across trips.
func (f *RunFinder) FindRuns(ctx context.Context, window windows.Window, target Target) (windows.Result, error) {
	if f == nil {
		return nil, errors.New("run finder: nil finder")
	}
	if err := window.Validate(); err != nil {
		return nil, err
	}

	samples, err := f.query.Fetch(ctx, telemetry.ForRange(window.TimeFrom, window.TimeTo))
	if err != nil {
		return nil, fmt.Errorf("run finder: load window: %w", err)
	}

	tripIDs, byTrip := telemetry.GroupByTrip(samples)
	total := 0
	for _, tripID := range tripIDs {
		start := time.Now()
		detection, err := f.detector.Detect(ctx, runs.Request{
			Samples: byTrip[tripID],
			Column:  target.Column,
			TripID:  tripID,
			Window:  window,
		})
		metrics.ObserveDetection(target.Column, detection.LookbackQueries, time.Since(start), err)
		if err != nil {
			return nil, fmt.Errorf("run finder: trip %d: %w", tripID, err)
		}
		if detection.Count == 0 {
			continue
		}

		metadata := f.tripMetadata(ctx, tripID)
		for _, interval := range detection.Intervals {
			emitted := interval.Window(target.Emits, target.Origin, metadata)
			if err := f.emitter.Emit(ctx, emitted); err != nil {
				metrics.IncEmitError(target.Emits.Name)
				f.logger.Printf("run finder: emit error type=%s trip_id=%d from=%s to=%s err=%v",
					target.Emits.Name, tripID, interval.TimeFrom.Format(time.RFC3339), interval.TimeTo.Format(time.RFC3339), err)
				continue
			}
			metrics.IncRunEmitted(target.Emits.Name)
		}
		f.logger.Printf("run finder: type=%s trip_id=%d runs=%d lookback_queries=%d window_from=%s",
			target.Emits.Name, tripID, detection.Count, detection.LookbackQueries, window.TimeFrom.Format(time.RFC3339))
		total += detection.Count
	}
	return windows.ValueResult{Value: float64(total)}, nil
}

func (f *RunFinder) tripMetadata(ctx context.Context, tripID int64) map[string]any {
	metadata := map[string]any{windows.MetadataTripID: tripID}
	if f.trips == nil {
		return metadata
	}
	trip, err := f.trips.FindTrip(ctx, tripID)
	if err != nil {
		if !errors.Is(err, telemetry.ErrTripNotFound) {
			f.logger.Printf("run finder: trip lookup error trip_id=%d err=%v", tripID, err)
		}
		return metadata
	}
	metadata[windows.MetadataBusID] = trip.BusID
	metadata[windows.MetadataRouteID] = trip.RouteID
	return metadata
}
