package runs

import (
	"context"
	"errors"
	"fmt"
	"time"

	telemetry "ztbus-analyser/internal/telemetry/domain"
	windows "ztbus-analyser/internal/windows/domain"
)

const (
	DefaultLookbackStep          = 20 * time.Second
	DefaultMaxLookbackIterations = 20
)

// Interval is a closed run with inclusive sample boundaries.
type Interval struct {
	TimeFrom time.Time
	TimeTo   time.Time
	TripID   int64
}

// Window wraps the interval into a window carrying trip_id plus metadata.
func (i Interval) Window(windowType windows.WindowType, origin string, metadata map[string]any) windows.Window {
	meta := make(map[string]any, len(metadata)+1)
	for k, v := range metadata {
		meta[k] = v
	}
	meta[windows.MetadataTripID] = i.TripID
	return windows.Window{
		TimeFrom: i.TimeFrom,
		TimeTo:   i.TimeTo,
		Type:     windowType,
		Origin:   origin,
		Metadata: meta,
	}
}

// Duration returns the covered time between the first and last sample.
func (i Interval) Duration() time.Duration {
	return i.TimeTo.Sub(i.TimeFrom)
}

// Request is one detector invocation for a trip and status column.
type Request struct {
	Samples []telemetry.Sample
	Column  string
	// TripID scopes lookback queries; zero means no trip and is rejected.
	TripID int64
	Window windows.Window
}

// Detection is the outcome of one invocation.
type Detection struct {
	Intervals       []Interval
	Count           int
	LookbackQueries int
}

// Detector finds closed runs of a status column within a trigger window,
// extending into earlier telemetry when a run may have started before it.
type Detector struct {
	query         telemetry.TelemetryQuery
	step          time.Duration
	maxIterations int
}

// Option configures the detector.
type Option func(*Detector)

// WithLookbackStep sets the length of each lookback chunk.
func WithLookbackStep(step time.Duration) Option {
	return func(d *Detector) {
		if step > 0 {
			d.step = step
		}
	}
}

// WithMaxLookbackIterations bounds the number of lookback queries per invocation.
func WithMaxLookbackIterations(n int) Option {
	return func(d *Detector) {
		if n >= 0 {
			d.maxIterations = n
		}
	}
}

// NewDetector constructs a detector reading lookback history from query.
func NewDetector(query telemetry.TelemetryQuery, opts ...Option) (*Detector, error) {
	if query == nil {
		return nil, errors.New("run detector: nil telemetry query")
	}
	detector := &Detector{
		query:         query,
		step:          DefaultLookbackStep,
		maxIterations: DefaultMaxLookbackIterations,
	}
	for _, opt := range opts {
		opt(detector)
	}
	return detector, nil
}

// Detect returns the runs of req.Column closed within the window.
//
// History before the window is fetched in chunks of the lookback step. An
// all-active chunk is prepended and the walk continues; a chunk holding an
// inactive mark is grounded through its last inactive mark, prepended, and
// ends the walk. The walk also runs when the window opens inactive, so a run
// closed by the window's first sample is reported here. A run still active at
// the last sample is left for a later window.
func (d *Detector) Detect(ctx context.Context, req Request) (Detection, error) {
	if len(req.Samples) == 0 {
		return Detection{Intervals: []Interval{}}, nil
	}
	if d == nil || d.query == nil {
		return Detection{}, errors.New("run detector: nil detector")
	}
	if req.TripID <= 0 {
		return Detection{}, windows.ErrMissingTripContext
	}

	sorted := telemetry.SortByTime(req.Samples)
	current, err := project(sorted, req.Column)
	if err != nil {
		return Detection{}, err
	}

	edge := sorted[0].Time
	if from := req.Window.TimeFrom; !from.IsZero() && from.Before(edge) {
		edge = from
	}
	history, queries, err := d.lookback(ctx, req.TripID, req.Column, edge)
	if err != nil {
		return Detection{LookbackQueries: queries}, err
	}

	working := concat(history, current).trimLeading()
	spans := working.spans()
	intervals := make([]Interval, 0, len(spans))
	for _, s := range spans {
		intervals = append(intervals, Interval{
			TimeFrom: working[s.start].at,
			TimeTo:   working[s.end].at,
			TripID:   req.TripID,
		})
	}
	return Detection{Intervals: intervals, Count: len(intervals), LookbackQueries: queries}, nil
}

func (d *Detector) lookback(ctx context.Context, tripID int64, column string, edge time.Time) (track, int, error) {
	var history track
	queries := 0
	for k := 1; k <= d.maxIterations; k++ {
		from := edge.Add(-time.Duration(k) * d.step)
		to := edge.Add(-time.Duration(k-1) * d.step)
		queries++
		samples, err := d.query.Fetch(ctx, telemetry.ForTrip(tripID, from, to))
		if err != nil {
			return nil, queries, fmt.Errorf("run detector: lookback [%s, %s): %w",
				from.Format(time.RFC3339), to.Format(time.RFC3339), lookbackError(ctx, err))
		}
		if len(samples) == 0 {
			break
		}
		chunk, err := project(telemetry.SortByTime(samples), column)
		if err != nil {
			return nil, queries, err
		}
		last := chunk.lastInactive()
		if last < 0 {
			history = concat(chunk, history)
			continue
		}
		history = concat(chunk.groundThrough(last), history)
		break
	}
	return history, queries, nil
}

// lookbackError keeps cancellation and invalid queries distinguishable;
// every other fetch failure is a data source outage.
func lookbackError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case ctx.Err() != nil:
		return fmt.Errorf("%w (%v)", ctx.Err(), err)
	case errors.Is(err, telemetry.ErrInvalidQuery), errors.Is(err, telemetry.ErrDataSourceUnavailable):
		return err
	}
	return fmt.Errorf("%w: %w", telemetry.ErrDataSourceUnavailable, err)
}
