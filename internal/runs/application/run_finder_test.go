package application

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	runs "ztbus-analyser/internal/runs/domain"
	telemetry "ztbus-analyser/internal/telemetry/domain"
	"ztbus-analyser/internal/telemetry/infrastructure/memory"
	windows "ztbus-analyser/internal/windows/domain"
)

var base = time.Date(2021, time.March, 9, 14, 15, 0, 0, time.UTC)

type recordingEmitter struct {
	mu      sync.Mutex
	windows []windows.Window
	err     error
}

func (e *recordingEmitter) Emit(_ context.Context, window windows.Window) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	e.windows = append(e.windows, window)
	return nil
}

func seed(t *testing.T, store *memory.Store, tripID int64, halt, park string) {
	t.Helper()
	samples := make([]telemetry.Sample, 0, len(halt))
	for i := range halt {
		samples = append(samples, telemetry.Sample{
			TripID:            tripID,
			Time:              base.Add(time.Duration(i) * time.Second),
			HaltBrakeIsActive: halt[i] == 'T',
			ParkBrakeIsActive: park[i] == 'T',
		})
	}
	if err := store.InsertSamples(context.Background(), samples); err != nil {
		t.Fatalf("insert: %v", err)
	}
}

func newFinder(t *testing.T, store *memory.Store, emitter windows.Emitter) *RunFinder {
	t.Helper()
	detector, err := runs.NewDetector(store)
	if err != nil {
		t.Fatalf("detector: %v", err)
	}
	finder, err := NewRunFinder(store, detector, emitter,
		WithTripReader(store),
		WithLogger(log.New(io.Discard, "", 0)))
	if err != nil {
		t.Fatalf("finder: %v", err)
	}
	return finder
}

func everyMinute(from time.Time) windows.Window {
	return windows.Window{TimeFrom: from, TimeTo: from.Add(10 * time.Second), Type: windows.EveryMinute, Origin: "simulator"}
}

func TestFindRunsEmitsPerTrip(t *testing.T) {
	store := memory.NewStore()
	seed(t, store, 1, "FTTFFFFFFF", "FFFFFFFFFF")
	seed(t, store, 2, "FFFFTFFTTT", "TTTTFFFFFF")
	store.PutTrip(telemetry.Trip{ID: 1, BusID: 183, RouteID: 83})
	emitter := &recordingEmitter{}
	finder := newFinder(t, store, emitter)

	result, err := finder.FindRuns(context.Background(), everyMinute(base), HaltBrakeTarget)
	if err != nil {
		t.Fatalf("find runs: %v", err)
	}
	value, ok := result.(windows.ValueResult)
	if !ok || value.Value != 2 {
		t.Fatalf("expected ValueResult(2), got %#v", result)
	}
	if len(emitter.windows) != 2 {
		t.Fatalf("expected 2 emitted windows, got %d", len(emitter.windows))
	}
	first := emitter.windows[0]
	if first.Type.Name != "HaltBrakeApplied" || first.Origin != "halt_brake_emitter" {
		t.Fatalf("unexpected emitted window: %+v", first)
	}
	if !first.TimeFrom.Equal(base.Add(time.Second)) || !first.TimeTo.Equal(base.Add(2*time.Second)) {
		t.Fatalf("unexpected bounds: %s..%s", first.TimeFrom, first.TimeTo)
	}
	if first.Metadata[windows.MetadataBusID] != int64(183) || first.Metadata[windows.MetadataRouteID] != int64(83) {
		t.Fatalf("expected trip metadata, got %+v", first.Metadata)
	}

	emitter.windows = nil
	result, err = finder.FindRuns(context.Background(), everyMinute(base), ParkBrakeTarget)
	if err != nil {
		t.Fatalf("find park runs: %v", err)
	}
	if value := result.(windows.ValueResult); value.Value != 1 {
		t.Fatalf("expected one park run, got %v", value.Value)
	}
	parked := emitter.windows[0]
	tripID, err := parked.TripID()
	if err != nil || tripID != 2 {
		t.Fatalf("expected park run on trip 2, got %d err=%v", tripID, err)
	}
	if _, ok := parked.Metadata[windows.MetadataBusID]; ok {
		t.Fatalf("trip 2 has no trips row, expected no bus_id")
	}
}

func TestFindRunsEmitFailureIsNotFatal(t *testing.T) {
	store := memory.NewStore()
	seed(t, store, 1, "FTFFFFFFFF", "FFFFFFFFFF")
	finder := newFinder(t, store, &recordingEmitter{err: errors.New("outbox down")})

	result, err := finder.FindRuns(context.Background(), everyMinute(base), HaltBrakeTarget)
	if err != nil {
		t.Fatalf("expected emission failure to be tolerated, got %v", err)
	}
	if value := result.(windows.ValueResult); value.Value != 1 {
		t.Fatalf("expected one detected run, got %v", value.Value)
	}
}

type brokenQuery struct{}

func (brokenQuery) Fetch(context.Context, telemetry.QueryParams) ([]telemetry.Sample, error) {
	return nil, telemetry.ErrDataSourceUnavailable
}

func TestFindRunsPropagatesQueryErrors(t *testing.T) {
	detector, err := runs.NewDetector(brokenQuery{})
	if err != nil {
		t.Fatalf("detector: %v", err)
	}
	finder, err := NewRunFinder(brokenQuery{}, detector, &recordingEmitter{})
	if err != nil {
		t.Fatalf("finder: %v", err)
	}
	if _, err := finder.FindRuns(context.Background(), everyMinute(base), HaltBrakeTarget); !errors.Is(err, telemetry.ErrDataSourceUnavailable) {
		t.Fatalf("expected ErrDataSourceUnavailable, got %v", err)
	}
}

func TestFindRunsEmptyWindow(t *testing.T) {
	store := memory.NewStore()
	emitter := &recordingEmitter{}
	finder := newFinder(t, store, emitter)

	result, err := finder.FindRuns(context.Background(), everyMinute(base), HaltBrakeTarget)
	if err != nil {
		t.Fatalf("find runs: %v", err)
	}
	if value := result.(windows.ValueResult); value.Value != 0 {
		t.Fatalf("expected zero runs, got %v", value.Value)
	}
	if store.Fetches() != 1 {
		t.Fatalf("expected only the window fetch, got %d", store.Fetches())
	}
}
