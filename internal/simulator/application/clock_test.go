package application

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	simulator "ztbus-analyser/internal/simulator/domain"
	windows "ztbus-analyser/internal/windows/domain"
)

type memoryLogs struct {
	mu   sync.Mutex
	logs []simulator.SimLog
	err  error
}

func (m *memoryLogs) Latest(context.Context) (*simulator.SimLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if len(m.logs) == 0 {
		return nil, nil
	}
	latest := m.logs[len(m.logs)-1]
	return &latest, nil
}

func (m *memoryLogs) Append(_ context.Context, entry simulator.SimLog) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.ID = int64(len(m.logs) + 1)
	m.logs = append(m.logs, entry)
	return entry.ID, nil
}

type recordingEmitter struct {
	windows []windows.Window
	err     error
}

func (e *recordingEmitter) Emit(_ context.Context, window windows.Window) error {
	if e.err != nil {
		return e.err
	}
	e.windows = append(e.windows, window)
	return nil
}

func TestClockStartsAtDefaultAndContinues(t *testing.T) {
	logs := &memoryLogs{}
	emitter := &recordingEmitter{}
	clock, err := NewClock(logs, emitter, WithLogger(log.New(io.Discard, "", 0)))
	if err != nil {
		t.Fatalf("clock: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := clock.Advance(context.Background()); err != nil {
			t.Fatalf("advance %d: %v", i, err)
		}
	}
	if len(emitter.windows) != 3 {
		t.Fatalf("expected 3 windows, got %d", len(emitter.windows))
	}
	first := emitter.windows[0]
	if !first.TimeFrom.Equal(DefaultStart) || !first.TimeTo.Equal(DefaultStart.Add(time.Minute)) {
		t.Fatalf("unexpected first window %s..%s", first.TimeFrom, first.TimeTo)
	}
	if first.Type.Name != windows.EveryMinute.Name || first.Origin != Origin {
		t.Fatalf("unexpected window type %s origin %s", first.Type, first.Origin)
	}
	last := emitter.windows[2]
	if !last.TimeFrom.Equal(DefaultStart.Add(2 * time.Minute)) {
		t.Fatalf("expected contiguous windows, got %s", last.TimeFrom)
	}
}

func TestClockResumesFromPersistedLog(t *testing.T) {
	end := time.Date(2021, time.March, 9, 15, 0, 0, 0, time.UTC)
	logs := &memoryLogs{logs: []simulator.SimLog{{ID: 9, StartTime: end.Add(-time.Minute), EndTime: end}}}
	emitter := &recordingEmitter{}
	clock, _ := NewClock(logs, emitter, WithStep(30*time.Second), WithLogger(log.New(io.Discard, "", 0)))

	window, err := clock.Advance(context.Background())
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if !window.TimeFrom.Equal(end) || window.TimeTo.Sub(window.TimeFrom) != 30*time.Second {
		t.Fatalf("unexpected window %s..%s", window.TimeFrom, window.TimeTo)
	}
}

func TestClockPropagatesRepositoryErrors(t *testing.T) {
	boom := errors.New("db down")
	emitter := &recordingEmitter{}
	clock, _ := NewClock(&memoryLogs{err: boom}, emitter, WithLogger(log.New(io.Discard, "", 0)))

	if _, err := clock.Advance(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected repository error, got %v", err)
	}
	if len(emitter.windows) != 0 {
		t.Fatalf("nothing must be emitted on error")
	}
	if _, err := NewClock(nil, emitter); err == nil {
		t.Fatalf("expected error for nil repository")
	}
}

func TestClockRetriesMinuteAfterEmitFailure(t *testing.T) {
	logs := &memoryLogs{}
	emitter := &recordingEmitter{err: errors.New("outbox down")}
	clock, _ := NewClock(logs, emitter, WithLogger(log.New(io.Discard, "", 0)))

	if _, err := clock.Advance(context.Background()); err == nil {
		t.Fatalf("expected emit error")
	}
	if len(logs.logs) != 0 {
		t.Fatalf("sim log must not move when the window was not emitted")
	}

	emitter.err = nil
	window, err := clock.Advance(context.Background())
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if !window.TimeFrom.Equal(DefaultStart) {
		t.Fatalf("expected the failed minute to be retried, got %s", window.TimeFrom)
	}
	if len(logs.logs) != 1 || !logs.logs[0].StartTime.Equal(DefaultStart) {
		t.Fatalf("expected one sim log for the retried minute, got %+v", logs.logs)
	}
}
