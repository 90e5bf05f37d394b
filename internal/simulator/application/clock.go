package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"ztbus-analyser/internal/observability/metrics"
	simulator "ztbus-analyser/internal/simulator/domain"
	windows "ztbus-analyser/internal/windows/domain"
)

const (
	// Origin tags windows emitted by the simulated clock.
	Origin = "simulator"
	// DefaultStep is the length of one simulated minute window.
	DefaultStep = time.Minute
)

// DefaultStart is the earliest time at which both recorded buses are active.
var DefaultStart = time.Date(2021, time.March, 9, 14, 15, 0, 0, time.UTC)

// Clock replays recorded telemetry time one window at a time. Each advance
// continues from the last persisted sim log, so restarts resume where the
// previous run stopped.
type Clock struct {
	repo    simulator.SimLogRepository
	emitter windows.Emitter
	start   time.Time
	step    time.Duration
	logger  *log.Logger

	mu sync.Mutex
}

// ClockOption configures the clock.
type ClockOption func(*Clock)

// WithStart sets the first window start used when no sim log exists.
func WithStart(start time.Time) ClockOption {
	return func(c *Clock) {
		if !start.IsZero() {
			c.start = start.UTC()
		}
	}
}

// WithStep sets the window length.
func WithStep(step time.Duration) ClockOption {
	return func(c *Clock) {
		if step > 0 {
			c.step = step
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) ClockOption {
	return func(c *Clock) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClock constructs a clock.
func NewClock(repo simulator.SimLogRepository, emitter windows.Emitter, opts ...ClockOption) (*Clock, error) {
	if repo == nil {
		return nil, errors.New("simulator clock: nil sim log repository")
	}
	if emitter == nil {
		return nil, errors.New("simulator clock: nil emitter")
	}
	c := &Clock{
		repo:    repo,
		emitter: emitter,
		start:   DefaultStart,
		step:    DefaultStep,
		logger:  log.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Advance emits the next EveryMinute window and then records its sim log.
// A failed emit leaves the clock where it was, so the next tick retries the
// same minute.
func (c *Clock) Advance(ctx context.Context) (windows.Window, error) {
	window, err := c.advance(ctx)
	metrics.IncSimulatorTick(err)
	return window, err
}

func (c *Clock) advance(ctx context.Context) (windows.Window, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	latest, err := c.repo.Latest(ctx)
	if err != nil {
		return windows.Window{}, fmt.Errorf("simulator clock: latest sim log: %w", err)
	}
	next := simulator.SimLog{StartTime: c.start, EndTime: c.start.Add(c.step)}
	if latest != nil {
		next = latest.Next(c.step)
	}
	if err := next.Validate(); err != nil {
		return windows.Window{}, err
	}
	window := windows.Window{
		TimeFrom: next.StartTime,
		TimeTo:   next.EndTime,
		Type:     windows.EveryMinute,
		Origin:   Origin,
	}
	// a minute is consumed only once its window is out
	if err := c.emitter.Emit(ctx, window); err != nil {
		return windows.Window{}, fmt.Errorf("simulator clock: emit: %w", err)
	}
	id, err := c.repo.Append(ctx, next)
	if err != nil {
		return windows.Window{}, fmt.Errorf("simulator clock: append sim log: %w", err)
	}
	c.logger.Printf("simulator: tick sim_log_id=%d time_from=%s time_to=%s",
		id, window.TimeFrom.Format(time.RFC3339), window.TimeTo.Format(time.RFC3339))
	return window, nil
}
