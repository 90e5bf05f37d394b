package application

import (
	"context"
	"log"
	"time"
)

// Scheduler advances the clock on a fixed wall-clock interval.
type Scheduler struct {
	clock    *Clock
	interval time.Duration
	logger   *log.Logger
}

// NewScheduler constructs a Scheduler.
func NewScheduler(clock *Clock, interval time.Duration, logger *log.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Scheduler{clock: clock, interval: interval, logger: logger}
}

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) {
	if s == nil || s.clock == nil {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.clock.Advance(ctx); err != nil {
				s.logger.Printf("simulator schedule error: %v", err)
			}
		}
	}
}
