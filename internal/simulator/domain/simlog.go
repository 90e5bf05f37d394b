package simulator

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidSimLog is returned for sim logs whose end is not after their start.
var ErrInvalidSimLog = errors.New("simulator: invalid sim log")

// SimLog records one advance of the simulated clock over [StartTime, EndTime).
type SimLog struct {
	ID        int64
	StartTime time.Time
	EndTime   time.Time
}

// Validate checks the interval.
func (l SimLog) Validate() error {
	if l.StartTime.IsZero() || !l.EndTime.After(l.StartTime) {
		return ErrInvalidSimLog
	}
	return nil
}

// Next returns the log following l, step long.
func (l SimLog) Next(step time.Duration) SimLog {
	return SimLog{StartTime: l.EndTime, EndTime: l.EndTime.Add(step)}
}

// SimLogRepository persists clock advances.
type SimLogRepository interface {
	// Latest returns the log with the greatest end time, or nil when none exists.
	Latest(ctx context.Context) (*SimLog, error)
	Append(ctx context.Context, log SimLog) (int64, error)
}
