package runs

import (
	"time"

	telemetry "ztbus-analyser/internal/telemetry/domain"
)

// mark is one sample projected onto the target status column.
type mark struct {
	at     time.Time
	active bool
}

// track is an ordered projection of samples. Tracks are never mutated in
// place; every transformation returns a new slice.
type track []mark

func project(samples []telemetry.Sample, column string) (track, error) {
	t := make(track, 0, len(samples))
	for _, sample := range samples {
		active, err := sample.Flag(column)
		if err != nil {
			return nil, err
		}
		t = append(t, mark{at: sample.Time, active: active})
	}
	return t, nil
}

// lastInactive returns the index of the last inactive mark, scanning from the
// end, or -1 when every mark is active.
func (t track) lastInactive() int {
	for i := len(t) - 1; i >= 0; i-- {
		if !t[i].active {
			return i
		}
	}
	return -1
}

// groundThrough returns a copy with every mark at or before idx inactive.
func (t track) groundThrough(idx int) track {
	grounded := make(track, len(t))
	copy(grounded, t)
	for i := 0; i <= idx && i < len(grounded); i++ {
		grounded[i].active = false
	}
	return grounded
}

// trimLeading drops the marks before the first active one.
func (t track) trimLeading() track {
	for i, m := range t {
		if m.active {
			return t[i:]
		}
	}
	return nil
}

// span is a closed run as a pair of track indices.
type span struct {
	start int
	end   int
}

// spans scans the track once and returns every run closed by an inactive
// mark. A run still active at the last mark is not returned.
func (t track) spans() []span {
	result := make([]span, 0)
	inRun := false
	start := 0
	for i, m := range t {
		switch {
		case m.active && !inRun:
			inRun = true
			start = i
		case !m.active && inRun:
			inRun = false
			result = append(result, span{start: start, end: i - 1})
		}
	}
	return result
}

func concat(older, newer track) track {
	joined := make(track, 0, len(older)+len(newer))
	joined = append(joined, older...)
	return append(joined, newer...)
}
