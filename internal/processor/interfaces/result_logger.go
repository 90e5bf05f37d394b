package interfaces

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"

	"ztbus-analyser/internal/processor/events"
	windows "ztbus-analyser/internal/windows/domain"
)

// ResultLogger writes one line per completed algorithm.
type ResultLogger struct {
	logger *log.Logger
}

// NewResultLogger constructs the logger. A nil logger uses log.Default.
func NewResultLogger(logger *log.Logger) *ResultLogger {
	if logger == nil {
		logger = log.Default()
	}
	return &ResultLogger{logger: logger}
}

// Handle logs AlgorithmCompleted events and ignores everything else.
func (l *ResultLogger) Handle(_ context.Context, event any) error {
	completed, ok := event.(events.AlgorithmCompleted)
	if !ok {
		return nil
	}
	if completed.Error != "" {
		l.logger.Printf("algorithm_completed algorithm=%s@%s window=%s trip_id=%d duration_ms=%d error=%q",
			completed.Algorithm, completed.Version, completed.WindowType, completed.TripID, completed.DurationMS, completed.Error)
		return nil
	}
	l.logger.Printf("algorithm_completed algorithm=%s@%s window=%s trip_id=%d duration_ms=%d result=%s",
		completed.Algorithm, completed.Version, completed.WindowType, completed.TripID, completed.DurationMS, FormatResult(completed.Result))
	return nil
}

// FormatResult renders a result payload as key=value text; nil values print as null.
func FormatResult(payload events.ResultPayload) string {
	switch payload.Kind {
	case windows.ResultValue:
		return formatFloat(payload.Value)
	case windows.ResultStruct:
		keys := make([]string, 0, len(payload.Fields))
		for key := range payload.Fields {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, key := range keys {
			parts = append(parts, fmt.Sprintf("%s:%s", key, formatFloat(payload.Fields[key])))
		}
		return "{" + strings.Join(parts, ",") + "}"
	default:
		return "none"
	}
}

func formatFloat(v *float64) string {
	if v == nil {
		return "null"
	}
	return strconv.FormatFloat(*v, 'g', 6, 64)
}
