package windows

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Metadata keys carried by trip-scoped windows.
const (
	MetadataTripID  = "trip_id"
	MetadataBusID   = "bus_id"
	MetadataRouteID = "route_id"
)

var windowNamespace = uuid.MustParse("5a0e3f43-7d0c-4f1e-9b6a-2f7c1b0d9e11")

// Window is a trigger window. Trigger windows are half-open [TimeFrom, TimeTo);
// windows emitted for runs carry inclusive sample boundaries.
type Window struct {
	TimeFrom time.Time
	TimeTo   time.Time
	Type     WindowType
	Origin   string
	Metadata map[string]any
}

// Validate checks bounds and window type.
func (w Window) Validate() error {
	if w.TimeFrom.IsZero() || w.TimeTo.IsZero() {
		return fmt.Errorf("%w: missing bounds", ErrInvalidWindow)
	}
	if w.TimeTo.Before(w.TimeFrom) {
		return fmt.Errorf("%w: time_to before time_from", ErrInvalidWindow)
	}
	if strings.TrimSpace(w.Origin) == "" {
		return fmt.Errorf("%w: empty origin", ErrInvalidWindow)
	}
	return w.Type.Validate()
}

// TripID returns the trip id from metadata. Missing or unusable ids are
// ErrMissingTripContext.
func (w Window) TripID() (int64, error) {
	id, err := w.MetadataInt(MetadataTripID)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrMissingTripContext, err)
	}
	return id, nil
}

// MetadataInt returns a positive integer metadata value. A missing key is
// ErrMissingMetadata; a value that is not a positive integer is ErrInvalidMetadata.
func (w Window) MetadataInt(key string) (int64, error) {
	raw, ok := w.Metadata[key]
	if !ok || raw == nil {
		return 0, fmt.Errorf("%w: %s", ErrMissingMetadata, key)
	}
	var value int64
	switch v := raw.(type) {
	case int:
		value = int64(v)
	case int32:
		value = int64(v)
	case int64:
		value = v
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("%w: %s=%v", ErrInvalidMetadata, key, raw)
		}
		value = int64(v)
	case json.Number:
		parsed, err := v.Int64()
		if err != nil {
			return 0, fmt.Errorf("%w: %s=%v", ErrInvalidMetadata, key, raw)
		}
		value = parsed
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %s=%v", ErrInvalidMetadata, key, raw)
		}
		value = parsed
	default:
		return 0, fmt.Errorf("%w: %s=%v", ErrInvalidMetadata, key, raw)
	}
	if value <= 0 {
		return 0, fmt.Errorf("%w: %s=%v", ErrInvalidMetadata, key, raw)
	}
	return value, nil
}

// Key returns a deterministic identifier for the window. Two windows with the
// same type, bounds, origin and trip share a key.
func (w Window) Key() string {
	trip := ""
	if tripID, err := w.TripID(); err == nil {
		trip = strconv.FormatInt(tripID, 10)
	}
	name := strings.Join([]string{
		w.Type.Name,
		w.Type.Version,
		w.TimeFrom.UTC().Format(time.RFC3339Nano),
		w.TimeTo.UTC().Format(time.RFC3339Nano),
		w.Origin,
		trip,
	}, "|")
	return uuid.NewSHA1(windowNamespace, []byte(name)).String()
}

// WithMetadata returns a copy of the window with key set.
func (w Window) WithMetadata(key string, value any) Window {
	metadata := make(map[string]any, len(w.Metadata)+1)
	for k, v := range w.Metadata {
		metadata[k] = v
	}
	metadata[key] = value
	w.Metadata = metadata
	return w
}

// Emitter hands windows to the runtime.
type Emitter interface {
	Emit(ctx context.Context, window Window) error
}
