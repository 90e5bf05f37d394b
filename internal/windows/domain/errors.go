package windows

import "errors"

var (
	// ErrMissingTripContext is returned when a trip-scoped window has no usable trip_id.
	ErrMissingTripContext = errors.New("windows: missing trip context")
	// ErrMissingMetadata is returned when a metadata key is absent.
	ErrMissingMetadata = errors.New("windows: missing metadata")
	// ErrInvalidMetadata is returned when a metadata value has the wrong shape.
	ErrInvalidMetadata = errors.New("windows: invalid metadata")
	// ErrInvalidWindow is returned for windows with bad bounds or origin.
	ErrInvalidWindow = errors.New("windows: invalid window")
	// ErrInvalidWindowType is returned for window types without a name or semantic version.
	ErrInvalidWindowType = errors.New("windows: invalid window type")
)
