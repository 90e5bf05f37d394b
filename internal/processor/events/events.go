package events

import (
	"fmt"
	"time"

	windows "ztbus-analyser/internal/windows/domain"
)

// WindowEmitted is raised when a window is handed to the runtime, either by
// the simulator clock, the HTTP trigger or a run finder.
type WindowEmitted struct {
	WindowKey   string
	TimeFrom    time.Time
	TimeTo      time.Time
	TypeName    string
	TypeVersion string
	Origin      string
	Metadata    map[string]any
	OccurredAt  time.Time
}

// NewWindowEmitted builds the event for window.
func NewWindowEmitted(window windows.Window, occurredAt time.Time) WindowEmitted {
	return WindowEmitted{
		WindowKey:   window.Key(),
		TimeFrom:    window.TimeFrom.UTC(),
		TimeTo:      window.TimeTo.UTC(),
		TypeName:    window.Type.Name,
		TypeVersion: window.Type.Version,
		Origin:      window.Origin,
		Metadata:    window.Metadata,
		OccurredAt:  occurredAt.UTC(),
	}
}

// Window rebuilds the window. Known window types recover their catalog
// description and metadata fields.
func (e WindowEmitted) Window() (windows.Window, error) {
	windowType := windows.WindowType{Name: e.TypeName, Version: e.TypeVersion}
	if known, ok := windows.Lookup(e.TypeName); ok && known.Matches(windowType) {
		known.Version = e.TypeVersion
		windowType = known
	}
	window := windows.Window{
		TimeFrom: e.TimeFrom,
		TimeTo:   e.TimeTo,
		Type:     windowType,
		Origin:   e.Origin,
		Metadata: e.Metadata,
	}
	if err := window.Validate(); err != nil {
		return windows.Window{}, fmt.Errorf("events: window %s: %w", e.WindowKey, err)
	}
	return window, nil
}

// AlgorithmCompleted reports the outcome of one algorithm over one window.
type AlgorithmCompleted struct {
	Algorithm  string
	Version    string
	WindowKey  string
	WindowType string
	TimeFrom   time.Time
	TimeTo     time.Time
	TripID     int64
	Result     ResultPayload
	Error      string
	DurationMS int64
	OccurredAt time.Time
}

// ResultPayload is the wire form of a windows.Result.
type ResultPayload struct {
	Kind   windows.ResultKind  `json:"kind"`
	Value  *float64            `json:"value,omitempty"`
	Fields map[string]*float64 `json:"fields,omitempty"`
}

// EncodeResult converts a result to its wire form. A nil result encodes as none.
func EncodeResult(result windows.Result) ResultPayload {
	switch r := result.(type) {
	case windows.ValueResult:
		return ResultPayload{Kind: windows.ResultValue, Value: windows.Float(r.Value)}
	case windows.StructResult:
		return ResultPayload{Kind: windows.ResultStruct, Fields: r.Fields}
	default:
		return ResultPayload{Kind: windows.ResultNone}
	}
}

// Decode converts the wire form back to a windows.Result.
func (p ResultPayload) Decode() (windows.Result, error) {
	switch p.Kind {
	case windows.ResultNone, "":
		return windows.NoneResult{}, nil
	case windows.ResultValue:
		if p.Value == nil {
			return nil, fmt.Errorf("events: value result without value")
		}
		return windows.ValueResult{Value: *p.Value}, nil
	case windows.ResultStruct:
		fields := p.Fields
		if fields == nil {
			fields = map[string]*float64{}
		}
		return windows.StructResult{Fields: fields}, nil
	default:
		return nil, fmt.Errorf("events: unknown result kind %q", p.Kind)
	}
}
