package windows

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestWindowTripID(t *testing.T) {
	cases := []struct {
		name     string
		metadata map[string]any
		want     int64
		wantErr  bool
	}{
		{name: "int", metadata: map[string]any{MetadataTripID: 7}, want: 7},
		{name: "int64", metadata: map[string]any{MetadataTripID: int64(8)}, want: 8},
		{name: "json float", metadata: map[string]any{MetadataTripID: float64(9)}, want: 9},
		{name: "json number", metadata: map[string]any{MetadataTripID: json.Number("10")}, want: 10},
		{name: "string", metadata: map[string]any{MetadataTripID: "11"}, want: 11},
		{name: "missing", metadata: map[string]any{}, wantErr: true},
		{name: "nil metadata", metadata: nil, wantErr: true},
		{name: "fractional", metadata: map[string]any{MetadataTripID: 1.5}, wantErr: true},
		{name: "zero", metadata: map[string]any{MetadataTripID: 0}, wantErr: true},
		{name: "garbage", metadata: map[string]any{MetadataTripID: "bus"}, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Window{Metadata: tc.metadata}.TripID()
			if tc.wantErr {
				if !errors.Is(err, ErrMissingTripContext) {
					t.Fatalf("expected ErrMissingTripContext, got %v", err)
				}
				return
			}
			if err != nil || got != tc.want {
				t.Fatalf("trip id: got=%d err=%v want=%d", got, err, tc.want)
			}
		})
	}
}

func TestWindowMetadataIntIsNeutralForOtherKeys(t *testing.T) {
	window := Window{Metadata: map[string]any{MetadataTripID: 7, MetadataRouteID: "line"}}

	_, err := window.MetadataInt(MetadataBusID)
	if !errors.Is(err, ErrMissingMetadata) || errors.Is(err, ErrMissingTripContext) {
		t.Fatalf("expected ErrMissingMetadata only, got %v", err)
	}
	_, err = window.MetadataInt(MetadataRouteID)
	if !errors.Is(err, ErrInvalidMetadata) || errors.Is(err, ErrMissingTripContext) {
		t.Fatalf("expected ErrInvalidMetadata only, got %v", err)
	}
	if _, err := (Window{}).TripID(); !errors.Is(err, ErrMissingTripContext) || !errors.Is(err, ErrMissingMetadata) {
		t.Fatalf("expected missing trip context wrapping missing metadata, got %v", err)
	}
}

func TestWindowKeyIsDeterministic(t *testing.T) {
	from := time.Date(2021, time.March, 9, 14, 15, 0, 0, time.UTC)
	a := Window{TimeFrom: from, TimeTo: from.Add(4 * time.Second), Type: HaltBrakeApplied, Origin: "halt_brake_emitter", Metadata: map[string]any{MetadataTripID: 3}}
	b := Window{TimeFrom: from, TimeTo: from.Add(4 * time.Second), Type: HaltBrakeApplied, Origin: "halt_brake_emitter", Metadata: map[string]any{MetadataTripID: float64(3), MetadataBusID: 183}}
	if a.Key() != b.Key() {
		t.Fatalf("expected equal keys, got %s and %s", a.Key(), b.Key())
	}
	c := a.WithMetadata(MetadataTripID, 4)
	if a.Key() == c.Key() {
		t.Fatalf("expected distinct keys for distinct trips")
	}
	if _, ok := a.Metadata[MetadataBusID]; ok {
		t.Fatalf("WithMetadata mutated the original window")
	}
}

func TestWindowValidate(t *testing.T) {
	from := time.Date(2021, time.March, 9, 14, 15, 0, 0, time.UTC)
	valid := Window{TimeFrom: from, TimeTo: from.Add(time.Minute), Type: EveryMinute, Origin: "simulator"}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid window: %v", err)
	}
	reversed := valid
	reversed.TimeTo = from.Add(-time.Second)
	if err := reversed.Validate(); !errors.Is(err, ErrInvalidWindow) {
		t.Fatalf("expected ErrInvalidWindow, got %v", err)
	}
	badType := valid
	badType.Type = WindowType{Name: "EveryMinute", Version: "one"}
	if err := badType.Validate(); !errors.Is(err, ErrInvalidWindowType) {
		t.Fatalf("expected ErrInvalidWindowType, got %v", err)
	}
}

func TestWindowTypeMatches(t *testing.T) {
	if !HaltBrakeApplied.Matches(WindowType{Name: "HaltBrakeApplied", Version: "2.0.3"}) {
		t.Fatalf("expected same-major versions to match")
	}
	if HaltBrakeApplied.Matches(WindowType{Name: "HaltBrakeApplied", Version: "1.0.0"}) {
		t.Fatalf("expected different major versions not to match")
	}
	if HaltBrakeApplied.Matches(ParkBrakeApplied) {
		t.Fatalf("expected different names not to match")
	}
	ok, err := HaltBrakeApplied.Satisfies("^2.0")
	if err != nil || !ok {
		t.Fatalf("satisfies: ok=%v err=%v", ok, err)
	}
	if _, found := Lookup("ParkBrakeApplied"); !found {
		t.Fatalf("expected ParkBrakeApplied in catalog")
	}
}
