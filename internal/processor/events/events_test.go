package events

import (
	"encoding/json"
	"testing"
	"time"

	windows "ztbus-analyser/internal/windows/domain"
)

func TestWindowEmittedSurvivesJSON(t *testing.T) {
	from := time.Date(2021, time.March, 9, 14, 15, 3, 0, time.UTC)
	window := windows.Window{
		TimeFrom: from,
		TimeTo:   from.Add(7 * time.Second),
		Type:     windows.HaltBrakeApplied,
		Origin:   "halt_brake_emitter",
		Metadata: map[string]any{windows.MetadataTripID: int64(42), windows.MetadataBusID: "B183"},
	}

	raw, err := json.Marshal(NewWindowEmitted(window, from))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded WindowEmitted
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	rebuilt, err := decoded.Window()
	if err != nil {
		t.Fatalf("window: %v", err)
	}
	tripID, err := rebuilt.TripID()
	if err != nil || tripID != 42 {
		t.Fatalf("expected trip 42, got %d %v", tripID, err)
	}
	if rebuilt.Key() != window.Key() {
		t.Fatalf("key changed across the wire")
	}
	if rebuilt.Type.Description != windows.HaltBrakeApplied.Description {
		t.Fatalf("expected catalog description to be restored")
	}
}

func TestWindowEmittedRejectsInvalidWindow(t *testing.T) {
	if _, err := (WindowEmitted{TypeName: "EveryMinute", TypeVersion: "1.0.0"}).Window(); err == nil {
		t.Fatalf("expected error for missing bounds")
	}
}

func TestResultPayloadRoundTrip(t *testing.T) {
	cases := []windows.Result{
		windows.NoneResult{},
		windows.ValueResult{Value: 3},
		windows.StructResult{Fields: map[string]*float64{"50p": windows.Float(21.5), "std": nil}},
	}
	for _, result := range cases {
		decoded, err := EncodeResult(result).Decode()
		if err != nil {
			t.Fatalf("%s: decode: %v", result.Kind(), err)
		}
		if decoded.Kind() != result.Kind() {
			t.Fatalf("kind changed: %s -> %s", result.Kind(), decoded.Kind())
		}
	}
	if _, err := (ResultPayload{Kind: "matrix"}).Decode(); err == nil {
		t.Fatalf("expected unknown kind error")
	}
	if EncodeResult(nil).Kind != windows.ResultNone {
		t.Fatalf("nil result must encode as none")
	}
}
