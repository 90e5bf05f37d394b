package application

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	telemetry "ztbus-analyser/internal/telemetry/domain"
	"ztbus-analyser/internal/telemetry/infrastructure/memory"
	windows "ztbus-analyser/internal/windows/domain"
)

var base = time.Date(2021, time.March, 9, 14, 15, 0, 0, time.UTC)

func newService(t *testing.T) *StatisticsService {
	t.Helper()
	store := memory.NewStore()
	samples := make([]telemetry.Sample, 0, 10)
	for i := 0; i < 10; i++ {
		samples = append(samples, telemetry.Sample{
			TripID:               5,
			Time:                 base.Add(time.Duration(i) * time.Second),
			TemperatureAmbient:   float64(i),
			ElectricPowerDemand:  float64(i * 10),
			OdometryVehicleSpeed: 1,
		})
	}
	if err := store.InsertSamples(context.Background(), samples); err != nil {
		t.Fatalf("insert: %v", err)
	}
	service, err := NewStatisticsService(store)
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	return service
}

func runWindow(from, to int) windows.Window {
	return windows.Window{
		TimeFrom: base.Add(time.Duration(from) * time.Second),
		TimeTo:   base.Add(time.Duration(to) * time.Second),
		Type:     windows.HaltBrakeApplied,
		Origin:   "halt_brake_emitter",
		Metadata: map[string]any{windows.MetadataTripID: float64(5)},
	}
}

func TestColumnStatsIncludesLastSampleOfRun(t *testing.T) {
	service := newService(t)

	result, err := service.ColumnStats(telemetry.ColumnElectricPowerDemand)(context.Background(), runWindow(2, 4))
	if err != nil {
		t.Fatalf("column stats: %v", err)
	}
	fields := result.(windows.StructResult).Fields
	if fields["min"] == nil || *fields["min"] != 20 || *fields["max"] != 40 {
		t.Fatalf("expected inclusive run bounds, got min=%v max=%v", fields["min"], fields["max"])
	}
	if *fields["mean"] != 30 {
		t.Fatalf("unexpected mean %v", *fields["mean"])
	}
}

func TestAmbientTemperatureMedian(t *testing.T) {
	service := newService(t)

	result, err := service.AmbientTemperature(context.Background(), runWindow(0, 3))
	if err != nil {
		t.Fatalf("ambient temperature: %v", err)
	}
	median := result.(windows.StructResult).Fields["50p"]
	if median == nil || *median != 1.5 {
		t.Fatalf("expected median 1.5, got %v", median)
	}
}

func TestRunStatisticsRequireTrip(t *testing.T) {
	service := newService(t)
	window := runWindow(0, 3)
	window.Metadata = nil

	if _, err := service.AmbientTemperature(context.Background(), window); !errors.Is(err, windows.ErrMissingTripContext) {
		t.Fatalf("expected ErrMissingTripContext, got %v", err)
	}
}

func TestEnergyEfficiencyEmptyWindow(t *testing.T) {
	service := newService(t)
	window := windows.Window{TimeFrom: base.Add(time.Hour), TimeTo: base.Add(time.Hour + time.Minute), Type: windows.EveryMinute, Origin: "simulator"}

	result, err := service.EnergyEfficiency(context.Background(), window)
	if err != nil {
		t.Fatalf("energy: %v", err)
	}
	for name, value := range result.(windows.StructResult).Fields {
		if value != nil {
			t.Fatalf("%s: expected nil on empty window", name)
		}
	}
}

func TestPerMinuteStatisticsUseHalfOpenWindow(t *testing.T) {
	service := newService(t)
	window := windows.Window{TimeFrom: base, TimeTo: base.Add(4 * time.Second), Type: windows.EveryMinute, Origin: "simulator"}

	result, err := service.ServiceEfficiency(context.Background(), window)
	if err != nil {
		t.Fatalf("service efficiency: %v", err)
	}
	dwell := result.(windows.StructResult).Fields["dwell_time_s"]
	if dwell == nil || *dwell != 0 {
		t.Fatalf("expected zero dwell, got %v", dwell)
	}

	result, err = service.EnergyEfficiency(context.Background(), window)
	if err != nil {
		t.Fatalf("energy: %v", err)
	}
	kwh := result.(windows.StructResult).Fields["kwh"]
	if kwh == nil || math.Abs(*kwh-60.0/3600.0) > 1e-12 {
		t.Fatalf("expected 4 samples of power, got %v", kwh)
	}
}
