package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	statistics "ztbus-analyser/internal/statistics/domain"
	telemetry "ztbus-analyser/internal/telemetry/domain"
	windows "ztbus-analyser/internal/windows/domain"
)

// StatsColumns are the numeric columns described for every brake run.
var StatsColumns = []string{
	telemetry.ColumnElectricPowerDemand,
	telemetry.ColumnTractionBrakePressure,
	telemetry.ColumnTractionTractionForce,
	telemetry.ColumnGNSSAltitude,
	telemetry.ColumnGNSSCourse,
	telemetry.ColumnGNSSLatitude,
	telemetry.ColumnGNSSLongitude,
	telemetry.ColumnOdometryArticulationAngle,
	telemetry.ColumnOdometrySteeringAngle,
	telemetry.ColumnOdometryVehicleSpeed,
	telemetry.ColumnOdometryWheelSpeedFL,
	telemetry.ColumnOdometryWheelSpeedFR,
	telemetry.ColumnOdometryWheelSpeedML,
	telemetry.ColumnOdometryWheelSpeedMR,
	telemetry.ColumnOdometryWheelSpeedRL,
	telemetry.ColumnOdometryWheelSpeedRR,
}

// StatisticsService computes window statistics from telemetry.
type StatisticsService struct {
	query telemetry.TelemetryQuery
}

// NewStatisticsService constructs the service.
func NewStatisticsService(query telemetry.TelemetryQuery) (*StatisticsService, error) {
	if query == nil {
		return nil, errors.New("statistics: nil telemetry query")
	}
	return &StatisticsService{query: query}, nil
}

// runSamples loads the telemetry of a run window. Run windows carry
// inclusive sample boundaries, so the last second is included.
func (s *StatisticsService) runSamples(ctx context.Context, window windows.Window) ([]telemetry.Sample, error) {
	tripID, err := window.TripID()
	if err != nil {
		return nil, err
	}
	samples, err := s.query.Fetch(ctx, telemetry.ForTrip(tripID, window.TimeFrom, window.TimeTo.Add(time.Second)))
	if err != nil {
		return nil, fmt.Errorf("statistics: load run trip %d: %w", tripID, err)
	}
	return samples, nil
}

func (s *StatisticsService) windowSamples(ctx context.Context, window windows.Window) ([]telemetry.Sample, error) {
	samples, err := s.query.Fetch(ctx, telemetry.ForRange(window.TimeFrom, window.TimeTo))
	if err != nil {
		return nil, fmt.Errorf("statistics: load window: %w", err)
	}
	return samples, nil
}

// ColumnStats returns an algorithm describing column over a run window.
func (s *StatisticsService) ColumnStats(column string) func(context.Context, windows.Window) (windows.Result, error) {
	return func(ctx context.Context, window windows.Window) (windows.Result, error) {
		samples, err := s.runSamples(ctx, window)
		if err != nil {
			return nil, err
		}
		summary := statistics.Describe(statistics.Column(samples, column))
		return windows.StructResult{Fields: summary.Fields()}, nil
	}
}

// AmbientTemperature returns the median ambient temperature over a run window.
func (s *StatisticsService) AmbientTemperature(ctx context.Context, window windows.Window) (windows.Result, error) {
	samples, err := s.runSamples(ctx, window)
	if err != nil {
		return nil, err
	}
	median := statistics.Median(statistics.Column(samples, telemetry.ColumnTemperatureAmbient))
	return windows.StructResult{Fields: map[string]*float64{statistics.FieldP50: median}}, nil
}

// EnergyEfficiency computes energy use over a trigger window for all trips.
func (s *StatisticsService) EnergyEfficiency(ctx context.Context, window windows.Window) (windows.Result, error) {
	samples, err := s.windowSamples(ctx, window)
	if err != nil {
		return nil, err
	}
	return windows.StructResult{Fields: statistics.Energy(samples).Fields()}, nil
}

// ServiceEfficiency computes dwell time over a trigger window for all trips.
func (s *StatisticsService) ServiceEfficiency(ctx context.Context, window windows.Window) (windows.Result, error) {
	samples, err := s.windowSamples(ctx, window)
	if err != nil {
		return nil, err
	}
	return windows.StructResult{Fields: statistics.Service(samples).Fields()}, nil
}

// ComfortAndSafety computes acceleration and jerk over a trigger window.
func (s *StatisticsService) ComfortAndSafety(ctx context.Context, window windows.Window) (windows.Result, error) {
	samples, err := s.windowSamples(ctx, window)
	if err != nil {
		return nil, err
	}
	return windows.StructResult{Fields: statistics.Comfort(samples).Fields()}, nil
}

// AssetStress computes articulation and brake load over a trigger window.
func (s *StatisticsService) AssetStress(ctx context.Context, window windows.Window) (windows.Result, error) {
	samples, err := s.windowSamples(ctx, window)
	if err != nil {
		return nil, err
	}
	return windows.StructResult{Fields: statistics.Stress(samples).Fields()}, nil
}
