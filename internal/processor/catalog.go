package processor

import (
	"context"
	"errors"
	"strings"

	runapp "ztbus-analyser/internal/runs/application"
	statsapp "ztbus-analyser/internal/statistics/application"
	windows "ztbus-analyser/internal/windows/domain"
)

const catalogVersion = "1.0.0"

// Catalog builds the analyser's algorithms: the brake run finders, per-run
// statistics for both brake windows and the per-minute fleet metrics.
func Catalog(finder *runapp.RunFinder, stats *statsapp.StatisticsService) ([]Algorithm, error) {
	if finder == nil {
		return nil, errors.New("catalog: nil run finder")
	}
	if stats == nil {
		return nil, errors.New("catalog: nil statistics service")
	}

	algorithms := []Algorithm{
		{Name: "FindHaltBrakeWindows", Version: catalogVersion, Trigger: windows.EveryMinute, Run: findRuns(finder, runapp.HaltBrakeTarget)},
		{Name: "FindParkBrakeWindows", Version: catalogVersion, Trigger: windows.EveryMinute, Run: findRuns(finder, runapp.ParkBrakeTarget)},
		{Name: "HaltBrakeAmbientTemperature", Version: catalogVersion, Trigger: windows.HaltBrakeApplied, Run: stats.AmbientTemperature},
		{Name: "ParkBrakeAmbientTemperature", Version: catalogVersion, Trigger: windows.ParkBrakeApplied, Run: stats.AmbientTemperature},
		{Name: "EnergyEfficiencyPerMinute", Version: catalogVersion, Trigger: windows.EveryMinute, Run: stats.EnergyEfficiency},
		{Name: "ServiceEfficiencyPerMinute", Version: catalogVersion, Trigger: windows.EveryMinute, Run: stats.ServiceEfficiency},
		{Name: "ComfortAndSafetyPerMinute", Version: catalogVersion, Trigger: windows.EveryMinute, Run: stats.ComfortAndSafety},
		{Name: "AssetStressPerMinute", Version: catalogVersion, Trigger: windows.EveryMinute, Run: stats.AssetStress},
	}
	for _, trigger := range []struct {
		suffix string
		window windows.WindowType
	}{
		{suffix: "HaltBrakeStats", window: windows.HaltBrakeApplied},
		{suffix: "ParkBrakeStats", window: windows.ParkBrakeApplied},
	} {
		for _, column := range statsapp.StatsColumns {
			algorithms = append(algorithms, Algorithm{
				Name:    camel(column) + trigger.suffix,
				Version: catalogVersion,
				Trigger: trigger.window,
				Run:     stats.ColumnStats(column),
			})
		}
	}
	return algorithms, nil
}

// RegisterCatalog registers every catalog algorithm with p.
func RegisterCatalog(p *Processor, finder *runapp.RunFinder, stats *statsapp.StatisticsService) error {
	algorithms, err := Catalog(finder, stats)
	if err != nil {
		return err
	}
	for _, alg := range algorithms {
		if err := p.Register(alg); err != nil {
			return err
		}
	}
	return nil
}

func findRuns(finder *runapp.RunFinder, target runapp.Target) AlgorithmFunc {
	return func(ctx context.Context, window windows.Window) (windows.Result, error) {
		return finder.FindRuns(ctx, window, target)
	}
}

// camel turns odometry_wheel_speed_fl into OdometryWheelSpeedFl.
func camel(column string) string {
	var b strings.Builder
	for _, part := range strings.Split(column, "_") {
		if part == "" {
			continue
		}
		b.WriteString(strings.ToUpper(part[:1]))
		b.WriteString(part[1:])
	}
	return b.String()
}
