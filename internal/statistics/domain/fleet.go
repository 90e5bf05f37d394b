package statistics

import (
	telemetry "ztbus-analyser/internal/telemetry/domain"
)

// dwellSpeedThreshold is the speed in m/s under which an open door counts as dwelling.
const dwellSpeedThreshold = 0.1

// EnergyEfficiency is the energy use over a set of 1 Hz samples.
type EnergyEfficiency struct {
	KWh               *float64
	KWhPerKM          *float64
	KWhPerPassengerKM *float64
}

// Fields returns the result keyed by field name.
func (e EnergyEfficiency) Fields() map[string]*float64 {
	return map[string]*float64{
		"kwh":                  e.KWh,
		"kwh_per_km":           e.KWhPerKM,
		"kwh_per_passenger_km": e.KWhPerPassengerKM,
	}
}

// Energy integrates power demand [kW] and odometry speed [m/s] over 1 s samples.
func Energy(samples []telemetry.Sample) EnergyEfficiency {
	if len(samples) == 0 {
		return EnergyEfficiency{}
	}
	kwh, meters, passengerMeters := 0.0, 0.0, 0.0
	for _, s := range samples {
		kwh += s.ElectricPowerDemand / 3600.0
		meters += s.OdometryVehicleSpeed
		passengerMeters += float64(s.ITCSNumberOfPassengers) * s.OdometryVehicleSpeed
	}
	result := EnergyEfficiency{KWh: ptr(kwh)}
	if km := meters / 1000.0; km > 0 {
		result.KWhPerKM = ptr(kwh / km)
	}
	if passengerKM := passengerMeters / 1000.0; passengerKM > 0 {
		result.KWhPerPassengerKM = ptr(kwh / passengerKM)
	}
	return result
}

// ServiceEfficiency is the share of time spent at stops with doors open.
type ServiceEfficiency struct {
	DwellTimeS       *float64
	DoorOpenFraction *float64
}

// Fields returns the result keyed by field name.
func (s ServiceEfficiency) Fields() map[string]*float64 {
	return map[string]*float64{
		"dwell_time_s":       s.DwellTimeS,
		"door_open_fraction": s.DoorOpenFraction,
	}
}

// Service counts the seconds with doors open while standing.
func Service(samples []telemetry.Sample) ServiceEfficiency {
	if len(samples) == 0 {
		return ServiceEfficiency{}
	}
	dwell := 0
	for _, s := range samples {
		if s.DoorIsOpen && s.OdometryVehicleSpeed < dwellSpeedThreshold {
			dwell++
		}
	}
	return ServiceEfficiency{
		DwellTimeS:       ptr(float64(dwell)),
		DoorOpenFraction: ptr(float64(dwell) / float64(len(samples))),
	}
}

// ComfortAndSafety describes longitudinal acceleration and jerk.
type ComfortAndSafety struct {
	MeanAccel *float64
	StdAccel  *float64
	Jerk95p   *float64
}

// Fields returns the result keyed by field name.
func (c ComfortAndSafety) Fields() map[string]*float64 {
	return map[string]*float64{
		"mean_accel": c.MeanAccel,
		"std_accel":  c.StdAccel,
		"jerk_95p":   c.Jerk95p,
	}
}

// Comfort differentiates speed per trip at 1 s spacing. The first
// acceleration and jerk of every trip are zero.
func Comfort(samples []telemetry.Sample) ComfortAndSafety {
	if len(samples) == 0 {
		return ComfortAndSafety{}
	}
	tripIDs, byTrip := telemetry.GroupByTrip(samples)
	accels := make([]float64, 0, len(samples))
	jerks := make([]float64, 0, len(samples))
	for _, tripID := range tripIDs {
		group := byTrip[tripID]
		prevAccel := 0.0
		for i, s := range group {
			accel, jerk := 0.0, 0.0
			if i > 0 {
				accel = s.OdometryVehicleSpeed - group[i-1].OdometryVehicleSpeed
				jerk = accel - prevAccel
			}
			accels = append(accels, accel)
			jerks = append(jerks, jerk)
			prevAccel = accel
		}
	}
	return ComfortAndSafety{
		MeanAccel: Mean(accels),
		StdAccel:  Std(accels),
		Jerk95p:   Quantile(jerks, 0.95),
	}
}

// AssetStress describes mechanical load on the articulation and brakes.
type AssetStress struct {
	ArticulationVar   *float64
	BrakePressureMean *float64
}

// Fields returns the result keyed by field name.
func (a AssetStress) Fields() map[string]*float64 {
	return map[string]*float64{
		"articulation_var":    a.ArticulationVar,
		"brake_pressure_mean": a.BrakePressureMean,
	}
}

// Stress computes articulation angle variance and mean brake pressure.
func Stress(samples []telemetry.Sample) AssetStress {
	if len(samples) == 0 {
		return AssetStress{}
	}
	return AssetStress{
		ArticulationVar:   Variance(Column(samples, telemetry.ColumnOdometryArticulationAngle)),
		BrakePressureMean: Mean(Column(samples, telemetry.ColumnTractionBrakePressure)),
	}
}
