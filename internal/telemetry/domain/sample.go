package telemetry

import (
	"fmt"
	"sort"
	"time"
)

// Telemetry column names as stored in the telemetry relation.
const (
	ColumnID                        = "id"
	ColumnTripID                    = "trip_id"
	ColumnTime                      = "time"
	ColumnElectricPowerDemand       = "electric_power_demand"
	ColumnTemperatureAmbient        = "temperature_ambient"
	ColumnTractionBrakePressure     = "traction_brake_pressure"
	ColumnTractionTractionForce     = "traction_traction_force"
	ColumnGNSSAltitude              = "gnss_altitude"
	ColumnGNSSCourse                = "gnss_course"
	ColumnGNSSLatitude              = "gnss_latitude"
	ColumnGNSSLongitude             = "gnss_longitude"
	ColumnITCSBusRouteID            = "itcs_bus_route_id"
	ColumnITCSNumberOfPassengers    = "itcs_number_of_passengers"
	ColumnITCSStopName              = "itcs_stop_name"
	ColumnOdometryArticulationAngle = "odometry_articulation_angle"
	ColumnOdometrySteeringAngle     = "odometry_steering_angle"
	ColumnOdometryVehicleSpeed      = "odometry_vehicle_speed"
	ColumnOdometryWheelSpeedFL      = "odometry_wheel_speed_fl"
	ColumnOdometryWheelSpeedFR      = "odometry_wheel_speed_fr"
	ColumnOdometryWheelSpeedML      = "odometry_wheel_speed_ml"
	ColumnOdometryWheelSpeedMR      = "odometry_wheel_speed_mr"
	ColumnOdometryWheelSpeedRL      = "odometry_wheel_speed_rl"
	ColumnOdometryWheelSpeedRR      = "odometry_wheel_speed_rr"
	ColumnDoorIsOpen                = "status_door_is_open"
	ColumnGridIsAvailable           = "status_grid_is_available"
	ColumnHaltBrakeIsActive         = "status_halt_brake_is_active"
	ColumnParkBrakeIsActive         = "status_park_brake_is_active"
)

// Columns lists every column read from the telemetry relation, in select order.
var Columns = []string{
	ColumnID,
	ColumnTripID,
	ColumnTime,
	ColumnElectricPowerDemand,
	ColumnTemperatureAmbient,
	ColumnTractionBrakePressure,
	ColumnTractionTractionForce,
	ColumnGNSSAltitude,
	ColumnGNSSCourse,
	ColumnGNSSLatitude,
	ColumnGNSSLongitude,
	ColumnITCSBusRouteID,
	ColumnITCSNumberOfPassengers,
	ColumnITCSStopName,
	ColumnOdometryArticulationAngle,
	ColumnOdometrySteeringAngle,
	ColumnOdometryVehicleSpeed,
	ColumnOdometryWheelSpeedFL,
	ColumnOdometryWheelSpeedFR,
	ColumnOdometryWheelSpeedML,
	ColumnOdometryWheelSpeedMR,
	ColumnOdometryWheelSpeedRL,
	ColumnOdometryWheelSpeedRR,
	ColumnDoorIsOpen,
	ColumnGridIsAvailable,
	ColumnHaltBrakeIsActive,
	ColumnParkBrakeIsActive,
}

// Sample is one per-second telemetry reading of a trip.
// GNSS fields are nil when the receiver had no fix.
type Sample struct {
	ID     int64
	TripID int64
	Time   time.Time

	ElectricPowerDemand   float64
	TemperatureAmbient    float64
	TractionBrakePressure float64
	TractionTractionForce float64

	GNSSAltitude  *float64
	GNSSCourse    *float64
	GNSSLatitude  *float64
	GNSSLongitude *float64

	ITCSBusRouteID         int64
	ITCSNumberOfPassengers int64
	ITCSStopName           string

	OdometryArticulationAngle float64
	OdometrySteeringAngle     float64
	OdometryVehicleSpeed      float64
	OdometryWheelSpeedFL      float64
	OdometryWheelSpeedFR      float64
	OdometryWheelSpeedML      float64
	OdometryWheelSpeedMR      float64
	OdometryWheelSpeedRL      float64
	OdometryWheelSpeedRR      float64

	DoorIsOpen        bool
	GridIsAvailable   bool
	HaltBrakeIsActive bool
	ParkBrakeIsActive bool
}

// Flag returns the value of a boolean status column.
func (s Sample) Flag(column string) (bool, error) {
	switch column {
	case ColumnDoorIsOpen:
		return s.DoorIsOpen, nil
	case ColumnGridIsAvailable:
		return s.GridIsAvailable, nil
	case ColumnHaltBrakeIsActive:
		return s.HaltBrakeIsActive, nil
	case ColumnParkBrakeIsActive:
		return s.ParkBrakeIsActive, nil
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownColumn, column)
	}
}

// IsFlagColumn reports whether column names a boolean status flag.
func IsFlagColumn(column string) bool {
	_, err := Sample{}.Flag(column)
	return err == nil
}

// Value returns a numeric column value. ok is false for null GNSS readings
// and for columns that are not numeric.
func (s Sample) Value(column string) (value float64, ok bool) {
	switch column {
	case ColumnElectricPowerDemand:
		return s.ElectricPowerDemand, true
	case ColumnTemperatureAmbient:
		return s.TemperatureAmbient, true
	case ColumnTractionBrakePressure:
		return s.TractionBrakePressure, true
	case ColumnTractionTractionForce:
		return s.TractionTractionForce, true
	case ColumnGNSSAltitude:
		return deref(s.GNSSAltitude)
	case ColumnGNSSCourse:
		return deref(s.GNSSCourse)
	case ColumnGNSSLatitude:
		return deref(s.GNSSLatitude)
	case ColumnGNSSLongitude:
		return deref(s.GNSSLongitude)
	case ColumnITCSBusRouteID:
		return float64(s.ITCSBusRouteID), true
	case ColumnITCSNumberOfPassengers:
		return float64(s.ITCSNumberOfPassengers), true
	case ColumnOdometryArticulationAngle:
		return s.OdometryArticulationAngle, true
	case ColumnOdometrySteeringAngle:
		return s.OdometrySteeringAngle, true
	case ColumnOdometryVehicleSpeed:
		return s.OdometryVehicleSpeed, true
	case ColumnOdometryWheelSpeedFL:
		return s.OdometryWheelSpeedFL, true
	case ColumnOdometryWheelSpeedFR:
		return s.OdometryWheelSpeedFR, true
	case ColumnOdometryWheelSpeedML:
		return s.OdometryWheelSpeedML, true
	case ColumnOdometryWheelSpeedMR:
		return s.OdometryWheelSpeedMR, true
	case ColumnOdometryWheelSpeedRL:
		return s.OdometryWheelSpeedRL, true
	case ColumnOdometryWheelSpeedRR:
		return s.OdometryWheelSpeedRR, true
	default:
		return 0, false
	}
}

func deref(value *float64) (float64, bool) {
	if value == nil {
		return 0, false
	}
	return *value, true
}

// SortByTime returns a copy of samples ordered by time ascending.
// Samples with equal timestamps keep their relative order.
func SortByTime(samples []Sample) []Sample {
	sorted := make([]Sample, len(samples))
	copy(sorted, samples)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time.Before(sorted[j].Time) })
	return sorted
}

// GroupByTrip splits samples per trip. Trip ids are returned ascending and
// every group is sorted by time.
func GroupByTrip(samples []Sample) ([]int64, map[int64][]Sample) {
	groups := make(map[int64][]Sample)
	order := make([]int64, 0)
	for _, sample := range samples {
		if _, ok := groups[sample.TripID]; !ok {
			order = append(order, sample.TripID)
		}
		groups[sample.TripID] = append(groups[sample.TripID], sample)
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
	for tripID, group := range groups {
		groups[tripID] = SortByTime(group)
	}
	return order, groups
}
