package telemetry

import (
	"context"
	"time"
)

// Trip is the summary row of a single bus trip.
type Trip struct {
	ID                   int64
	Name                 string
	BusID                int64
	RouteID              int64
	StartTime            time.Time
	EndTime              time.Time
	DrivenDistanceKM     float64
	EnergyConsumptionKWh float64
	ITCSPassengersMean   float64
	ITCSPassengersMin    int64
	ITCSPassengersMax    int64
	GridAvailableMean    float64
	AmbTemperatureMean   float64
	AmbTemperatureMin    float64
	AmbTemperatureMax    float64
}

// TripReader loads trips by id.
type TripReader interface {
	FindTrip(ctx context.Context, tripID int64) (*Trip, error)
}
