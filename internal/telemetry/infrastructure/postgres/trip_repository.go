package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ztbus-analyser/internal/telemetry/domain"
)

const defaultTripTable = "trips"

// TripRepository reads trip summary rows.
type TripRepository struct {
	db    *sql.DB
	table string
}

// NewTripRepository constructs a trip repository with default table name.
func NewTripRepository(db *sql.DB, opts ...TripOption) *TripRepository {
	repo := &TripRepository{db: db, table: defaultTripTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// TripOption configures the trip repository.
type TripOption func(*TripRepository)

// WithTripTable overrides the default table name.
func WithTripTable(table string) TripOption {
	return func(repo *TripRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// FindTrip loads one trip by id.
func (r *TripRepository) FindTrip(ctx context.Context, tripID int64) (*telemetry.Trip, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("trip repo: nil db")
	}

	query := fmt.Sprintf(`
SELECT id, name, bus_id, route_id, start_time, end_time,
	driven_distance_km, energy_consumption_kwh,
	itcs_passengers_mean, itcs_passengers_min, itcs_passengers_max,
	grid_available_mean, amb_temperature_mean, amb_temperature_min, amb_temperature_max
FROM %s
WHERE id = $1
LIMIT 1`, r.table)

	var trip telemetry.Trip
	err := r.db.QueryRowContext(ctx, query, tripID).Scan(
		&trip.ID,
		&trip.Name,
		&trip.BusID,
		&trip.RouteID,
		&trip.StartTime,
		&trip.EndTime,
		&trip.DrivenDistanceKM,
		&trip.EnergyConsumptionKWh,
		&trip.ITCSPassengersMean,
		&trip.ITCSPassengersMin,
		&trip.ITCSPassengersMax,
		&trip.GridAvailableMean,
		&trip.AmbTemperatureMean,
		&trip.AmbTemperatureMin,
		&trip.AmbTemperatureMax,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, telemetry.ErrTripNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", telemetry.ErrDataSourceUnavailable, err)
	}
	trip.StartTime = trip.StartTime.UTC()
	trip.EndTime = trip.EndTime.UTC()
	return &trip, nil
}
