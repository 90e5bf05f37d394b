package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"ztbus-analyser/internal/telemetry/domain"
)

const defaultTelemetryTable = "telemetry"

// TelemetryRepository is a Postgres implementation for telemetry samples.
type TelemetryRepository struct {
	db    *sql.DB
	table string
}

// NewTelemetryRepository constructs a repository with default table name.
func NewTelemetryRepository(db *sql.DB, opts ...RepositoryOption) *TelemetryRepository {
	repo := &TelemetryRepository{db: db, table: defaultTelemetryTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// RepositoryOption configures the repository.
type RepositoryOption func(*TelemetryRepository)

// WithTable overrides the default table name.
func WithTable(table string) RepositoryOption {
	return func(repo *TelemetryRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// InsertSamples writes telemetry samples. The database assigns ids;
// a sample already stored for the same trip and second is left untouched.
func (r *TelemetryRepository) InsertSamples(ctx context.Context, samples []telemetry.Sample) error {
	if r == nil || r.db == nil {
		return errors.New("telemetry repo: nil db")
	}
	if len(samples) == 0 {
		return nil
	}

	columns := telemetry.Columns[1:]
	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (%s)
VALUES (%s)
ON CONFLICT (trip_id, time) DO NOTHING`, r.table, strings.Join(columns, ", "), strings.Join(placeholders, ", "))

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, s := range samples {
		if s.TripID <= 0 || s.Time.IsZero() {
			_ = tx.Rollback()
			return errors.New("telemetry repo: invalid sample")
		}
		if _, err := stmt.ExecContext(
			ctx,
			s.TripID,
			s.Time.UTC(),
			s.ElectricPowerDemand,
			s.TemperatureAmbient,
			s.TractionBrakePressure,
			s.TractionTractionForce,
			nullFloat(s.GNSSAltitude),
			nullFloat(s.GNSSCourse),
			nullFloat(s.GNSSLatitude),
			nullFloat(s.GNSSLongitude),
			s.ITCSBusRouteID,
			s.ITCSNumberOfPassengers,
			s.ITCSStopName,
			s.OdometryArticulationAngle,
			s.OdometrySteeringAngle,
			s.OdometryVehicleSpeed,
			s.OdometryWheelSpeedFL,
			s.OdometryWheelSpeedFR,
			s.OdometryWheelSpeedML,
			s.OdometryWheelSpeedMR,
			s.OdometryWheelSpeedRL,
			s.OdometryWheelSpeedRR,
			s.DoorIsOpen,
			s.GridIsAvailable,
			s.HaltBrakeIsActive,
			s.ParkBrakeIsActive,
		); err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

func nullFloat(value *float64) sql.NullFloat64 {
	if value == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *value, Valid: true}
}
