package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"ztbus-analyser/internal/telemetry/domain"
)

// TelemetryQuery is a Postgres query implementation.
type TelemetryQuery struct {
	db        *sql.DB
	table     string
	templates sync.Map
}

// NewTelemetryQuery constructs a query with default table name.
func NewTelemetryQuery(db *sql.DB, opts ...QueryOption) *TelemetryQuery {
	query := &TelemetryQuery{db: db, table: defaultTelemetryTable}
	for _, opt := range opts {
		opt(query)
	}
	return query
}

// Fetch returns telemetry samples matching params ordered by time ascending.
// Time filters are half-open: time_from <= time < time_to.
func (q *TelemetryQuery) Fetch(ctx context.Context, params telemetry.QueryParams) ([]telemetry.Sample, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if q == nil || q.db == nil {
		return nil, errors.New("telemetry query: nil db")
	}

	query := q.template(params.Shape())
	args := make([]any, 0, 3)
	if params.TripID != nil {
		args = append(args, *params.TripID)
	}
	if params.TimeFrom != nil {
		args = append(args, params.TimeFrom.UTC())
	}
	if params.TimeTo != nil {
		args = append(args, params.TimeTo.UTC())
	}

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fetchError(ctx, err)
	}
	defer rows.Close()

	samples := make([]telemetry.Sample, 0)
	for rows.Next() {
		sample, err := scanSample(rows)
		if err != nil {
			return nil, fetchError(ctx, err)
		}
		samples = append(samples, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, fetchError(ctx, err)
	}
	return samples, nil
}

// fetchError reports a cancelled caller as such and anything else as an outage.
func fetchError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("telemetry query: %w (%v)", ctxErr, err)
	}
	return fmt.Errorf("%w: %v", telemetry.ErrDataSourceUnavailable, err)
}

// template returns the SQL for a filter shape. Templates are cached per
// shape; argument values are never cached.
func (q *TelemetryQuery) template(shape telemetry.Shape) string {
	if cached, ok := q.templates.Load(shape); ok {
		return cached.(string)
	}
	query := buildSelect(q.table, shape)
	actual, _ := q.templates.LoadOrStore(shape, query)
	return actual.(string)
}

func buildSelect(table string, shape telemetry.Shape) string {
	conditions := make([]string, 0, 3)
	next := 1
	if shape&telemetry.ShapeTripID != 0 {
		conditions = append(conditions, fmt.Sprintf("trip_id = $%d", next))
		next++
	}
	if shape&telemetry.ShapeTimeFrom != 0 {
		conditions = append(conditions, fmt.Sprintf("time >= $%d", next))
		next++
	}
	if shape&telemetry.ShapeTimeTo != 0 {
		conditions = append(conditions, fmt.Sprintf("time < $%d", next))
	}
	return fmt.Sprintf(`
SELECT %s
FROM %s
WHERE %s
ORDER BY time ASC`, strings.Join(telemetry.Columns, ", "), table, strings.Join(conditions, "\n\tAND "))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSample(row rowScanner) (telemetry.Sample, error) {
	var sample telemetry.Sample
	var altitude, course, latitude, longitude sql.NullFloat64
	var stopName sql.NullString
	if err := row.Scan(
		&sample.ID,
		&sample.TripID,
		&sample.Time,
		&sample.ElectricPowerDemand,
		&sample.TemperatureAmbient,
		&sample.TractionBrakePressure,
		&sample.TractionTractionForce,
		&altitude,
		&course,
		&latitude,
		&longitude,
		&sample.ITCSBusRouteID,
		&sample.ITCSNumberOfPassengers,
		&stopName,
		&sample.OdometryArticulationAngle,
		&sample.OdometrySteeringAngle,
		&sample.OdometryVehicleSpeed,
		&sample.OdometryWheelSpeedFL,
		&sample.OdometryWheelSpeedFR,
		&sample.OdometryWheelSpeedML,
		&sample.OdometryWheelSpeedMR,
		&sample.OdometryWheelSpeedRL,
		&sample.OdometryWheelSpeedRR,
		&sample.DoorIsOpen,
		&sample.GridIsAvailable,
		&sample.HaltBrakeIsActive,
		&sample.ParkBrakeIsActive,
	); err != nil {
		return telemetry.Sample{}, err
	}
	sample.Time = sample.Time.UTC()
	sample.GNSSAltitude = nullableFloat(altitude)
	sample.GNSSCourse = nullableFloat(course)
	sample.GNSSLatitude = nullableFloat(latitude)
	sample.GNSSLongitude = nullableFloat(longitude)
	sample.ITCSStopName = stopName.String
	return sample, nil
}

func nullableFloat(value sql.NullFloat64) *float64 {
	if !value.Valid {
		return nil
	}
	v := value.Float64
	return &v
}

// QueryOption configures the telemetry query.
type QueryOption func(*TelemetryQuery)

// WithQueryTable overrides the default table name for queries.
func WithQueryTable(table string) QueryOption {
	return func(query *TelemetryQuery) {
		if query != nil && table != "" {
			query.table = table
		}
	}
}
