package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"ztbus-analyser/internal/telemetry/domain"
)

func sampleRow(rows *sqlmock.Rows, id int64, tripID int64, at time.Time, halt bool) *sqlmock.Rows {
	return rows.AddRow(
		id, tripID, at,
		12.5, 8.0, 0.0, 100.0,
		nil, nil, 47.37, 8.54,
		83, 21, "Bahnhof",
		0.1, 0.2, 3.4,
		3.4, 3.4, 3.4, 3.4, 3.4, 3.4,
		false, true, halt, false,
	)
}

func TestTelemetryQueryFetchTripRange(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	query := NewTelemetryQuery(db)
	from := time.Date(2021, time.March, 9, 14, 15, 0, 0, time.UTC)
	to := from.Add(time.Minute)

	rows := sqlmock.NewRows(telemetry.Columns)
	sampleRow(rows, 1, 7, from, true)
	sampleRow(rows, 2, 7, from.Add(time.Second), false)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE trip_id = $1\n\tAND time >= $2\n\tAND time < $3\nORDER BY time ASC")).
		WithArgs(int64(7), from, to).
		WillReturnRows(rows)

	samples, err := query.Fetch(context.Background(), telemetry.ForTrip(7, from, to))
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(samples) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(samples))
	}
	if !samples[0].HaltBrakeIsActive || samples[1].HaltBrakeIsActive {
		t.Fatalf("unexpected halt brake flags: %+v", samples)
	}
	if samples[0].GNSSAltitude != nil {
		t.Fatalf("expected null altitude")
	}
	if samples[0].GNSSLatitude == nil || *samples[0].GNSSLatitude != 47.37 {
		t.Fatalf("unexpected latitude: %v", samples[0].GNSSLatitude)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTelemetryQueryCachesTemplatePerShape(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	query := NewTelemetryQuery(db, WithQueryTable("telemetry_archive"))
	from := time.Date(2021, time.March, 9, 14, 15, 0, 0, time.UTC)

	for i := 0; i < 2; i++ {
		at := from.Add(time.Duration(i) * time.Minute)
		mock.ExpectQuery(regexp.QuoteMeta("FROM telemetry_archive\nWHERE time >= $1\n\tAND time < $2")).
			WithArgs(at, at.Add(time.Minute)).
			WillReturnRows(sqlmock.NewRows(telemetry.Columns))
		if _, err := query.Fetch(context.Background(), telemetry.ForRange(at, at.Add(time.Minute))); err != nil {
			t.Fatalf("fetch %d: %v", i, err)
		}
	}

	count := 0
	query.templates.Range(func(_, _ any) bool {
		count++
		return true
	})
	if count != 1 {
		t.Fatalf("expected one cached template, got %d", count)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTelemetryQueryRejectsEmptyParams(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	query := NewTelemetryQuery(db)
	if _, err := query.Fetch(context.Background(), telemetry.QueryParams{}); !errors.Is(err, telemetry.ErrInvalidQuery) {
		t.Fatalf("expected ErrInvalidQuery, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unexpected database access: %v", err)
	}
}

func TestTelemetryQueryWrapsStoreErrors(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT").WillReturnError(errors.New("connection reset"))

	tripID := int64(3)
	_, err = NewTelemetryQuery(db).Fetch(context.Background(), telemetry.QueryParams{TripID: &tripID})
	if !errors.Is(err, telemetry.ErrDataSourceUnavailable) {
		t.Fatalf("expected ErrDataSourceUnavailable, got %v", err)
	}
}

func TestTelemetryQueryReportsCancellation(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tripID := int64(3)
	_, err = NewTelemetryQuery(db).Fetch(ctx, telemetry.QueryParams{TripID: &tripID})
	if !errors.Is(err, context.Canceled) || errors.Is(err, telemetry.ErrDataSourceUnavailable) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

func TestTripRepositoryNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM trips")).
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	if _, err := NewTripRepository(db).FindTrip(context.Background(), 99); !errors.Is(err, telemetry.ErrTripNotFound) {
		t.Fatalf("expected ErrTripNotFound, got %v", err)
	}
}

func TestTelemetryRepositoryInsertSamples(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	at := time.Date(2021, time.March, 9, 14, 15, 0, 0, time.UTC)
	mock.ExpectBegin()
	prep := mock.ExpectPrepare(regexp.QuoteMeta("INSERT INTO telemetry (trip_id, time,"))
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(1, 1))
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	repo := NewTelemetryRepository(db)
	samples := []telemetry.Sample{
		{TripID: 1, Time: at, HaltBrakeIsActive: true},
		{TripID: 1, Time: at.Add(time.Second)},
	}
	if err := repo.InsertSamples(context.Background(), samples); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
