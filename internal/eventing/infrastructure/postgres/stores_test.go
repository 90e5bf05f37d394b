package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"ztbus-analyser/internal/eventing"
)

func TestOutboxInsertIgnoresDuplicateEventID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	store := NewOutboxStore(db)
	env := eventing.Envelope{EventID: "evt-1", EventType: "events.WindowEmitted", Payload: json.RawMessage(`{}`)}

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (event_id)\nDO NOTHING")).
		WithArgs(sqlmock.AnyArg(), "evt-1", "events.WindowEmitted", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	id, err := store.Insert(context.Background(), env)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if id == "" {
		t.Fatalf("expected outbox id")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestOutboxListPendingDecodesEnvelopes(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	store := NewOutboxStore(db, WithOutboxTable("outbox_test"))
	payload, _ := json.Marshal(eventing.Envelope{EventID: "evt-2", EventType: "events.WindowEmitted"})
	mock.ExpectQuery(regexp.QuoteMeta("FROM outbox_test\nWHERE status = 'pending'")).
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "payload"}).AddRow("row-1", payload))

	records, err := store.ListPending(context.Background(), 10)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(records) != 1 || records[0].ID != "row-1" || records[0].Envelope.EventID != "evt-2" {
		t.Fatalf("unexpected records: %+v", records)
	}
}

func TestOutboxListByEventType(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	from := time.Date(2021, time.March, 9, 14, 0, 0, 0, time.UTC)
	to := from.Add(time.Hour)
	payload, _ := json.Marshal(eventing.Envelope{EventID: "evt-3", EventType: "events.WindowEmitted"})
	mock.ExpectQuery(regexp.QuoteMeta("WHERE event_type = $1")).
		WithArgs("events.WindowEmitted", from, to).
		WillReturnRows(sqlmock.NewRows([]string{"payload"}).AddRow(payload))

	envs, err := NewOutboxStore(db).ListByEventType(context.Background(), "events.WindowEmitted", from, to)
	if err != nil {
		t.Fatalf("list by type: %v", err)
	}
	if len(envs) != 1 || envs[0].EventID != "evt-3" {
		t.Fatalf("unexpected envelopes: %+v", envs)
	}
}

func TestExecutionStoreKeysOnWindowAndAlgorithm(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	store := NewExecutionStore(db, WithExecutionTable("executions_test"))
	key := "0b7c1f0e-6d4a-5c1e-9a53-2f8a1f9b2c11"
	mock.ExpectQuery(regexp.QuoteMeta("FROM executions_test\n\tWHERE window_key = $1 AND processor = $2 AND algorithm = $3")).
		WithArgs(key, "analyser", "HaltBrakeAmbientTemperature@1.0.0").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (window_key, processor, algorithm) DO NOTHING")).
		WithArgs(key, "analyser", "HaltBrakeAmbientTemperature@1.0.0", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	done, err := store.HasProcessed(context.Background(), key, "analyser/HaltBrakeAmbientTemperature@1.0.0")
	if err != nil || done {
		t.Fatalf("expected pending execution, got %v %v", done, err)
	}
	if err := store.MarkProcessed(context.Background(), key, "analyser/HaltBrakeAmbientTemperature@1.0.0"); err != nil {
		t.Fatalf("mark processed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestExecutionStoreRejectsInvalidIDs(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	store := NewExecutionStore(db)
	for _, tc := range []struct{ key, algorithm string }{
		{"", "analyser/FindHaltBrakeWindows@1.0.0"},
		{"key", "FindHaltBrakeWindows@1.0.0"},
		{"key", "analyser/FindHaltBrakeWindows"},
		{"key", "/FindHaltBrakeWindows@1.0.0"},
	} {
		if _, err := store.HasProcessed(context.Background(), tc.key, tc.algorithm); !errors.Is(err, ErrInvalidExecution) {
			t.Fatalf("%q %q: expected ErrInvalidExecution, got %v", tc.key, tc.algorithm, err)
		}
		if err := store.MarkProcessed(context.Background(), tc.key, tc.algorithm); !errors.Is(err, ErrInvalidExecution) {
			t.Fatalf("%q %q: expected ErrInvalidExecution on mark, got %v", tc.key, tc.algorithm, err)
		}
	}
}

func TestDLQStoreRecordsFailedWindow(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("attempts = dead_letter_events.attempts + 1")).
		WithArgs("evt-5", "events.WindowEmitted", "window-5", "HaltBrakeApplied@2.1.0", sqlmock.AnyArg(), "boom", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO dead_letter_events")).
		WithArgs("evt-6", "events.AlgorithmCompleted", "window-6", "EveryMinute@1.0.0", sqlmock.AnyArg(), "down", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	store := NewDLQStore(db)
	emitted := eventing.Envelope{
		EventID:   "evt-5",
		EventType: "events.WindowEmitted",
		Subject:   "window-5",
		Payload:   json.RawMessage(`{"WindowKey":"window-5","TypeName":"HaltBrakeApplied","TypeVersion":"2.1.0"}`),
	}
	if err := store.RecordFailure(context.Background(), emitted, errors.New("boom")); err != nil {
		t.Fatalf("record failure: %v", err)
	}
	completed := eventing.Envelope{
		EventID:   "evt-6",
		EventType: "events.AlgorithmCompleted",
		Payload:   json.RawMessage(`{"WindowKey":"window-6","WindowType":"EveryMinute@1.0.0"}`),
	}
	if err := store.RecordFailure(context.Background(), completed, errors.New("down")); err != nil {
		t.Fatalf("record failure: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
