package integration_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	"ztbus-analyser/internal/eventing"
	"ztbus-analyser/internal/eventing/eventbus"
	eventingrepo "ztbus-analyser/internal/eventing/infrastructure/postgres"
	"ztbus-analyser/internal/processor"
	"ztbus-analyser/internal/processor/events"
	windows "ztbus-analyser/internal/windows/domain"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type pipeline struct {
	db         *sql.DB
	bus        *eventbus.InMemoryBus
	executions *eventingrepo.ExecutionStore
	dispatcher *eventing.Dispatcher
	emitter    *processor.PublisherEmitter
}

func openPipeline(t *testing.T) *pipeline {
	t.Helper()
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if !tableExists(db, "event_outbox") ||
		!tableExists(db, "algorithm_executions") ||
		!tableExists(db, "dead_letter_events") {
		t.Skip("missing tables; run migrations")
	}

	ctx := context.Background()
	_, _ = db.ExecContext(ctx, "DELETE FROM algorithm_executions")
	_, _ = db.ExecContext(ctx, "DELETE FROM dead_letter_events")
	_, _ = db.ExecContext(ctx, "DELETE FROM event_outbox")

	bus := eventbus.NewInMemoryBus()
	registry := eventing.NewRegistry()
	registry.Register(events.WindowEmitted{})

	outboxStore := eventingrepo.NewOutboxStore(db)
	dispatcher := eventing.NewDispatcher(bus, outboxStore, registry, eventingrepo.NewDLQStore(db))
	publisher := eventing.NewPublisher(outboxStore, dispatcher, "analyser-test", bus)
	emitter, err := processor.NewPublisherEmitter(publisher)
	if err != nil {
		t.Fatalf("emitter: %v", err)
	}
	return &pipeline{
		db:         db,
		bus:        bus,
		executions: eventingrepo.NewExecutionStore(db),
		dispatcher: dispatcher,
		emitter:    emitter,
	}
}

func runWindow(start time.Time) windows.Window {
	return windows.Window{
		TimeFrom: start,
		TimeTo:   start.Add(9 * time.Second),
		Type:     windows.HaltBrakeApplied,
		Origin:   "halt_brake_emitter",
		Metadata: map[string]any{windows.MetadataTripID: int64(42)},
	}
}

func newCountingProcessor(t *testing.T, executions eventing.ProcessedStore, calls *int) *processor.Processor {
	t.Helper()
	proc, err := processor.New("analyser-test", processor.WithProcessedStore(executions))
	if err != nil {
		t.Fatalf("processor: %v", err)
	}
	err = proc.Register(processor.Algorithm{
		Name:    "CountHaltBrakeRuns",
		Version: "1.0.0",
		Trigger: windows.HaltBrakeApplied,
		Run: func(ctx context.Context, window windows.Window) (windows.Result, error) {
			*calls++
			return windows.ValueResult{Value: 1}, nil
		},
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return proc
}

func TestEventing_AlgorithmRunsOncePerWindow(t *testing.T) {
	p := openPipeline(t)
	ctx := context.Background()

	calls := 0
	proc := newCountingProcessor(t, p.executions, &calls)
	eventing.Subscribe(p.bus, eventbus.EventTypeOf[events.WindowEmitted](), proc.Name(), proc.HandleEvent, nil)

	window := runWindow(time.Date(2021, time.March, 9, 14, 15, 0, 0, time.UTC))
	if err := p.emitter.Emit(ctx, window); err != nil {
		t.Fatalf("emit window: %v", err)
	}
	if err := p.emitter.Emit(ctx, window); err != nil {
		t.Fatalf("emit duplicate: %v", err)
	}

	if _, err := p.dispatcher.Dispatch(ctx, 10); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if _, err := p.dispatcher.Dispatch(ctx, 10); err != nil {
		t.Fatalf("dispatch again: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected algorithm once, got %d", calls)
	}

	// a restarted processor sees the recorded execution
	restarted := newCountingProcessor(t, p.executions, &calls)
	if err := restarted.Handle(ctx, window); err != nil {
		t.Fatalf("handle after restart: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected recorded execution to be skipped, got %d calls", calls)
	}

	outbox := eventingrepo.NewOutboxStore(p.db)
	envs, err := outbox.ListByEventType(ctx, eventbus.EventTypeOf[events.WindowEmitted](), time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("list by type: %v", err)
	}
	if len(envs) != 1 || envs[0].Subject != window.Key() {
		t.Fatalf("expected one stored window, got %d", len(envs))
	}
}

func TestEventing_DLQOnFailure(t *testing.T) {
	p := openPipeline(t)
	ctx := context.Background()

	eventing.Subscribe(p.bus, eventbus.EventTypeOf[events.WindowEmitted](), "consumer-fail", func(ctx context.Context, event any) error {
		return errors.New("boom")
	}, nil)

	window := runWindow(time.Date(2021, time.March, 9, 15, 0, 0, 0, time.UTC))
	if err := p.emitter.Emit(ctx, window); err != nil {
		t.Fatalf("emit window: %v", err)
	}

	result, err := p.dispatcher.Dispatch(ctx, 10)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if result.DLQ != 1 {
		t.Fatalf("expected 1 dead letter, got %+v", result)
	}

	var windowKey, windowType string
	err = p.db.QueryRowContext(ctx, "SELECT window_key, window_type FROM dead_letter_events").Scan(&windowKey, &windowType)
	if err != nil {
		t.Fatalf("read dlq: %v", err)
	}
	if windowKey != window.Key() || windowType != windows.HaltBrakeApplied.String() {
		t.Fatalf("unexpected dlq record key=%s type=%s", windowKey, windowType)
	}
}

func tableExists(db *sql.DB, table string) bool {
	var exists bool
	err := db.QueryRow(`
SELECT EXISTS (
	SELECT 1
	FROM information_schema.tables
	WHERE table_schema = 'public' AND table_name = $1
)`, table).Scan(&exists)
	if err != nil {
		return false
	}
	return exists
}
