package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ztbus-analyser/internal/eventing"
	windows "ztbus-analyser/internal/windows/domain"
)

const defaultDLQTable = "dead_letter_events"

// DLQStore keeps envelopes the dispatcher could not deliver, together with
// the window they concern, so a failed window can be found and re-emitted:
//
//	CREATE TABLE dead_letter_events (
//		event_id      TEXT PRIMARY KEY,
//		event_type    TEXT        NOT NULL,
//		window_key    TEXT        NOT NULL,
//		window_type   TEXT        NOT NULL,
//		payload       JSONB       NOT NULL,
//		error         TEXT        NOT NULL,
//		first_seen_at TIMESTAMPTZ NOT NULL,
//		last_seen_at  TIMESTAMPTZ NOT NULL,
//		attempts      INT         NOT NULL
//	);
type DLQStore struct {
	db    *sql.DB
	table string
}

// DLQOption configures the DLQ store.
type DLQOption func(*DLQStore)

// WithDLQTable overrides the table name.
func WithDLQTable(table string) DLQOption {
	return func(store *DLQStore) {
		if table != "" {
			store.table = table
		}
	}
}

// NewDLQStore constructs a DLQ store.
func NewDLQStore(db *sql.DB, opts ...DLQOption) *DLQStore {
	store := &DLQStore{db: db, table: defaultDLQTable}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// windowRef is the part of a window event payload naming its window.
// WindowEmitted carries TypeName/TypeVersion, AlgorithmCompleted carries
// WindowType.
type windowRef struct {
	WindowKey   string
	TypeName    string
	TypeVersion string
	WindowType  string
}

func failedWindow(env eventing.Envelope) (key, windowType string) {
	var ref windowRef
	if len(env.Payload) > 0 {
		_ = json.Unmarshal(env.Payload, &ref)
	}
	key = env.Subject
	if key == "" {
		key = ref.WindowKey
	}
	switch {
	case ref.WindowType != "":
		windowType = ref.WindowType
	case ref.TypeName != "":
		windowType = windows.WindowType{Name: ref.TypeName, Version: ref.TypeVersion}.String()
	}
	return key, windowType
}

// RecordFailure stores the failed envelope. A window that keeps failing
// keeps one row whose attempts count up.
func (s *DLQStore) RecordFailure(ctx context.Context, env eventing.Envelope, cause error) error {
	if s == nil || s.db == nil {
		return errors.New("dlq store: nil db")
	}
	if env.EventID == "" {
		return errors.New("dlq store: empty event id")
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("dlq store: encode %s: %w", env.EventID, err)
	}
	message := ""
	if cause != nil {
		message = cause.Error()
	}
	windowKey, windowType := failedWindow(env)

	query := fmt.Sprintf(`
INSERT INTO %[1]s (
	event_id, event_type, window_key, window_type, payload, error,
	first_seen_at, last_seen_at, attempts
) VALUES ($1, $2, $3, $4, $5, $6, $7, $7, 1)
ON CONFLICT (event_id) DO UPDATE SET
	error = EXCLUDED.error,
	last_seen_at = EXCLUDED.last_seen_at,
	attempts = %[1]s.attempts + 1`, s.table)

	now := time.Now().UTC()
	if _, err := s.db.ExecContext(ctx, query, env.EventID, env.EventType, windowKey, windowType, payload, message, now); err != nil {
		return fmt.Errorf("dlq store: record %s window=%s: %w", env.EventID, windowKey, err)
	}
	return nil
}
