package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const defaultExecutionTable = "algorithm_executions"

// ErrInvalidExecution is returned for an empty window key or an algorithm
// id that is not of the form processor/name@version.
var ErrInvalidExecution = errors.New("execution store: invalid execution")

// ExecutionStore records completed algorithm executions, one row per
// (window_key, processor, algorithm):
//
//	CREATE TABLE algorithm_executions (
//		window_key   UUID        NOT NULL,
//		processor    TEXT        NOT NULL,
//		algorithm    TEXT        NOT NULL,
//		completed_at TIMESTAMPTZ NOT NULL,
//		PRIMARY KEY (window_key, processor, algorithm)
//	);
//
// It satisfies eventing.ProcessedStore with the window key as event id and
// the processor-qualified algorithm id as consumer.
type ExecutionStore struct {
	db    *sql.DB
	table string
	now   func() time.Time
}

// ExecutionOption configures the execution store.
type ExecutionOption func(*ExecutionStore)

// WithExecutionTable overrides the table name.
func WithExecutionTable(table string) ExecutionOption {
	return func(store *ExecutionStore) {
		if table != "" {
			store.table = table
		}
	}
}

// NewExecutionStore constructs an execution store.
func NewExecutionStore(db *sql.DB, opts ...ExecutionOption) *ExecutionStore {
	store := &ExecutionStore{db: db, table: defaultExecutionTable, now: time.Now}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func splitAlgorithmID(windowKey, algorithmID string) (string, string, error) {
	if windowKey == "" {
		return "", "", fmt.Errorf("%w: empty window key", ErrInvalidExecution)
	}
	processor, algorithm, ok := strings.Cut(algorithmID, "/")
	if !ok || processor == "" || !strings.Contains(algorithm, "@") {
		return "", "", fmt.Errorf("%w: algorithm id %q", ErrInvalidExecution, algorithmID)
	}
	return processor, algorithm, nil
}

// HasProcessed reports whether algorithmID already completed for the window.
func (s *ExecutionStore) HasProcessed(ctx context.Context, windowKey, algorithmID string) (bool, error) {
	if s == nil || s.db == nil {
		return false, errors.New("execution store: nil db")
	}
	processor, algorithm, err := splitAlgorithmID(windowKey, algorithmID)
	if err != nil {
		return false, err
	}
	query := fmt.Sprintf(`
SELECT EXISTS (
	SELECT 1 FROM %s
	WHERE window_key = $1 AND processor = $2 AND algorithm = $3
)`, s.table)
	var done bool
	if err := s.db.QueryRowContext(ctx, query, windowKey, processor, algorithm).Scan(&done); err != nil {
		return false, fmt.Errorf("execution store: lookup %s %s: %w", windowKey, algorithmID, err)
	}
	return done, nil
}

// MarkProcessed records a completed execution. Recording it twice keeps
// the first completion time.
func (s *ExecutionStore) MarkProcessed(ctx context.Context, windowKey, algorithmID string) error {
	if s == nil || s.db == nil {
		return errors.New("execution store: nil db")
	}
	processor, algorithm, err := splitAlgorithmID(windowKey, algorithmID)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
INSERT INTO %s (window_key, processor, algorithm, completed_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (window_key, processor, algorithm) DO NOTHING`, s.table)
	if _, err := s.db.ExecContext(ctx, query, windowKey, processor, algorithm, s.now().UTC()); err != nil {
		return fmt.Errorf("execution store: record %s %s: %w", windowKey, algorithmID, err)
	}
	return nil
}
