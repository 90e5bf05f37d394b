package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	simulator "ztbus-analyser/internal/simulator/domain"
)

const defaultSimLogTable = "sim_logs"

// SimLogRepository stores clock advances in Postgres.
type SimLogRepository struct {
	db    *sql.DB
	table string
}

// SimLogOption configures the repository.
type SimLogOption func(*SimLogRepository)

// WithSimLogTable overrides the table name.
func WithSimLogTable(table string) SimLogOption {
	return func(repo *SimLogRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// NewSimLogRepository constructs the repository.
func NewSimLogRepository(db *sql.DB, opts ...SimLogOption) *SimLogRepository {
	repo := &SimLogRepository{db: db, table: defaultSimLogTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// Latest returns the sim log with the greatest end time.
func (r *SimLogRepository) Latest(ctx context.Context) (*simulator.SimLog, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("sim log repository: nil db")
	}
	query := fmt.Sprintf(`
SELECT id, start_time, end_time
FROM %s
ORDER BY end_time DESC
LIMIT 1`, r.table)

	var entry simulator.SimLog
	err := r.db.QueryRowContext(ctx, query).Scan(&entry.ID, &entry.StartTime, &entry.EndTime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	entry.StartTime = entry.StartTime.UTC()
	entry.EndTime = entry.EndTime.UTC()
	return &entry, nil
}

// Append inserts a sim log and returns its id.
func (r *SimLogRepository) Append(ctx context.Context, entry simulator.SimLog) (int64, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("sim log repository: nil db")
	}
	if err := entry.Validate(); err != nil {
		return 0, err
	}
	query := fmt.Sprintf(`
INSERT INTO %s (start_time, end_time)
VALUES ($1, $2)
RETURNING id`, r.table)

	var id int64
	if err := r.db.QueryRowContext(ctx, query, entry.StartTime.UTC(), entry.EndTime.UTC()).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}
