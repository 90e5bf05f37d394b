package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"ztbus-analyser/internal/eventing"
)

type outboxEntry struct {
	id     string
	env    eventing.Envelope
	status string
}

// OutboxStore keeps outbox records in memory, in insertion order.
type OutboxStore struct {
	mu      sync.Mutex
	entries []*outboxEntry
	byEvent map[string]*outboxEntry
}

// NewOutboxStore constructs an empty store.
func NewOutboxStore() *OutboxStore {
	return &OutboxStore{byEvent: make(map[string]*outboxEntry)}
}

// Insert appends env unless its event id is already stored.
func (s *OutboxStore) Insert(ctx context.Context, env eventing.Envelope) (string, error) {
	if env.EventID == "" {
		return "", errors.New("outbox store: empty event id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.byEvent[env.EventID]; ok {
		return existing.id, nil
	}
	entry := &outboxEntry{id: eventing.NewEventID(), env: env, status: "pending"}
	s.entries = append(s.entries, entry)
	s.byEvent[env.EventID] = entry
	return entry.id, nil
}

// ListPending returns up to limit pending records.
func (s *OutboxStore) ListPending(ctx context.Context, limit int) ([]eventing.OutboxRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var records []eventing.OutboxRecord
	for _, entry := range s.entries {
		if limit > 0 && len(records) >= limit {
			break
		}
		if entry.status == "pending" {
			records = append(records, eventing.OutboxRecord{ID: entry.id, Envelope: entry.env})
		}
	}
	return records, nil
}

// MarkSent marks a record as sent.
func (s *OutboxStore) MarkSent(ctx context.Context, id string) error {
	return s.mark(id, "sent")
}

// MarkFailed marks a record as failed.
func (s *OutboxStore) MarkFailed(ctx context.Context, id string) error {
	return s.mark(id, "failed")
}

func (s *OutboxStore) mark(id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entry := range s.entries {
		if entry.id == id {
			entry.status = status
			return nil
		}
	}
	return errors.New("outbox store: unknown record " + id)
}

// Envelopes returns every stored envelope of eventType.
func (s *OutboxStore) Envelopes(eventType string) []eventing.Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	var envs []eventing.Envelope
	for _, entry := range s.entries {
		if eventType == "" || entry.env.EventType == eventType {
			envs = append(envs, entry.env)
		}
	}
	return envs
}

// ListByEventType returns envelopes of eventType that occurred within [from, to).
func (s *OutboxStore) ListByEventType(_ context.Context, eventType string, from, to time.Time) ([]eventing.Envelope, error) {
	var envs []eventing.Envelope
	for _, env := range s.Envelopes(eventType) {
		if !env.OccurredAt.Before(from) && env.OccurredAt.Before(to) {
			envs = append(envs, env)
		}
	}
	return envs, nil
}

// ProcessedStore remembers processed (event, consumer) pairs in memory.
type ProcessedStore struct {
	mu   sync.RWMutex
	seen map[string]struct{}
}

// NewProcessedStore constructs an empty store.
func NewProcessedStore() *ProcessedStore {
	return &ProcessedStore{seen: make(map[string]struct{})}
}

// HasProcessed reports whether consumerName already handled eventID.
func (s *ProcessedStore) HasProcessed(ctx context.Context, eventID, consumerName string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.seen[consumerName+"/"+eventID]
	return ok, nil
}

// MarkProcessed records eventID as handled by consumerName.
func (s *ProcessedStore) MarkProcessed(ctx context.Context, eventID, consumerName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen[consumerName+"/"+eventID] = struct{}{}
	return nil
}

// DLQStore collects failed envelopes in memory.
type DLQStore struct {
	mu       sync.Mutex
	failures []eventing.Envelope
}

// RecordFailure stores env.
func (s *DLQStore) RecordFailure(ctx context.Context, env eventing.Envelope, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, env)
	return nil
}

// Len returns the number of recorded failures.
func (s *DLQStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.failures)
}
