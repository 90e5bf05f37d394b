package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const (
	defaultKeyPrefix = "ztbus:processed"
	defaultTTL       = 7 * 24 * time.Hour
)

// Client is the subset of go-redis used by the store.
type Client interface {
	Exists(ctx context.Context, keys ...string) *goredis.IntCmd
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *goredis.BoolCmd
}

// ProcessedStore keeps processed (event, consumer) markers in Redis with a TTL.
type ProcessedStore struct {
	client Client
	prefix string
	ttl    time.Duration
}

// Option configures the store.
type Option func(*ProcessedStore)

// WithKeyPrefix overrides the key prefix.
func WithKeyPrefix(prefix string) Option {
	return func(store *ProcessedStore) {
		if prefix != "" {
			store.prefix = prefix
		}
	}
}

// WithTTL overrides how long markers are kept.
func WithTTL(ttl time.Duration) Option {
	return func(store *ProcessedStore) {
		if ttl > 0 {
			store.ttl = ttl
		}
	}
}

// NewClient connects to Redis and pings it.
func NewClient(ctx context.Context, addr string, db int) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr: addr,
		DB:   db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", addr, err)
	}
	return client, nil
}

// NewProcessedStore constructs a processed store.
func NewProcessedStore(client Client, opts ...Option) (*ProcessedStore, error) {
	if client == nil {
		return nil, errors.New("processed store: nil redis client")
	}
	store := &ProcessedStore{client: client, prefix: defaultKeyPrefix, ttl: defaultTTL}
	for _, opt := range opts {
		opt(store)
	}
	return store, nil
}

func (s *ProcessedStore) key(eventID, consumerName string) string {
	return s.prefix + ":" + consumerName + ":" + eventID
}

// HasProcessed checks if event was already processed.
func (s *ProcessedStore) HasProcessed(ctx context.Context, eventID, consumerName string) (bool, error) {
	if eventID == "" || consumerName == "" {
		return false, errors.New("processed store: invalid arguments")
	}
	n, err := s.client.Exists(ctx, s.key(eventID, consumerName)).Result()
	if err != nil {
		return false, fmt.Errorf("processed store: exists: %w", err)
	}
	return n > 0, nil
}

// MarkProcessed records an event as processed. Existing markers keep their TTL.
func (s *ProcessedStore) MarkProcessed(ctx context.Context, eventID, consumerName string) error {
	if eventID == "" || consumerName == "" {
		return errors.New("processed store: invalid arguments")
	}
	if err := s.client.SetNX(ctx, s.key(eventID, consumerName), time.Now().UTC().Unix(), s.ttl).Err(); err != nil {
		return fmt.Errorf("processed store: setnx: %w", err)
	}
	return nil
}
