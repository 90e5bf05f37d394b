package memory

import (
	"context"
	"sort"
	"sync"

	"ztbus-analyser/internal/telemetry/domain"
)

// Store is an in-memory telemetry store.
type Store struct {
	mu      sync.RWMutex
	samples []telemetry.Sample
	trips   map[int64]telemetry.Trip
	fetches int
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{trips: make(map[int64]telemetry.Trip)}
}

// InsertSamples appends samples keeping the store ordered by time.
func (s *Store) InsertSamples(_ context.Context, samples []telemetry.Sample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = append(s.samples, samples...)
	sort.SliceStable(s.samples, func(i, j int) bool { return s.samples[i].Time.Before(s.samples[j].Time) })
	return nil
}

// PutTrip stores a trip row.
func (s *Store) PutTrip(trip telemetry.Trip) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trips[trip.ID] = trip
}

// Fetch returns samples matching params ordered by time ascending.
func (s *Store) Fetch(_ context.Context, params telemetry.QueryParams) ([]telemetry.Sample, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches++
	result := make([]telemetry.Sample, 0)
	for _, sample := range s.samples {
		if params.TripID != nil && sample.TripID != *params.TripID {
			continue
		}
		if params.TimeFrom != nil && sample.Time.Before(*params.TimeFrom) {
			continue
		}
		if params.TimeTo != nil && !sample.Time.Before(*params.TimeTo) {
			continue
		}
		result = append(result, sample)
	}
	return result, nil
}

// FindTrip returns a stored trip.
func (s *Store) FindTrip(_ context.Context, tripID int64) (*telemetry.Trip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	trip, ok := s.trips[tripID]
	if !ok {
		return nil, telemetry.ErrTripNotFound
	}
	return &trip, nil
}

// Fetches returns how many fetches the store has served.
func (s *Store) Fetches() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fetches
}
