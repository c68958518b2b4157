package memory

import (
	"context"
	"sync"
	"time"

	"copper-rewards/internal/domain"
	"copper-rewards/internal/storage"
)

// StatsStore is an in-memory implementation of storage.StatsStore.
// DistributionStore increments the distributed total through
// applyDistribution so that both mutate under one lock discipline.
type StatsStore struct {
	mu    sync.RWMutex
	stats domain.SystemStats
}

// NewStatsStore creates a new in-memory stats store.
func NewStatsStore() *StatsStore {
	return &StatsStore{}
}

// Compile-time interface check.
var _ storage.StatsStore = (*StatsStore)(nil)

// Get retrieves the stats row, zero-valued if never written.
func (s *StatsStore) Get(_ context.Context) (*domain.SystemStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cp := s.stats
	return &cp, nil
}

// RecordSnapshot updates holder count and last snapshot time.
func (s *StatsStore) RecordSnapshot(_ context.Context, holders int, at time.Time) error {
	if holders < 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.TotalHolders = holders
	ts := at
	s.stats.LastSnapshotAt = &ts
	s.stats.UpdatedAt = at
	return nil
}

// applyDistribution adds a distribution's pool to the running total.
// Called by DistributionStore.Create while it holds its own lock, so
// the increment is applied exactly once per created distribution.
func (s *StatsStore) applyDistribution(amount int64, executedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.TotalDistributed += amount
	ts := executedAt
	s.stats.LastDistributionAt = &ts
	s.stats.UpdatedAt = executedAt
}
