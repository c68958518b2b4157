package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"copper-rewards/internal/domain"
	"copper-rewards/internal/storage"
)

// BalanceStore is an in-memory implementation of storage.BalanceStore.
type BalanceStore struct {
	mu        sync.RWMutex
	snapshots map[uuid.UUID]*domain.BalanceSnapshot
	records   []*domain.BalanceRecord
}

// NewBalanceStore creates a new in-memory balance store.
func NewBalanceStore() *BalanceStore {
	return &BalanceStore{
		snapshots: make(map[uuid.UUID]*domain.BalanceSnapshot),
	}
}

// Compile-time interface check.
var _ storage.BalanceStore = (*BalanceStore)(nil)

// InsertSnapshot adds a snapshot and its balance records atomically.
func (s *BalanceStore) InsertSnapshot(_ context.Context, snapshot *domain.BalanceSnapshot, records []*domain.BalanceRecord) error {
	if snapshot == nil || snapshot.ID == uuid.Nil {
		return storage.ErrInvalidInput
	}

	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		if r == nil || r.Wallet == "" || r.Balance < 0 {
			return storage.ErrInvalidInput
		}
		if _, dup := seen[r.Wallet]; dup {
			return storage.ErrDuplicateKey
		}
		seen[r.Wallet] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.snapshots[snapshot.ID]; exists {
		return storage.ErrDuplicateKey
	}

	snap := *snapshot
	s.snapshots[snapshot.ID] = &snap
	for _, r := range records {
		rec := *r
		rec.SnapshotID = snapshot.ID
		s.records = append(s.records, &rec)
	}
	return nil
}

// SeriesFor retrieves one wallet's points within [start, end), ascending.
func (s *BalanceStore) SeriesFor(_ context.Context, wallet string, start, end time.Time) ([]domain.BalancePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.BalancePoint
	for _, r := range s.records {
		if r.Wallet != wallet {
			continue
		}
		snap := s.snapshots[r.SnapshotID]
		if snap == nil || !inWindow(snap.Timestamp, start, end) {
			continue
		}
		result = append(result, domain.BalancePoint{Timestamp: snap.Timestamp, Balance: r.Balance})
	}

	sortPoints(result)
	return result, nil
}

// AllSeries retrieves every wallet's points within [start, end) in one read.
func (s *BalanceStore) AllSeries(_ context.Context, start, end time.Time) (map[string][]domain.BalancePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string][]domain.BalancePoint)
	for _, r := range s.records {
		snap := s.snapshots[r.SnapshotID]
		if snap == nil || !inWindow(snap.Timestamp, start, end) {
			continue
		}
		result[r.Wallet] = append(result[r.Wallet], domain.BalancePoint{Timestamp: snap.Timestamp, Balance: r.Balance})
	}

	for _, series := range result {
		sortPoints(series)
	}
	return result, nil
}

// LatestSnapshot returns the most recent snapshot by timestamp.
func (s *BalanceStore) LatestSnapshot(_ context.Context) (*domain.BalanceSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.BalanceSnapshot
	for _, snap := range s.snapshots {
		if latest == nil || snap.Timestamp.After(latest.Timestamp) {
			latest = snap
		}
	}
	if latest == nil {
		return nil, storage.ErrNotFound
	}

	snap := *latest
	return &snap, nil
}

func inWindow(ts, start, end time.Time) bool {
	return !ts.Before(start) && ts.Before(end)
}

func sortPoints(points []domain.BalancePoint) {
	sort.Slice(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})
}
