package memory

import (
	"context"
	"sort"
	"sync"

	"copper-rewards/internal/domain"
	"copper-rewards/internal/storage"
)

// StreakStore is an in-memory implementation of storage.StreakStore.
type StreakStore struct {
	mu   sync.RWMutex
	data map[string]*domain.HoldStreak // keyed by wallet
}

// NewStreakStore creates a new in-memory streak store.
func NewStreakStore() *StreakStore {
	return &StreakStore{
		data: make(map[string]*domain.HoldStreak),
	}
}

// Compile-time interface check.
var _ storage.StreakStore = (*StreakStore)(nil)

// Get retrieves a wallet's streak. Returns ErrNotFound if absent.
func (s *StreakStore) Get(_ context.Context, wallet string) (*domain.HoldStreak, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	streak, exists := s.data[wallet]
	if !exists {
		return nil, storage.ErrNotFound
	}
	cp := *streak
	return &cp, nil
}

// Create adds a new streak. Returns ErrDuplicateKey if one exists.
func (s *StreakStore) Create(_ context.Context, streak *domain.HoldStreak) error {
	if streak == nil || streak.Wallet == "" {
		return storage.ErrInvalidInput
	}
	if streak.CurrentTier < domain.MinTier || streak.CurrentTier > domain.MaxTier {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[streak.Wallet]; exists {
		return storage.ErrDuplicateKey
	}
	cp := *streak
	s.data[streak.Wallet] = &cp
	return nil
}

// Update replaces a wallet's streak row atomically.
func (s *StreakStore) Update(_ context.Context, streak *domain.HoldStreak) error {
	if streak == nil || streak.Wallet == "" {
		return storage.ErrInvalidInput
	}
	if streak.CurrentTier < domain.MinTier || streak.CurrentTier > domain.MaxTier {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[streak.Wallet]; !exists {
		return storage.ErrNotFound
	}
	cp := *streak
	s.data[streak.Wallet] = &cp
	return nil
}

// TiersFor retrieves current tiers for the given wallets in one read.
func (s *StreakStore) TiersFor(_ context.Context, wallets []string) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]int, len(wallets))
	for _, w := range wallets {
		if streak, exists := s.data[w]; exists {
			result[w] = streak.CurrentTier
		}
	}
	return result, nil
}

// All retrieves streaks at or above minTier, tier DESC then wallet ASC.
func (s *StreakStore) All(_ context.Context, minTier int) ([]*domain.HoldStreak, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.HoldStreak
	for _, streak := range s.data {
		if streak.CurrentTier >= minTier {
			cp := *streak
			result = append(result, &cp)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CurrentTier != result[j].CurrentTier {
			return result[i].CurrentTier > result[j].CurrentTier
		}
		return result[i].Wallet < result[j].Wallet
	})
	return result, nil
}

// TierCounts returns wallet counts per tier, zero entries included.
func (s *StreakStore) TierCounts(_ context.Context) (map[int]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[int]int, domain.MaxTier)
	for tier := domain.MinTier; tier <= domain.MaxTier; tier++ {
		counts[tier] = 0
	}
	for _, streak := range s.data {
		counts[streak.CurrentTier]++
	}
	return counts, nil
}
