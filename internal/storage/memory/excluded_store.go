package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"copper-rewards/internal/domain"
	"copper-rewards/internal/storage"
)

// ExcludedWalletStore is an in-memory implementation of
// storage.ExcludedWalletStore.
type ExcludedWalletStore struct {
	mu   sync.RWMutex
	data map[string]*domain.ExcludedWallet
}

// NewExcludedWalletStore creates a new in-memory exclusion store.
func NewExcludedWalletStore() *ExcludedWalletStore {
	return &ExcludedWalletStore{
		data: make(map[string]*domain.ExcludedWallet),
	}
}

// Compile-time interface check.
var _ storage.ExcludedWalletStore = (*ExcludedWalletStore)(nil)

// Add excludes a wallet. Returns ErrDuplicateKey if already excluded.
func (s *ExcludedWalletStore) Add(_ context.Context, wallet, reason string) error {
	if wallet == "" || reason == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[wallet]; exists {
		return storage.ErrDuplicateKey
	}
	s.data[wallet] = &domain.ExcludedWallet{
		Wallet:  wallet,
		Reason:  reason,
		AddedAt: time.Now().UTC(),
	}
	return nil
}

// Remove deletes an exclusion. Returns ErrNotFound if not excluded.
func (s *ExcludedWalletStore) Remove(_ context.Context, wallet string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[wallet]; !exists {
		return storage.ErrNotFound
	}
	delete(s.data, wallet)
	return nil
}

// List retrieves all exclusions ordered by wallet ASC.
func (s *ExcludedWalletStore) List(_ context.Context) ([]*domain.ExcludedWallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.ExcludedWallet, 0, len(s.data))
	for _, e := range s.data {
		cp := *e
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Wallet < result[j].Wallet
	})
	return result, nil
}

// Contains reports whether a wallet is excluded.
func (s *ExcludedWalletStore) Contains(_ context.Context, wallet string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.data[wallet]
	return exists, nil
}
