package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"copper-rewards/internal/domain"
	"copper-rewards/internal/storage"
)

// DistributionStore is an in-memory implementation of
// storage.DistributionStore. An optional StatsStore receives the
// distributed-total increment inside the same Create call.
type DistributionStore struct {
	mu            sync.RWMutex
	distributions map[uuid.UUID]*domain.Distribution
	recipients    []*domain.DistributionRecipient
	stats         *StatsStore
}

// NewDistributionStore creates a new in-memory distribution store.
// stats may be nil when aggregate bookkeeping is not needed.
func NewDistributionStore(stats *StatsStore) *DistributionStore {
	return &DistributionStore{
		distributions: make(map[uuid.UUID]*domain.Distribution),
		stats:         stats,
	}
}

// Compile-time interface check.
var _ storage.DistributionStore = (*DistributionStore)(nil)

// Create persists a distribution with all recipients and the stats
// increment as one atomic unit.
func (s *DistributionStore) Create(_ context.Context, dist *domain.Distribution, recipients []*domain.DistributionRecipient) error {
	if dist == nil || dist.ID == uuid.Nil || dist.RecipientCount != len(recipients) {
		return storage.ErrInvalidInput
	}

	seen := make(map[string]struct{}, len(recipients))
	for _, r := range recipients {
		if r == nil || r.Wallet == "" || r.AmountReceived < 0 {
			return storage.ErrInvalidInput
		}
		if _, dup := seen[r.Wallet]; dup {
			return storage.ErrDuplicateKey
		}
		seen[r.Wallet] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.distributions[dist.ID]; exists {
		return storage.ErrDuplicateKey
	}

	cp := *dist
	s.distributions[dist.ID] = &cp
	for _, r := range recipients {
		rec := *r
		rec.DistributionID = dist.ID
		s.recipients = append(s.recipients, &rec)
	}

	if s.stats != nil {
		s.stats.applyDistribution(dist.PoolAmount, dist.ExecutedAt)
	}
	return nil
}

// Latest returns the most recent distribution by executed_at.
func (s *DistributionStore) Latest(_ context.Context) (*domain.Distribution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.Distribution
	for _, d := range s.distributions {
		if latest == nil || d.ExecutedAt.After(latest.ExecutedAt) {
			latest = d
		}
	}
	if latest == nil {
		return nil, storage.ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

// ByID retrieves a distribution. Returns ErrNotFound if absent.
func (s *DistributionStore) ByID(_ context.Context, id uuid.UUID) (*domain.Distribution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, exists := s.distributions[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

// Recent retrieves up to limit distributions, newest first.
func (s *DistributionStore) Recent(_ context.Context, limit int) ([]*domain.Distribution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Distribution, 0, len(s.distributions))
	for _, d := range s.distributions {
		cp := *d
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ExecutedAt.After(result[j].ExecutedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// RecipientsFor retrieves a distribution's recipients, amount DESC then
// wallet ASC.
func (s *DistributionStore) RecipientsFor(_ context.Context, id uuid.UUID) ([]*domain.DistributionRecipient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.DistributionRecipient
	for _, r := range s.recipients {
		if r.DistributionID == id {
			cp := *r
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].AmountReceived != result[j].AmountReceived {
			return result[i].AmountReceived > result[j].AmountReceived
		}
		return result[i].Wallet < result[j].Wallet
	})
	return result, nil
}

// WalletHistory retrieves a wallet's allocations, newest first.
func (s *DistributionStore) WalletHistory(_ context.Context, wallet string, limit int) ([]*domain.DistributionRecipient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.DistributionRecipient
	for _, r := range s.recipients {
		if r.Wallet == wallet {
			cp := *r
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		di := s.distributions[result[i].DistributionID]
		dj := s.distributions[result[j].DistributionID]
		if di == nil || dj == nil {
			return result[i].DistributionID.String() < result[j].DistributionID.String()
		}
		return di.ExecutedAt.After(dj.ExecutedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Totals returns running aggregates over all distributions.
func (s *DistributionStore) Totals(_ context.Context) (*domain.DistributionTotals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	totals := &domain.DistributionTotals{}
	for _, d := range s.distributions {
		totals.Distributions++
		totals.AmountDistributed += d.PoolAmount
		totals.Recipients += int64(d.RecipientCount)
	}
	return totals, nil
}
