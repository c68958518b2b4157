package postgres

import (
	"context"
	"fmt"
	"time"

	"copper-rewards/internal/domain"
	"copper-rewards/internal/storage"
)

// StatsStore implements storage.StatsStore using PostgreSQL.
// The single row is keyed at id = 1; the distribution increment is
// applied by DistributionStore.Create inside its transaction.
type StatsStore struct {
	pool *Pool
}

// NewStatsStore creates a new StatsStore.
func NewStatsStore(pool *Pool) *StatsStore {
	return &StatsStore{pool: pool}
}

// Compile-time interface check.
var _ storage.StatsStore = (*StatsStore)(nil)

// Get retrieves the stats row, zero-valued if never written.
func (s *StatsStore) Get(ctx context.Context) (*domain.SystemStats, error) {
	var stats domain.SystemStats
	err := s.pool.QueryRow(ctx, `
		SELECT total_holders, total_distributed, last_snapshot_at, last_distribution_at, updated_at
		FROM system_stats
		WHERE id = 1
	`).Scan(&stats.TotalHolders, &stats.TotalDistributed, &stats.LastSnapshotAt, &stats.LastDistributionAt, &stats.UpdatedAt)
	if err != nil {
		if isNotFoundError(err) {
			return &domain.SystemStats{}, nil
		}
		return nil, fmt.Errorf("get system stats: %w", err)
	}
	return &stats, nil
}

// RecordSnapshot updates holder count and last snapshot time.
func (s *StatsStore) RecordSnapshot(ctx context.Context, holders int, at time.Time) error {
	if holders < 0 {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO system_stats (id, total_holders, last_snapshot_at, updated_at)
		VALUES (1, $1, $2, $2)
		ON CONFLICT (id) DO UPDATE SET
			total_holders = EXCLUDED.total_holders,
			last_snapshot_at = EXCLUDED.last_snapshot_at,
			updated_at = EXCLUDED.updated_at
	`, holders, at)
	if err != nil {
		return fmt.Errorf("record snapshot stats: %w", err)
	}
	return nil
}
