package postgres

import (
	"context"
	"fmt"

	"copper-rewards/internal/domain"
	"copper-rewards/internal/storage"
)

// StreakStore implements storage.StreakStore using PostgreSQL.
type StreakStore struct {
	pool *Pool
}

// NewStreakStore creates a new StreakStore.
func NewStreakStore(pool *Pool) *StreakStore {
	return &StreakStore{pool: pool}
}

// Compile-time interface check.
var _ storage.StreakStore = (*StreakStore)(nil)

// Get retrieves a wallet's streak. Returns ErrNotFound if absent.
func (s *StreakStore) Get(ctx context.Context, wallet string) (*domain.HoldStreak, error) {
	var streak domain.HoldStreak
	err := s.pool.QueryRow(ctx, `
		SELECT wallet, streak_start, current_tier, last_sell_at, updated_at
		FROM hold_streaks
		WHERE wallet = $1
	`, wallet).Scan(&streak.Wallet, &streak.StreakStart, &streak.CurrentTier, &streak.LastSellAt, &streak.UpdatedAt)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get streak: %w", err)
	}
	return &streak, nil
}

// Create adds a new streak. Returns ErrDuplicateKey if one exists.
func (s *StreakStore) Create(ctx context.Context, streak *domain.HoldStreak) error {
	if streak == nil || streak.Wallet == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO hold_streaks (wallet, streak_start, current_tier, last_sell_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, streak.Wallet, streak.StreakStart, streak.CurrentTier, streak.LastSellAt, streak.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("create streak: %w", err)
	}
	return nil
}

// Update replaces a wallet's streak row with one atomic statement.
func (s *StreakStore) Update(ctx context.Context, streak *domain.HoldStreak) error {
	if streak == nil || streak.Wallet == "" {
		return storage.ErrInvalidInput
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE hold_streaks
		SET streak_start = $2, current_tier = $3, last_sell_at = $4, updated_at = $5
		WHERE wallet = $1
	`, streak.Wallet, streak.StreakStart, streak.CurrentTier, streak.LastSellAt, streak.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update streak: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// TiersFor retrieves current tiers for the given wallets in one query.
func (s *StreakStore) TiersFor(ctx context.Context, wallets []string) (map[string]int, error) {
	result := make(map[string]int, len(wallets))
	if len(wallets) == 0 {
		return result, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT wallet, current_tier
		FROM hold_streaks
		WHERE wallet = ANY($1)
	`, wallets)
	if err != nil {
		return nil, fmt.Errorf("get tiers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var wallet string
		var tier int
		if err := rows.Scan(&wallet, &tier); err != nil {
			return nil, fmt.Errorf("scan tier: %w", err)
		}
		result[wallet] = tier
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tiers: %w", err)
	}
	return result, nil
}

// All retrieves streaks at or above minTier, tier DESC then wallet ASC.
func (s *StreakStore) All(ctx context.Context, minTier int) ([]*domain.HoldStreak, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT wallet, streak_start, current_tier, last_sell_at, updated_at
		FROM hold_streaks
		WHERE current_tier >= $1
		ORDER BY current_tier DESC, wallet ASC
	`, minTier)
	if err != nil {
		return nil, fmt.Errorf("list streaks: %w", err)
	}
	defer rows.Close()

	var result []*domain.HoldStreak
	for rows.Next() {
		var streak domain.HoldStreak
		if err := rows.Scan(&streak.Wallet, &streak.StreakStart, &streak.CurrentTier, &streak.LastSellAt, &streak.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan streak: %w", err)
		}
		result = append(result, &streak)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate streaks: %w", err)
	}
	return result, nil
}

// TierCounts returns wallet counts per tier, zero entries included.
func (s *StreakStore) TierCounts(ctx context.Context) (map[int]int, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT current_tier, COUNT(*)
		FROM hold_streaks
		GROUP BY current_tier
	`)
	if err != nil {
		return nil, fmt.Errorf("count tiers: %w", err)
	}
	defer rows.Close()

	counts := make(map[int]int, domain.MaxTier)
	for tier := domain.MinTier; tier <= domain.MaxTier; tier++ {
		counts[tier] = 0
	}
	for rows.Next() {
		var tier, count int
		if err := rows.Scan(&tier, &count); err != nil {
			return nil, fmt.Errorf("scan tier count: %w", err)
		}
		counts[tier] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tier counts: %w", err)
	}
	return counts, nil
}
