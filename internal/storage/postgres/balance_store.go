package postgres

import (
	"context"
	"fmt"
	"time"

	"copper-rewards/internal/domain"
	"copper-rewards/internal/storage"
)

// BalanceStore implements storage.BalanceStore using PostgreSQL.
type BalanceStore struct {
	pool *Pool
}

// NewBalanceStore creates a new BalanceStore.
func NewBalanceStore(pool *Pool) *BalanceStore {
	return &BalanceStore{pool: pool}
}

// Compile-time interface check.
var _ storage.BalanceStore = (*BalanceStore)(nil)

// InsertSnapshot adds a snapshot and its balance records in one
// transaction. Returns ErrDuplicateKey if the snapshot id exists.
func (s *BalanceStore) InsertSnapshot(ctx context.Context, snapshot *domain.BalanceSnapshot, records []*domain.BalanceRecord) error {
	if snapshot == nil {
		return storage.ErrInvalidInput
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO snapshots (id, timestamp, total_holders, total_supply, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, snapshot.ID, snapshot.Timestamp, snapshot.TotalHolders, snapshot.TotalSupply, snapshot.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert snapshot: %w", err)
	}

	for _, r := range records {
		if r == nil || r.Balance < 0 {
			return storage.ErrInvalidInput
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO balances (snapshot_id, wallet, balance)
			VALUES ($1, $2, $3)
		`, snapshot.ID, r.Wallet, r.Balance)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert balance: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// SeriesFor retrieves one wallet's points within [start, end), ascending.
func (s *BalanceStore) SeriesFor(ctx context.Context, wallet string, start, end time.Time) ([]domain.BalancePoint, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT s.timestamp, b.balance
		FROM balances b
		JOIN snapshots s ON s.id = b.snapshot_id
		WHERE b.wallet = $1 AND s.timestamp >= $2 AND s.timestamp < $3
		ORDER BY s.timestamp ASC
	`, wallet, start, end)
	if err != nil {
		return nil, fmt.Errorf("get series for wallet: %w", err)
	}
	defer rows.Close()

	var result []domain.BalancePoint
	for rows.Next() {
		var p domain.BalancePoint
		if err := rows.Scan(&p.Timestamp, &p.Balance); err != nil {
			return nil, fmt.Errorf("scan balance point: %w", err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate balance points: %w", err)
	}
	return result, nil
}

// AllSeries retrieves every wallet's points within [start, end) in a
// single query, grouped by wallet.
func (s *BalanceStore) AllSeries(ctx context.Context, start, end time.Time) (map[string][]domain.BalancePoint, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT b.wallet, s.timestamp, b.balance
		FROM balances b
		JOIN snapshots s ON s.id = b.snapshot_id
		WHERE s.timestamp >= $1 AND s.timestamp < $2
		ORDER BY b.wallet, s.timestamp ASC
	`, start, end)
	if err != nil {
		return nil, fmt.Errorf("get all series: %w", err)
	}
	defer rows.Close()

	result := make(map[string][]domain.BalancePoint)
	for rows.Next() {
		var wallet string
		var p domain.BalancePoint
		if err := rows.Scan(&wallet, &p.Timestamp, &p.Balance); err != nil {
			return nil, fmt.Errorf("scan balance point: %w", err)
		}
		result[wallet] = append(result[wallet], p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate balance points: %w", err)
	}
	return result, nil
}

// LatestSnapshot returns the most recent snapshot by timestamp.
func (s *BalanceStore) LatestSnapshot(ctx context.Context) (*domain.BalanceSnapshot, error) {
	var snap domain.BalanceSnapshot
	err := s.pool.QueryRow(ctx, `
		SELECT id, timestamp, total_holders, total_supply, created_at
		FROM snapshots
		ORDER BY timestamp DESC
		LIMIT 1
	`).Scan(&snap.ID, &snap.Timestamp, &snap.TotalHolders, &snap.TotalSupply, &snap.CreatedAt)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get latest snapshot: %w", err)
	}
	return &snap, nil
}
