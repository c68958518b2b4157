package postgres

import (
	"context"
	"fmt"
	"time"

	"copper-rewards/internal/domain"
	"copper-rewards/internal/storage"
)

// ExcludedWalletStore implements storage.ExcludedWalletStore using
// PostgreSQL.
type ExcludedWalletStore struct {
	pool *Pool
}

// NewExcludedWalletStore creates a new ExcludedWalletStore.
func NewExcludedWalletStore(pool *Pool) *ExcludedWalletStore {
	return &ExcludedWalletStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ExcludedWalletStore = (*ExcludedWalletStore)(nil)

// Add excludes a wallet. Returns ErrDuplicateKey if already excluded.
func (s *ExcludedWalletStore) Add(ctx context.Context, wallet, reason string) error {
	if wallet == "" || reason == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO excluded_wallets (wallet, reason, added_at)
		VALUES ($1, $2, $3)
	`, wallet, reason, time.Now().UTC())
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("add excluded wallet: %w", err)
	}
	return nil
}

// Remove deletes an exclusion. Returns ErrNotFound if not excluded.
func (s *ExcludedWalletStore) Remove(ctx context.Context, wallet string) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM excluded_wallets WHERE wallet = $1
	`, wallet)
	if err != nil {
		return fmt.Errorf("remove excluded wallet: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// List retrieves all exclusions ordered by wallet ASC.
func (s *ExcludedWalletStore) List(ctx context.Context) ([]*domain.ExcludedWallet, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT wallet, reason, added_at
		FROM excluded_wallets
		ORDER BY wallet ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list excluded wallets: %w", err)
	}
	defer rows.Close()

	var result []*domain.ExcludedWallet
	for rows.Next() {
		var e domain.ExcludedWallet
		if err := rows.Scan(&e.Wallet, &e.Reason, &e.AddedAt); err != nil {
			return nil, fmt.Errorf("scan excluded wallet: %w", err)
		}
		result = append(result, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate excluded wallets: %w", err)
	}
	return result, nil
}

// Contains reports whether a wallet is excluded.
func (s *ExcludedWalletStore) Contains(ctx context.Context, wallet string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM excluded_wallets WHERE wallet = $1)
	`, wallet).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check excluded wallet: %w", err)
	}
	return exists, nil
}
