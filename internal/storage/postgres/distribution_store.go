package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"copper-rewards/internal/domain"
	"copper-rewards/internal/storage"
)

// DistributionStore implements storage.DistributionStore using
// PostgreSQL. Create runs the distribution insert, all recipient
// inserts and the system-stats increment in one transaction.
type DistributionStore struct {
	pool *Pool
}

// NewDistributionStore creates a new DistributionStore.
func NewDistributionStore(pool *Pool) *DistributionStore {
	return &DistributionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.DistributionStore = (*DistributionStore)(nil)

// Create persists the distribution, its recipients and the stats
// increment atomically. Nothing is visible until commit.
func (s *DistributionStore) Create(ctx context.Context, dist *domain.Distribution, recipients []*domain.DistributionRecipient) error {
	if dist == nil || dist.RecipientCount != len(recipients) {
		return storage.ErrInvalidInput
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO distributions (
			id, pool_amount, pool_value_usd, total_hash_power, recipient_count, trigger_type, executed_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, dist.ID, dist.PoolAmount, dist.PoolValueUSD, dist.TotalHashPower, dist.RecipientCount, string(dist.TriggerType), dist.ExecutedAt, dist.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert distribution: %w", err)
	}

	for _, r := range recipients {
		if r == nil || r.AmountReceived < 0 {
			return storage.ErrInvalidInput
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO distribution_recipients (
				distribution_id, wallet, twab, multiplier, hash_power, amount_received
			) VALUES ($1, $2, $3, $4, $5, $6)
		`, dist.ID, r.Wallet, r.TWAB, r.Multiplier, r.HashPower, r.AmountReceived)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert recipient: %w", err)
		}
	}

	// Single atomic increment expression; never read-then-write.
	_, err = tx.Exec(ctx, `
		INSERT INTO system_stats (id, total_distributed, last_distribution_at, updated_at)
		VALUES (1, $1, $2, $2)
		ON CONFLICT (id) DO UPDATE SET
			total_distributed = system_stats.total_distributed + EXCLUDED.total_distributed,
			last_distribution_at = EXCLUDED.last_distribution_at,
			updated_at = EXCLUDED.updated_at
	`, dist.PoolAmount, dist.ExecutedAt)
	if err != nil {
		return fmt.Errorf("update system stats: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

const distributionColumns = `id, pool_amount, pool_value_usd, total_hash_power, recipient_count, trigger_type, executed_at, created_at`

func scanDistribution(row interface{ Scan(...any) error }) (*domain.Distribution, error) {
	var d domain.Distribution
	var trigger string
	err := row.Scan(&d.ID, &d.PoolAmount, &d.PoolValueUSD, &d.TotalHashPower, &d.RecipientCount, &trigger, &d.ExecutedAt, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	d.TriggerType = domain.TriggerType(trigger)
	return &d, nil
}

// Latest returns the most recent distribution by executed_at.
func (s *DistributionStore) Latest(ctx context.Context) (*domain.Distribution, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+distributionColumns+`
		FROM distributions
		ORDER BY executed_at DESC
		LIMIT 1
	`)
	d, err := scanDistribution(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get latest distribution: %w", err)
	}
	return d, nil
}

// ByID retrieves a distribution. Returns ErrNotFound if absent.
func (s *DistributionStore) ByID(ctx context.Context, id uuid.UUID) (*domain.Distribution, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+distributionColumns+`
		FROM distributions
		WHERE id = $1
	`, id)
	d, err := scanDistribution(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get distribution: %w", err)
	}
	return d, nil
}

// Recent retrieves up to limit distributions, newest first.
func (s *DistributionStore) Recent(ctx context.Context, limit int) ([]*domain.Distribution, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+distributionColumns+`
		FROM distributions
		ORDER BY executed_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list distributions: %w", err)
	}
	defer rows.Close()

	var result []*domain.Distribution
	for rows.Next() {
		d, err := scanDistribution(rows)
		if err != nil {
			return nil, fmt.Errorf("scan distribution: %w", err)
		}
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate distributions: %w", err)
	}
	return result, nil
}

// RecipientsFor retrieves a distribution's recipients, amount DESC then
// wallet ASC.
func (s *DistributionStore) RecipientsFor(ctx context.Context, id uuid.UUID) ([]*domain.DistributionRecipient, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT distribution_id, wallet, twab, multiplier, hash_power, amount_received
		FROM distribution_recipients
		WHERE distribution_id = $1
		ORDER BY amount_received DESC, wallet ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("list recipients: %w", err)
	}
	defer rows.Close()

	return scanRecipients(rows)
}

// WalletHistory retrieves a wallet's allocations, newest first.
func (s *DistributionStore) WalletHistory(ctx context.Context, wallet string, limit int) ([]*domain.DistributionRecipient, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT r.distribution_id, r.wallet, r.twab, r.multiplier, r.hash_power, r.amount_received
		FROM distribution_recipients r
		JOIN distributions d ON d.id = r.distribution_id
		WHERE r.wallet = $1
		ORDER BY d.executed_at DESC
		LIMIT $2
	`, wallet, limit)
	if err != nil {
		return nil, fmt.Errorf("wallet history: %w", err)
	}
	defer rows.Close()

	return scanRecipients(rows)
}

func scanRecipients(rows interface {
	Next() bool
	Scan(...any) error
	Err() error
}) ([]*domain.DistributionRecipient, error) {
	var result []*domain.DistributionRecipient
	for rows.Next() {
		var r domain.DistributionRecipient
		if err := rows.Scan(&r.DistributionID, &r.Wallet, &r.TWAB, &r.Multiplier, &r.HashPower, &r.AmountReceived); err != nil {
			return nil, fmt.Errorf("scan recipient: %w", err)
		}
		result = append(result, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recipients: %w", err)
	}
	return result, nil
}

// Totals returns running aggregates over all distributions.
func (s *DistributionStore) Totals(ctx context.Context) (*domain.DistributionTotals, error) {
	var totals domain.DistributionTotals
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(pool_amount), 0), COALESCE(SUM(recipient_count), 0)
		FROM distributions
	`).Scan(&totals.Distributions, &totals.AmountDistributed, &totals.Recipients)
	if err != nil {
		return nil, fmt.Errorf("distribution totals: %w", err)
	}
	return &totals, nil
}
