package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"copper-rewards/internal/domain"
)

// BalanceStore provides access to snapshots and balances storage.
// Snapshots are append-only: records never mutate after creation and
// snapshot timestamps from the upstream collector are monotonic.
type BalanceStore interface {
	// InsertSnapshot adds a snapshot and all its balance records as one
	// atomic unit. Returns ErrDuplicateKey if the snapshot id exists.
	InsertSnapshot(ctx context.Context, snapshot *domain.BalanceSnapshot, records []*domain.BalanceRecord) error

	// SeriesFor retrieves one wallet's balance points within [start, end),
	// ordered by timestamp ASC.
	SeriesFor(ctx context.Context, wallet string, start, end time.Time) ([]domain.BalancePoint, error)

	// AllSeries retrieves every wallet's balance points within
	// [start, end) in a single bulk read, each series ordered by
	// timestamp ASC. Wallets with no records in the window are absent.
	AllSeries(ctx context.Context, start, end time.Time) (map[string][]domain.BalancePoint, error)

	// LatestSnapshot returns the most recent snapshot.
	// Returns ErrNotFound if no snapshot exists.
	LatestSnapshot(ctx context.Context) (*domain.BalanceSnapshot, error)
}

// StreakStore provides access to hold_streaks storage.
type StreakStore interface {
	// Get retrieves a wallet's streak. Returns ErrNotFound if absent.
	Get(ctx context.Context, wallet string) (*domain.HoldStreak, error)

	// Create adds a new streak. Returns ErrDuplicateKey if the wallet
	// already has one.
	Create(ctx context.Context, streak *domain.HoldStreak) error

	// Update replaces a wallet's streak row as a single atomic write.
	// Returns ErrNotFound if the wallet has no streak.
	Update(ctx context.Context, streak *domain.HoldStreak) error

	// TiersFor retrieves current tiers for the given wallets in a
	// single bulk read. Wallets without a streak are absent.
	TiersFor(ctx context.Context, wallets []string) (map[string]int, error)

	// All retrieves streaks at or above minTier, ordered by tier DESC,
	// wallet ASC.
	All(ctx context.Context, minTier int) ([]*domain.HoldStreak, error)

	// TierCounts returns the number of wallets per tier, with zero
	// entries for empty tiers.
	TierCounts(ctx context.Context) (map[int]int, error)
}

// DistributionStore provides access to distributions storage.
type DistributionStore interface {
	// Create persists a distribution and all its recipients as one
	// atomic unit, and applies the system-stats increment in the same
	// unit. Nothing is visible until all of it is. Returns
	// ErrDuplicateKey if the distribution id or a (distribution,
	// wallet) pair exists.
	Create(ctx context.Context, dist *domain.Distribution, recipients []*domain.DistributionRecipient) error

	// Latest returns the most recent distribution by executed_at.
	// Returns ErrNotFound if none exists.
	Latest(ctx context.Context) (*domain.Distribution, error)

	// ByID retrieves a distribution. Returns ErrNotFound if absent.
	ByID(ctx context.Context, id uuid.UUID) (*domain.Distribution, error)

	// Recent retrieves up to limit distributions, newest first.
	Recent(ctx context.Context, limit int) ([]*domain.Distribution, error)

	// RecipientsFor retrieves all recipients of a distribution, ordered
	// by amount DESC, wallet ASC.
	RecipientsFor(ctx context.Context, id uuid.UUID) ([]*domain.DistributionRecipient, error)

	// WalletHistory retrieves a wallet's allocations, newest first.
	WalletHistory(ctx context.Context, wallet string, limit int) ([]*domain.DistributionRecipient, error)

	// Totals returns running aggregates over all distributions.
	Totals(ctx context.Context) (*domain.DistributionTotals, error)
}

// ExcludedWalletStore provides access to the eligibility exclusion set.
type ExcludedWalletStore interface {
	// Add excludes a wallet. Returns ErrDuplicateKey if already
	// excluded, so callers can tell "already excluded" from "added".
	Add(ctx context.Context, wallet, reason string) error

	// Remove deletes an exclusion. Returns ErrNotFound if the wallet
	// was not excluded, so callers can tell "no change" apart.
	Remove(ctx context.Context, wallet string) error

	// List retrieves all exclusions ordered by wallet ASC.
	List(ctx context.Context) ([]*domain.ExcludedWallet, error)

	// Contains reports whether a wallet is excluded.
	Contains(ctx context.Context, wallet string) (bool, error)
}

// StatsStore provides access to the single system_stats row.
// The distributed total is incremented by DistributionStore.Create;
// this interface covers reads and snapshot bookkeeping.
type StatsStore interface {
	// Get retrieves the stats row, zero-valued if never written.
	Get(ctx context.Context) (*domain.SystemStats, error)

	// RecordSnapshot updates holder count and last snapshot time.
	RecordSnapshot(ctx context.Context, holders int, at time.Time) error
}

// BalanceTimeseriesStore provides access to the append-only analytics
// mirror of balance observations. Unlike BalanceStore it has no
// snapshot grouping; samples are bulk-inserted and range-read.
type BalanceTimeseriesStore interface {
	// InsertBulk adds multiple samples. Fails the entire batch on a
	// duplicate (wallet, timestamp_ms) pair.
	InsertBulk(ctx context.Context, samples []*domain.BalanceSample) error

	// ByWallet retrieves all samples for a wallet, timestamp ASC.
	ByWallet(ctx context.Context, wallet string) ([]*domain.BalanceSample, error)

	// ByTimeRange retrieves a wallet's samples within [start, end)
	// unix milliseconds, timestamp ASC.
	ByTimeRange(ctx context.Context, wallet string, start, end int64) ([]*domain.BalanceSample, error)
}

// ExecutionLock serializes allocation runs system-wide.
// Implementations must be non-blocking: a held lock fails fast, it is
// never waited on. The lease bounds how long a crashed holder can keep
// the lock; an expired lease may be taken over.
type ExecutionLock interface {
	// TryAcquire attempts to take the lock for owner. Returns false
	// without waiting when the lock is held under an unexpired lease.
	TryAcquire(ctx context.Context, owner string) (bool, error)

	// Release frees the lock if owner holds it. Releasing a lock held
	// by someone else (lease takeover happened) is a no-op.
	Release(ctx context.Context, owner string) error
}
