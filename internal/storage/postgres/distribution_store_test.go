package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"copper-rewards/internal/domain"
	"copper-rewards/internal/storage"
)

func testDistribution(poolAmount int64, executedAt time.Time, recipientCount int) *domain.Distribution {
	return &domain.Distribution{
		ID:             uuid.New(),
		PoolAmount:     poolAmount,
		PoolValueUSD:   decimal.RequireFromString("312.50"),
		TotalHashPower: decimal.NewFromInt(4000),
		RecipientCount: recipientCount,
		TriggerType:    domain.TriggerThreshold,
		ExecutedAt:     executedAt,
		CreatedAt:      executedAt,
	}
}

func testRecipient(wallet string, amount int64) *domain.DistributionRecipient {
	return &domain.DistributionRecipient{
		Wallet:         wallet,
		TWAB:           amount,
		Multiplier:     decimal.RequireFromString("1.5"),
		HashPower:      decimal.NewFromInt(amount),
		AmountReceived: amount,
	}
}

func TestDistributionStore_CreateAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewDistributionStore(pool)

	executedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	dist := testDistribution(1000, executedAt, 2)
	err := store.Create(ctx, dist, []*domain.DistributionRecipient{
		testRecipient("wallet-a", 700),
		testRecipient("wallet-b", 300),
	})
	require.NoError(t, err)

	got, err := store.ByID(ctx, dist.ID)
	require.NoError(t, err)
	assert.Equal(t, dist.PoolAmount, got.PoolAmount)
	assert.Equal(t, dist.RecipientCount, got.RecipientCount)
	assert.Equal(t, domain.TriggerThreshold, got.TriggerType)
	assert.True(t, got.PoolValueUSD.Equal(dist.PoolValueUSD))

	_, err = store.ByID(ctx, uuid.New())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDistributionStore_CreateIsAtomic(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewDistributionStore(pool)
	stats := NewStatsStore(pool)

	executedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	dist := testDistribution(1000, executedAt, 2)

	// A duplicate recipient fails the whole create: no distribution
	// row, no recipients, no stats movement.
	err := store.Create(ctx, dist, []*domain.DistributionRecipient{
		testRecipient("wallet-a", 500),
		testRecipient("wallet-a", 500),
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	_, err = store.ByID(ctx, dist.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	got, err := stats.Get(ctx)
	require.NoError(t, err)
	assert.Zero(t, got.TotalDistributed)
}

func TestDistributionStore_CreateIncrementsStats(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewDistributionStore(pool)
	stats := NewStatsStore(pool)

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i, amount := range []int64{1000, 500} {
		dist := testDistribution(amount, base.Add(time.Duration(i)*time.Hour), 1)
		err := store.Create(ctx, dist, []*domain.DistributionRecipient{testRecipient("wallet-a", amount)})
		require.NoError(t, err)
	}

	got, err := stats.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1500), got.TotalDistributed)
	require.NotNil(t, got.LastDistributionAt)
	assert.True(t, got.LastDistributionAt.Equal(base.Add(time.Hour)))
}

func TestDistributionStore_LatestAndRecent(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewDistributionStore(pool)

	_, err := store.Latest(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	var newest uuid.UUID
	for _, offset := range []time.Duration{0, 48 * time.Hour, 24 * time.Hour} {
		dist := testDistribution(100, base.Add(offset), 0)
		if offset == 48*time.Hour {
			newest = dist.ID
		}
		require.NoError(t, store.Create(ctx, dist, nil))
	}

	latest, err := store.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, newest, latest.ID)

	recent, err := store.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, newest, recent[0].ID)
	assert.True(t, recent[0].ExecutedAt.After(recent[1].ExecutedAt))
}

func TestDistributionStore_RecipientsOrderingAndHistory(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewDistributionStore(pool)

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	first := testDistribution(900, base, 3)
	err := store.Create(ctx, first, []*domain.DistributionRecipient{
		testRecipient("wallet-c", 300),
		testRecipient("wallet-a", 300),
		testRecipient("wallet-b", 300),
	})
	require.NoError(t, err)

	second := testDistribution(500, base.Add(24*time.Hour), 1)
	require.NoError(t, store.Create(ctx, second, []*domain.DistributionRecipient{testRecipient("wallet-a", 500)}))

	recipients, err := store.RecipientsFor(ctx, first.ID)
	require.NoError(t, err)
	require.Len(t, recipients, 3)
	// Equal amounts fall back to wallet ASC.
	assert.Equal(t, "wallet-a", recipients[0].Wallet)
	assert.Equal(t, "wallet-b", recipients[1].Wallet)
	assert.Equal(t, "wallet-c", recipients[2].Wallet)

	history, err := store.WalletHistory(ctx, "wallet-a", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	// Newest distribution first.
	assert.Equal(t, second.ID, history[0].DistributionID)
	assert.Equal(t, int64(500), history[0].AmountReceived)

	totals, err := store.Totals(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, totals.Distributions)
	assert.Equal(t, int64(1400), totals.AmountDistributed)
	assert.Equal(t, int64(4), totals.Recipients)
}
