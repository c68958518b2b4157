package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"copper-rewards/internal/domain"
	"copper-rewards/internal/storage"
)

func insertTestSnapshot(t *testing.T, ctx context.Context, store *BalanceStore, at time.Time, balances map[string]int64) uuid.UUID {
	t.Helper()

	snap := &domain.BalanceSnapshot{
		ID:           uuid.New(),
		Timestamp:    at,
		TotalHolders: len(balances),
		TotalSupply:  1_000_000_000,
		CreatedAt:    at,
	}
	records := make([]*domain.BalanceRecord, 0, len(balances))
	for wallet, balance := range balances {
		records = append(records, &domain.BalanceRecord{Wallet: wallet, Balance: balance})
	}
	require.NoError(t, store.InsertSnapshot(ctx, snap, records))
	return snap.ID
}

func TestBalanceStore_InsertAndSeries(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewBalanceStore(pool)
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	insertTestSnapshot(t, ctx, store, base, map[string]int64{"wallet-a": 100})
	insertTestSnapshot(t, ctx, store, base.Add(2*time.Hour), map[string]int64{"wallet-a": 300, "wallet-b": 50})
	insertTestSnapshot(t, ctx, store, base.Add(time.Hour), map[string]int64{"wallet-a": 200})
	insertTestSnapshot(t, ctx, store, base.Add(3*time.Hour), map[string]int64{"wallet-a": 400})

	// [base+1h, base+3h): inclusive start, exclusive end.
	series, err := store.SeriesFor(ctx, "wallet-a", base.Add(time.Hour), base.Add(3*time.Hour))
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.Equal(t, int64(200), series[0].Balance)
	assert.Equal(t, int64(300), series[1].Balance)

	all, err := store.AllSeries(ctx, base, base.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Len(t, all["wallet-a"], 4)
	assert.Len(t, all["wallet-b"], 1)
}

func TestBalanceStore_InsertSnapshotIsAtomic(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewBalanceStore(pool)
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	snap := &domain.BalanceSnapshot{ID: uuid.New(), Timestamp: base, TotalHolders: 2, CreatedAt: base}
	err := store.InsertSnapshot(ctx, snap, []*domain.BalanceRecord{
		{Wallet: "wallet-a", Balance: 100},
		{Wallet: "wallet-a", Balance: 200},
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	// The snapshot row must have rolled back with its records.
	_, err = store.LatestSnapshot(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestBalanceStore_DuplicateSnapshotID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewBalanceStore(pool)
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	snap := &domain.BalanceSnapshot{ID: uuid.New(), Timestamp: base, CreatedAt: base}
	require.NoError(t, store.InsertSnapshot(ctx, snap, nil))

	err := store.InsertSnapshot(ctx, snap, nil)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestBalanceStore_LatestSnapshot(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewBalanceStore(pool)
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	insertTestSnapshot(t, ctx, store, base.Add(time.Hour), map[string]int64{"wallet-a": 1})
	latestID := insertTestSnapshot(t, ctx, store, base.Add(5*time.Hour), map[string]int64{"wallet-a": 2})
	insertTestSnapshot(t, ctx, store, base.Add(3*time.Hour), map[string]int64{"wallet-a": 3})

	latest, err := store.LatestSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, latestID, latest.ID)
	assert.Equal(t, int64(1_000_000_000), latest.TotalSupply)
}
