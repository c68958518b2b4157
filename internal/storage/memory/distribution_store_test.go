package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"copper-rewards/internal/domain"
	"copper-rewards/internal/storage"
)

func newDistribution(poolAmount int64, executedAt time.Time, recipients int) *domain.Distribution {
	return &domain.Distribution{
		ID:             uuid.New(),
		PoolAmount:     poolAmount,
		PoolValueUSD:   decimal.NewFromInt(300),
		TotalHashPower: decimal.NewFromInt(1000),
		RecipientCount: recipients,
		TriggerType:    domain.TriggerThreshold,
		ExecutedAt:     executedAt,
		CreatedAt:      executedAt,
	}
}

func newRecipient(wallet string, amount int64) *domain.DistributionRecipient {
	return &domain.DistributionRecipient{
		Wallet:         wallet,
		TWAB:           amount,
		Multiplier:     decimal.NewFromInt(1),
		HashPower:      decimal.NewFromInt(amount),
		AmountReceived: amount,
	}
}

func TestDistributionStore_CreateIncrementsStats(t *testing.T) {
	stats := NewStatsStore()
	store := NewDistributionStore(stats)
	ctx := context.Background()

	executedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	dist := newDistribution(1000, executedAt, 2)
	err := store.Create(ctx, dist, []*domain.DistributionRecipient{
		newRecipient("wallet-a", 700),
		newRecipient("wallet-b", 300),
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := stats.Get(ctx)
	if err != nil {
		t.Fatalf("Get stats failed: %v", err)
	}
	if got.TotalDistributed != 1000 {
		t.Errorf("TotalDistributed = %d, want 1000", got.TotalDistributed)
	}
	if got.LastDistributionAt == nil || !got.LastDistributionAt.Equal(executedAt) {
		t.Errorf("LastDistributionAt = %v, want %v", got.LastDistributionAt, executedAt)
	}

	// A failed create must not move the stats.
	if err := store.Create(ctx, dist, []*domain.DistributionRecipient{newRecipient("wallet-a", 700), newRecipient("wallet-b", 300)}); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("Duplicate create: got %v, want ErrDuplicateKey", err)
	}
	got, _ = stats.Get(ctx)
	if got.TotalDistributed != 1000 {
		t.Errorf("TotalDistributed after failed create = %d, want 1000", got.TotalDistributed)
	}
}

func TestDistributionStore_CreateValidation(t *testing.T) {
	store := NewDistributionStore(nil)
	ctx := context.Background()
	executedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// RecipientCount must match the recipient slice.
	dist := newDistribution(1000, executedAt, 3)
	err := store.Create(ctx, dist, []*domain.DistributionRecipient{newRecipient("wallet-a", 1000)})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Count mismatch: got %v, want ErrInvalidInput", err)
	}

	dist = newDistribution(1000, executedAt, 2)
	err = store.Create(ctx, dist, []*domain.DistributionRecipient{
		newRecipient("wallet-a", 500),
		newRecipient("wallet-a", 500),
	})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Duplicate recipient: got %v, want ErrDuplicateKey", err)
	}

	if err := store.Create(ctx, nil, nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Nil distribution: got %v, want ErrInvalidInput", err)
	}
}

func TestDistributionStore_LatestAndRecent(t *testing.T) {
	store := NewDistributionStore(nil)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	if _, err := store.Latest(ctx); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Latest on empty store: got %v, want ErrNotFound", err)
	}

	var newest uuid.UUID
	for i, offset := range []time.Duration{0, 48 * time.Hour, 24 * time.Hour} {
		dist := newDistribution(int64(100*(i+1)), base.Add(offset), 0)
		if offset == 48*time.Hour {
			newest = dist.ID
		}
		if err := store.Create(ctx, dist, nil); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	latest, err := store.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if latest.ID != newest {
		t.Errorf("Latest = %s, want %s", latest.ID, newest)
	}

	recent, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("Expected 2 recent, got %d", len(recent))
	}
	if !recent[0].ExecutedAt.After(recent[1].ExecutedAt) {
		t.Error("Recent not ordered newest first")
	}
}

func TestDistributionStore_RecipientsForOrdering(t *testing.T) {
	store := NewDistributionStore(nil)
	ctx := context.Background()
	executedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	dist := newDistribution(900, executedAt, 3)
	err := store.Create(ctx, dist, []*domain.DistributionRecipient{
		newRecipient("wallet-c", 300),
		newRecipient("wallet-b", 300),
		newRecipient("wallet-a", 300),
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	recipients, err := store.RecipientsFor(ctx, dist.ID)
	if err != nil {
		t.Fatalf("RecipientsFor failed: %v", err)
	}

	// Equal amounts fall back to wallet ASC.
	want := []string{"wallet-a", "wallet-b", "wallet-c"}
	for i, w := range want {
		if recipients[i].Wallet != w {
			t.Errorf("Position %d = %s, want %s", i, recipients[i].Wallet, w)
		}
	}

	recipients, err = store.RecipientsFor(ctx, uuid.New())
	if err != nil {
		t.Fatalf("RecipientsFor failed: %v", err)
	}
	if len(recipients) != 0 {
		t.Errorf("Unknown distribution: expected no recipients, got %d", len(recipients))
	}
}

func TestDistributionStore_WalletHistory(t *testing.T) {
	store := NewDistributionStore(nil)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	first := newDistribution(100, base, 1)
	if err := store.Create(ctx, first, []*domain.DistributionRecipient{newRecipient("wallet-a", 100)}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	second := newDistribution(200, base.Add(24*time.Hour), 2)
	err := store.Create(ctx, second, []*domain.DistributionRecipient{
		newRecipient("wallet-a", 150),
		newRecipient("wallet-b", 50),
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	history, err := store.WalletHistory(ctx, "wallet-a", 0)
	if err != nil {
		t.Fatalf("WalletHistory failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(history))
	}
	// Newest first.
	if history[0].DistributionID != second.ID || history[0].AmountReceived != 150 {
		t.Errorf("First entry = %s/%d, want %s/150", history[0].DistributionID, history[0].AmountReceived, second.ID)
	}

	history, err = store.WalletHistory(ctx, "wallet-a", 1)
	if err != nil {
		t.Fatalf("WalletHistory failed: %v", err)
	}
	if len(history) != 1 {
		t.Errorf("Expected limit 1, got %d entries", len(history))
	}
}

func TestDistributionStore_Totals(t *testing.T) {
	store := NewDistributionStore(nil)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	if err := store.Create(ctx, newDistribution(100, base, 1), []*domain.DistributionRecipient{newRecipient("wallet-a", 100)}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	err := store.Create(ctx, newDistribution(250, base.Add(time.Hour), 2), []*domain.DistributionRecipient{
		newRecipient("wallet-a", 200),
		newRecipient("wallet-b", 50),
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	totals, err := store.Totals(ctx)
	if err != nil {
		t.Fatalf("Totals failed: %v", err)
	}
	if totals.Distributions != 2 || totals.AmountDistributed != 350 || totals.Recipients != 3 {
		t.Errorf("Totals = %+v, want 2 distributions, 350 amount, 3 recipients", totals)
	}
}
