package memory

import (
	"context"
	"errors"
	"testing"

	"copper-rewards/internal/storage"
)

func TestExcludedWalletStore_AddRemove(t *testing.T) {
	store := NewExcludedWalletStore()
	ctx := context.Background()

	if err := store.Add(ctx, "wallet-a", "team treasury"); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := store.Add(ctx, "wallet-a", "again"); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Duplicate add: got %v, want ErrDuplicateKey", err)
	}

	if err := store.Add(ctx, "", "reason"); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Empty wallet: got %v, want ErrInvalidInput", err)
	}
	if err := store.Add(ctx, "wallet-b", ""); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Empty reason: got %v, want ErrInvalidInput", err)
	}

	if err := store.Remove(ctx, "wallet-a"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if err := store.Remove(ctx, "wallet-a"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Remove of missing wallet: got %v, want ErrNotFound", err)
	}
}

func TestExcludedWalletStore_ContainsAndList(t *testing.T) {
	store := NewExcludedWalletStore()
	ctx := context.Background()

	for _, wallet := range []string{"wallet-c", "wallet-a", "wallet-b"} {
		if err := store.Add(ctx, wallet, "liquidity pool"); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}

	excluded, err := store.Contains(ctx, "wallet-b")
	if err != nil {
		t.Fatalf("Contains failed: %v", err)
	}
	if !excluded {
		t.Error("wallet-b should be excluded")
	}
	excluded, err = store.Contains(ctx, "wallet-z")
	if err != nil {
		t.Fatalf("Contains failed: %v", err)
	}
	if excluded {
		t.Error("wallet-z should not be excluded")
	}

	list, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	want := []string{"wallet-a", "wallet-b", "wallet-c"}
	if len(list) != len(want) {
		t.Fatalf("Expected %d exclusions, got %d", len(want), len(list))
	}
	for i, w := range want {
		if list[i].Wallet != w {
			t.Errorf("Position %d = %s, want %s", i, list[i].Wallet, w)
		}
		if list[i].Reason != "liquidity pool" || list[i].AddedAt.IsZero() {
			t.Errorf("Entry %s missing reason or timestamp: %+v", w, list[i])
		}
	}
}
