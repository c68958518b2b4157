// Package streak tracks continuous holding duration and loyalty tiers.
// Tiers only move up with time; the only downgrade path is a sell
// signal, which drops one tier and resets the streak to the new tier's
// exact threshold.
package streak

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"copper-rewards/internal/domain"
	"copper-rewards/internal/storage"
)

// Tracker is the streak and tier state machine for all wallets.
type Tracker struct {
	streaks storage.StreakStore
	tiers   domain.TierTable
	logger  *log.Logger
	now     func() time.Time
}

// NewTracker creates a Tracker. The tier table must be valid.
func NewTracker(streaks storage.StreakStore, tiers domain.TierTable, logger *log.Logger) (*Tracker, error) {
	if err := tiers.Validate(); err != nil {
		return nil, fmt.Errorf("tier table: %w", err)
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Tracker{
		streaks: streaks,
		tiers:   tiers,
		logger:  logger,
		now:     time.Now,
	}, nil
}

// SetNow overrides the clock, for tests.
func (t *Tracker) SetNow(now func() time.Time) {
	t.now = now
}

// Start creates a tier-1 streak for a first-time holder. Idempotent:
// an existing streak is returned untouched, never reset.
func (t *Tracker) Start(ctx context.Context, wallet string) (*domain.HoldStreak, error) {
	if err := domain.ValidateWallet(wallet); err != nil {
		return nil, err
	}

	now := t.now().UTC()
	streak := &domain.HoldStreak{
		Wallet:      wallet,
		StreakStart: now,
		CurrentTier: domain.MinTier,
		UpdatedAt:   now,
	}
	err := t.streaks.Create(ctx, streak)
	if errors.Is(err, storage.ErrDuplicateKey) {
		return t.streaks.Get(ctx, wallet)
	}
	if err != nil {
		return nil, fmt.Errorf("create streak: %w", err)
	}

	t.logger.Printf("started streak for wallet %s", wallet)
	return streak, nil
}

// EvaluateUpgrade promotes a wallet to the tier its elapsed streak
// hours have earned. Upgrade-only: it never downgrades. Returns the
// streak and whether it changed.
func (t *Tracker) EvaluateUpgrade(ctx context.Context, wallet string) (*domain.HoldStreak, bool, error) {
	streak, err := t.streaks.Get(ctx, wallet)
	if err != nil {
		return nil, false, err
	}

	now := t.now().UTC()
	earned := t.tiers.ForHours(streak.Hours(now))
	if earned <= streak.CurrentTier {
		return streak, false, nil
	}

	old := streak.CurrentTier
	streak.CurrentTier = earned
	streak.UpdatedAt = now
	if err := t.streaks.Update(ctx, streak); err != nil {
		return nil, false, fmt.Errorf("update streak: %w", err)
	}

	t.logger.Printf("tier upgrade for %s: %d -> %d (%.1fh held)", wallet, old, earned, streak.Hours(now))
	return streak, true, nil
}

// SweepUpgrades runs EvaluateUpgrade over every tracked wallet and
// returns the number of upgrades applied.
func (t *Tracker) SweepUpgrades(ctx context.Context) (int, error) {
	streaks, err := t.streaks.All(ctx, domain.MinTier)
	if err != nil {
		return 0, fmt.Errorf("list streaks: %w", err)
	}

	upgraded := 0
	for _, s := range streaks {
		if s.CurrentTier == domain.MaxTier {
			continue
		}
		_, changed, err := t.EvaluateUpgrade(ctx, s.Wallet)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return upgraded, err
		}
		if changed {
			upgraded++
		}
	}
	return upgraded, nil
}

// ProcessSell applies an external sell signal: the tier drops by one
// (floored at tier 1) and the streak is reset so the elapsed hours
// equal the new tier's threshold exactly. Unknown wallets return
// (nil, ErrNotFound) so racing signals can be ignored gracefully.
func (t *Tracker) ProcessSell(ctx context.Context, wallet string) (*domain.HoldStreak, error) {
	if err := domain.ValidateWallet(wallet); err != nil {
		return nil, err
	}

	streak, err := t.streaks.Get(ctx, wallet)
	if errors.Is(err, storage.ErrNotFound) {
		t.logger.Printf("sell signal for unknown wallet %s", wallet)
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	now := t.now().UTC()
	old := streak.CurrentTier
	newTier := old - 1
	if newTier < domain.MinTier {
		newTier = domain.MinTier
	}

	// Demoted to exactly the floor of the new tier.
	floor := time.Duration(t.tiers.Get(newTier).MinHours) * time.Hour
	streak.CurrentTier = newTier
	streak.StreakStart = now.Add(-floor)
	streak.LastSellAt = &now
	streak.UpdatedAt = now

	if err := t.streaks.Update(ctx, streak); err != nil {
		return nil, fmt.Errorf("update streak: %w", err)
	}

	t.logger.Printf("sell processed for %s: tier %d -> %d, streak reset to %dh", wallet, old, newTier, t.tiers.Get(newTier).MinHours)
	return streak, nil
}

// Multiplier returns the multiplier for a tier, clamping out-of-range
// input to tier 1.
func (t *Tracker) Multiplier(tier int) decimal.Decimal {
	return t.tiers.Multiplier(tier)
}

// Info is the presentation view of one wallet's streak.
type Info struct {
	Wallet          string
	Tier            int
	TierName        string
	Multiplier      decimal.Decimal
	StreakHours     float64
	StreakStart     time.Time
	NextTier        int     // 0 when already at the top tier
	NextTierName    string  // empty when already at the top tier
	HoursToNextTier float64 // 0 when already at the top tier
	LastSellAt      *time.Time
}

// Info returns the full streak view for a wallet.
func (t *Tracker) Info(ctx context.Context, wallet string) (*Info, error) {
	streak, err := t.streaks.Get(ctx, wallet)
	if err != nil {
		return nil, err
	}

	now := t.now().UTC()
	tier := t.tiers.Get(streak.CurrentTier)
	hours := streak.Hours(now)

	info := &Info{
		Wallet:      streak.Wallet,
		Tier:        tier.Level,
		TierName:    tier.Name,
		Multiplier:  tier.Multiplier,
		StreakHours: hours,
		StreakStart: streak.StreakStart,
		LastSellAt:  streak.LastSellAt,
	}
	if tier.Level < domain.MaxTier {
		next := t.tiers.Get(tier.Level + 1)
		info.NextTier = next.Level
		info.NextTierName = next.Name
		info.HoursToNextTier = float64(next.MinHours) - hours
		if info.HoursToNextTier < 0 {
			info.HoursToNextTier = 0
		}
	}
	return info, nil
}

// TierCounts returns the number of wallets per tier.
func (t *Tracker) TierCounts(ctx context.Context) (map[int]int, error) {
	return t.streaks.TierCounts(ctx)
}
