// Package hashpower combines TWAB and tier multipliers into reward
// weights. The batch path uses exactly two bulk reads regardless of
// wallet count.
package hashpower

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"copper-rewards/internal/domain"
	"copper-rewards/internal/storage"
	"copper-rewards/internal/twab"
)

// Aggregator computes hash power per wallet and across all wallets.
type Aggregator struct {
	balances storage.BalanceStore
	streaks  storage.StreakStore
	tiers    domain.TierTable
	now      func() time.Time
}

// NewAggregator creates an Aggregator.
func NewAggregator(balances storage.BalanceStore, streaks storage.StreakStore, tiers domain.TierTable) *Aggregator {
	return &Aggregator{
		balances: balances,
		streaks:  streaks,
		tiers:    tiers,
		now:      time.Now,
	}
}

// SetNow overrides the clock, for tests.
func (a *Aggregator) SetNow(now func() time.Time) {
	a.now = now
}

// ComputeAll computes hash power for every wallet with at least one
// balance record in [start, end):
//
//	one bulk series read, one bulk tier read, in-memory TWAB and
//	power, drop TWAB below minBalance, sort power DESC with wallet
//	ASC as tie-break, optionally truncate to limit (0 = no limit).
//
// The tie-break makes batch output and truncation reproducible across
// runs.
func (a *Aggregator) ComputeAll(ctx context.Context, start, end time.Time, minBalance int64, limit int) ([]*domain.HashPower, error) {
	series, err := a.balances.AllSeries(ctx, start, end)
	if err != nil {
		return nil, err
	}
	if len(series) == 0 {
		return nil, nil
	}

	wallets := make([]string, 0, len(series))
	for w := range series {
		wallets = append(wallets, w)
	}
	tiersByWallet, err := a.streaks.TiersFor(ctx, wallets)
	if err != nil {
		return nil, err
	}

	powers := make([]*domain.HashPower, 0, len(series))
	for wallet, points := range series {
		balance := twab.Calculate(points, start, end)
		if balance < minBalance {
			continue
		}

		level, ok := tiersByWallet[wallet]
		if !ok {
			level = domain.MinTier // no streak yet: base tier
		}
		tier := a.tiers.Get(level)

		powers = append(powers, &domain.HashPower{
			Wallet:     wallet,
			TWAB:       balance,
			Tier:       tier.Level,
			TierName:   tier.Name,
			Multiplier: tier.Multiplier,
			Power:      decimal.NewFromInt(balance).Mul(tier.Multiplier),
		})
	}

	sort.Slice(powers, func(i, j int) bool {
		if !powers[i].Power.Equal(powers[j].Power) {
			return powers[i].Power.GreaterThan(powers[j].Power)
		}
		return powers[i].Wallet < powers[j].Wallet
	})

	if limit > 0 && len(powers) > limit {
		powers = powers[:limit]
	}
	return powers, nil
}

// ForWallet computes a single wallet's hash power over [start, end).
// A wallet without a streak defaults to tier 1.
func (a *Aggregator) ForWallet(ctx context.Context, wallet string, start, end time.Time) (*domain.HashPower, error) {
	series, err := a.balances.SeriesFor(ctx, wallet, start, end)
	if err != nil {
		return nil, err
	}
	balance := twab.Calculate(series, start, end)

	level := domain.MinTier
	streak, err := a.streaks.Get(ctx, wallet)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	if streak != nil {
		level = streak.CurrentTier
	}
	tier := a.tiers.Get(level)

	return &domain.HashPower{
		Wallet:     wallet,
		TWAB:       balance,
		Tier:       tier.Level,
		TierName:   tier.Name,
		Multiplier: tier.Multiplier,
		Power:      decimal.NewFromInt(balance).Mul(tier.Multiplier),
	}, nil
}

// TotalPower sums hash power across all eligible wallets.
func (a *Aggregator) TotalPower(ctx context.Context, start, end time.Time, minBalance int64) (decimal.Decimal, error) {
	powers, err := a.ComputeAll(ctx, start, end, minBalance, 0)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, p := range powers {
		total = total.Add(p.Power)
	}
	return total, nil
}

// Leaderboard returns the top wallets by hash power over the trailing
// window of the given hours.
func (a *Aggregator) Leaderboard(ctx context.Context, limit, hours int) ([]*domain.HashPower, error) {
	end := a.now().UTC()
	start := end.Add(-time.Duration(hours) * time.Hour)
	return a.ComputeAll(ctx, start, end, 0, limit)
}

// Rank returns a wallet's 1-based leaderboard position over the
// trailing window, or 0 when the wallet has no hash power there.
func (a *Aggregator) Rank(ctx context.Context, wallet string, hours int) (int, error) {
	end := a.now().UTC()
	start := end.Add(-time.Duration(hours) * time.Hour)

	powers, err := a.ComputeAll(ctx, start, end, 0, 0)
	if err != nil {
		return 0, err
	}
	for i, p := range powers {
		if p.Wallet == wallet {
			return i + 1, nil
		}
	}
	return 0, nil
}

// EstimateShare estimates a wallet's cut of a pool over the trailing
// 24h window: (floored raw amount, share percentage).
func (a *Aggregator) EstimateShare(ctx context.Context, wallet string, poolAmount int64) (int64, decimal.Decimal, error) {
	end := a.now().UTC()
	start := end.Add(-24 * time.Hour)

	hp, err := a.ForWallet(ctx, wallet, start, end)
	if err != nil {
		return 0, decimal.Zero, err
	}
	total, err := a.TotalPower(ctx, start, end, 0)
	if err != nil {
		return 0, decimal.Zero, err
	}
	if total.IsZero() {
		return 0, decimal.Zero, nil
	}

	share := hp.Power.Div(total)
	amount := decimal.NewFromInt(poolAmount).Mul(share).Floor().IntPart()
	return amount, share.Mul(decimal.NewFromInt(100)), nil
}
