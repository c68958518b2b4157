package distribution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"copper-rewards/internal/domain"
	"copper-rewards/internal/storage"
)

// Skip reasons reported when a run completes without a distribution.
const (
	SkipTriggerNotMet = "trigger not met"
	SkipPoolEmpty     = "pool empty"
	SkipNoEligible    = "no eligible wallets"
	SkipZeroHashPower = "zero total hash power"
)

// Share is one wallet's planned cut of the pool.
type Share struct {
	Wallet     string
	TWAB       int64
	Tier       int
	Multiplier decimal.Decimal
	HashPower  decimal.Decimal
	Share      decimal.Decimal // fraction of total hash power
	Amount     int64           // floor(pool × share), raw units
}

// Plan is a fully computed allocation, ready to execute. Amounts are
// floored so the sum never exceeds the pool; the remainder is reported
// as Dust and intentionally left in the pool, never redistributed
// within the run.
type Plan struct {
	PoolAmount     int64
	PoolValueUSD   decimal.Decimal
	TotalHashPower decimal.Decimal
	TriggerType    domain.TriggerType
	WindowStart    time.Time
	WindowEnd      time.Time
	Recipients     []Share
	Dust           int64
}

// buildPlan computes the allocation over [windowStart, now).
// A nil plan with a skip reason means there is nothing to distribute;
// that is a valid outcome, not an error.
func (e *Engine) buildPlan(ctx context.Context, poolAmount int64, trigger domain.TriggerType, poolValueUSD decimal.Decimal) (*Plan, string, error) {
	if poolAmount <= 0 {
		return nil, SkipPoolEmpty, nil
	}

	now := e.now().UTC()
	windowStart := now.Add(-e.cfg.DefaultWindow)
	last, err := e.distributions.Latest(ctx)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, "", fmt.Errorf("load last distribution: %w", err)
	}
	if last != nil {
		windowStart = last.ExecutedAt
	}

	// Eligibility floor in raw units. Price zero (feed down or not
	// configured) disables the filter by contract.
	minBalance := int64(0)
	price, err := e.price.PriceUSD(ctx)
	if err != nil {
		e.logger.Printf("price feed unavailable, skipping eligibility floor: %v", err)
		price = decimal.Zero
	}
	if price.IsPositive() {
		minBalance = e.cfg.MinBalanceUSD.Div(price).Mul(e.cfg.tokenMultiplier()).Floor().IntPart()
	}

	computeStart := time.Now()
	powers, err := e.aggregator.ComputeAll(ctx, windowStart, now, minBalance, 0)
	if err != nil {
		return nil, "", fmt.Errorf("compute hash powers: %w", err)
	}
	if e.metrics != nil {
		e.metrics.HashPowerComputeDuration.Observe(time.Since(computeStart).Seconds())
		e.metrics.EligibleWallets.Set(float64(len(powers)))
	}

	if len(powers) == 0 {
		return nil, SkipNoEligible, nil
	}

	total := decimal.Zero
	for _, p := range powers {
		total = total.Add(p.Power)
	}
	if total.IsZero() {
		return nil, SkipZeroHashPower, nil
	}

	pool := decimal.NewFromInt(poolAmount)
	recipients := make([]Share, 0, len(powers))
	var allocated int64
	for _, p := range powers {
		share := p.Power.Div(total)
		amount := pool.Mul(share).Floor().IntPart()
		if amount <= 0 {
			continue // floor-rounded to nothing; dropped
		}
		allocated += amount
		recipients = append(recipients, Share{
			Wallet:     p.Wallet,
			TWAB:       p.TWAB,
			Tier:       p.Tier,
			Multiplier: p.Multiplier,
			HashPower:  p.Power,
			Share:      share,
			Amount:     amount,
		})
	}
	if len(recipients) == 0 {
		return nil, SkipNoEligible, nil
	}

	return &Plan{
		PoolAmount:     poolAmount,
		PoolValueUSD:   poolValueUSD,
		TotalHashPower: total,
		TriggerType:    trigger,
		WindowStart:    windowStart,
		WindowEnd:      now,
		Recipients:     recipients,
		Dust:           poolAmount - allocated,
	}, "", nil
}
