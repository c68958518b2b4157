package distribution

import (
	"time"

	"github.com/shopspring/decimal"

	"copper-rewards/internal/domain"
)

// Config holds distribution policy. Amounts are USD unless noted.
type Config struct {
	// ThresholdUSD fires a distribution when the pool reaches it.
	ThresholdUSD decimal.Decimal

	// MaxHours fires a distribution this long after the previous one
	// regardless of pool value.
	MaxHours int

	// MinBalanceUSD is the eligibility floor: wallets whose TWAB is
	// worth less are filtered out. A zero or unavailable price
	// disables the filter.
	MinBalanceUSD decimal.Decimal

	// TokenDecimals converts between raw units and whole tokens.
	TokenDecimals int

	// DefaultWindow is the accrual window when no distribution has
	// ever run.
	DefaultWindow time.Duration

	// LockLease bounds how long a crashed run can hold the execution
	// lock before takeover.
	LockLease time.Duration
}

// DefaultConfig is the production policy.
func DefaultConfig() Config {
	return Config{
		ThresholdUSD:  decimal.NewFromInt(250),
		MaxHours:      24,
		MinBalanceUSD: decimal.NewFromInt(50),
		TokenDecimals: 6,
		DefaultWindow: 24 * time.Hour,
		LockLease:     15 * time.Minute,
	}
}

// tokenMultiplier returns raw units per whole token.
func (c Config) tokenMultiplier() decimal.Decimal {
	return decimal.New(1, int32(c.TokenDecimals))
}

// Trigger is the outcome of trigger evaluation.
type Trigger struct {
	Should         bool
	Type           domain.TriggerType
	ThresholdMet   bool
	TimeTriggerMet bool
	HoursSince     float64 // hours since the prior distribution; 0 when none
	HasPrior       bool
}

// EvaluateTrigger decides whether a distribution should fire. Pure:
// threshold wins the label when both conditions hold; no prior
// distribution always satisfies the time trigger.
func EvaluateTrigger(poolValueUSD decimal.Decimal, lastExecutedAt *time.Time, now time.Time, cfg Config) Trigger {
	t := Trigger{
		ThresholdMet: poolValueUSD.GreaterThanOrEqual(cfg.ThresholdUSD),
	}

	if lastExecutedAt == nil {
		t.TimeTriggerMet = true
	} else {
		t.HasPrior = true
		t.HoursSince = now.Sub(*lastExecutedAt).Hours()
		t.TimeTriggerMet = t.HoursSince >= float64(cfg.MaxHours)
	}

	switch {
	case t.ThresholdMet:
		t.Should = true
		t.Type = domain.TriggerThreshold
	case t.TimeTriggerMet:
		t.Should = true
		t.Type = domain.TriggerTime
	default:
		t.Type = domain.TriggerNone
	}
	return t
}
