package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TriggerType identifies what fired a distribution.
type TriggerType string

const (
	TriggerThreshold TriggerType = "threshold" // pool USD value reached the threshold
	TriggerTime      TriggerType = "time"      // max hours since last distribution elapsed
	TriggerManual    TriggerType = "manual"    // operator-forced run
	TriggerNone      TriggerType = ""          // no trigger fired
)

// Distribution is the pool-level record of one payout run.
// Corresponds to distributions table. Exactly one per run, immutable.
type Distribution struct {
	ID             uuid.UUID // PRIMARY KEY
	PoolAmount     int64     // raw token amount in the pool at execution
	PoolValueUSD   decimal.Decimal
	TotalHashPower decimal.Decimal
	RecipientCount int
	TriggerType    TriggerType
	ExecutedAt     time.Time
	CreatedAt      time.Time
}

// DistributionRecipient is one wallet's allocation inside a
// distribution. Corresponds to distribution_recipients table. Unique
// per (distribution_id, wallet), immutable.
type DistributionRecipient struct {
	DistributionID uuid.UUID
	Wallet         string
	TWAB           int64 // time-weighted average balance over the window
	Multiplier     decimal.Decimal
	HashPower      decimal.Decimal
	AmountReceived int64 // raw token amount, floor of the proportional share
}

// ExcludedWallet is a wallet removed from reward eligibility
// (pool wallets, CEX deposit addresses, LP addresses).
type ExcludedWallet struct {
	Wallet  string // PRIMARY KEY
	Reason  string
	AddedAt time.Time
}

// DistributionTotals are running aggregates over all distributions.
type DistributionTotals struct {
	Distributions     int
	AmountDistributed int64
	Recipients        int64
}
