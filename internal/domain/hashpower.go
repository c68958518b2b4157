package domain

import "github.com/shopspring/decimal"

// HashPower is one wallet's reward weight over a window:
// TWAB multiplied by the tier multiplier.
type HashPower struct {
	Wallet     string
	TWAB       int64 // raw token amount
	Tier       int
	TierName   string
	Multiplier decimal.Decimal
	Power      decimal.Decimal // TWAB × Multiplier
}
