package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Tier bounds. Tiers outside this range are clamped to MinTier.
const (
	MinTier = 1
	MaxTier = 6
)

// HoldStreak tracks one wallet's continuous holding duration and tier.
// Corresponds to hold_streaks table. One row per wallet; the tier only
// moves down through sell demotion.
type HoldStreak struct {
	Wallet      string     // PRIMARY KEY, base58 wallet address
	StreakStart time.Time  // start of the current holding streak
	CurrentTier int        // 1..6
	LastSellAt  *time.Time // last sell that demoted this wallet (nullable)
	UpdatedAt   time.Time
}

// Hours returns the streak duration in hours at the given instant.
func (s *HoldStreak) Hours(now time.Time) float64 {
	return now.Sub(s.StreakStart).Hours()
}

// Tier is one level of the loyalty ladder. Thresholds and multipliers
// are configuration: both must strictly increase with the level.
type Tier struct {
	Level      int
	Name       string
	MinHours   int // cumulative holding hours required
	Multiplier decimal.Decimal
}

// TierTable is the full ladder, indexed by level (ascending).
type TierTable []Tier

// DefaultTiers is the production ladder.
func DefaultTiers() TierTable {
	return TierTable{
		{Level: 1, Name: "Ore", MinHours: 0, Multiplier: decimal.RequireFromString("1.0")},
		{Level: 2, Name: "Raw Copper", MinHours: 6, Multiplier: decimal.RequireFromString("1.25")},
		{Level: 3, Name: "Refined", MinHours: 12, Multiplier: decimal.RequireFromString("1.5")},
		{Level: 4, Name: "Industrial", MinHours: 72, Multiplier: decimal.RequireFromString("2.5")},
		{Level: 5, Name: "Master Miner", MinHours: 168, Multiplier: decimal.RequireFromString("3.5")},
		{Level: 6, Name: "Diamond Hands", MinHours: 720, Multiplier: decimal.RequireFromString("5.0")},
	}
}

// Validate checks the ladder invariants: levels 1..6 in order, tier 1
// at zero hours, thresholds and multipliers strictly increasing.
func (t TierTable) Validate() error {
	if len(t) != MaxTier {
		return fmt.Errorf("tier table must have %d tiers, got %d", MaxTier, len(t))
	}
	for i, tier := range t {
		if tier.Level != i+1 {
			return fmt.Errorf("tier at index %d has level %d", i, tier.Level)
		}
		if i == 0 {
			if tier.MinHours != 0 {
				return fmt.Errorf("tier 1 must start at 0 hours, got %d", tier.MinHours)
			}
			continue
		}
		prev := t[i-1]
		if tier.MinHours <= prev.MinHours {
			return fmt.Errorf("tier %d min hours %d not above tier %d", tier.Level, tier.MinHours, prev.Level)
		}
		if tier.Multiplier.LessThanOrEqual(prev.Multiplier) {
			return fmt.Errorf("tier %d multiplier %s not above tier %d", tier.Level, tier.Multiplier, prev.Level)
		}
	}
	return nil
}

// Clamp maps an out-of-range level to MinTier.
func (t TierTable) Clamp(level int) int {
	if level < MinTier || level > len(t) {
		return MinTier
	}
	return level
}

// Get returns the tier for a level, clamping out-of-range input.
func (t TierTable) Get(level int) Tier {
	return t[t.Clamp(level)-1]
}

// Multiplier returns the multiplier for a level, clamping out-of-range
// input to tier 1.
func (t TierTable) Multiplier(level int) decimal.Decimal {
	return t.Get(level).Multiplier
}

// ForHours returns the highest level whose threshold is within the
// given streak hours.
func (t TierTable) ForHours(hours float64) int {
	level := MinTier
	for _, tier := range t {
		if hours >= float64(tier.MinHours) {
			level = tier.Level
		}
	}
	return level
}
