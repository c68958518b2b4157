package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestDefaultTiers_Valid(t *testing.T) {
	if err := DefaultTiers().Validate(); err != nil {
		t.Fatalf("DefaultTiers invalid: %v", err)
	}
}

func TestTierTable_ValidateRejectsBadLadders(t *testing.T) {
	short := DefaultTiers()[:4]
	if err := short.Validate(); err == nil {
		t.Error("Expected error for short table")
	}

	flatHours := DefaultTiers()
	flatHours[2].MinHours = flatHours[1].MinHours
	if err := flatHours.Validate(); err == nil {
		t.Error("Expected error for non-increasing hours")
	}

	flatMult := DefaultTiers()
	flatMult[3].Multiplier = flatMult[2].Multiplier
	if err := flatMult.Validate(); err == nil {
		t.Error("Expected error for non-increasing multipliers")
	}

	nonZeroBase := DefaultTiers()
	nonZeroBase[0].MinHours = 1
	if err := nonZeroBase.Validate(); err == nil {
		t.Error("Expected error for tier 1 above 0 hours")
	}
}

func TestTierTable_MultiplierClampsOutOfRange(t *testing.T) {
	tiers := DefaultTiers()
	one := decimal.RequireFromString("1.0")

	for _, level := range []int{-3, 0, 7, 100} {
		if got := tiers.Multiplier(level); !got.Equal(one) {
			t.Errorf("Multiplier(%d) = %s, want 1.0", level, got)
		}
	}
	if got := tiers.Multiplier(6); !got.Equal(decimal.RequireFromString("5.0")) {
		t.Errorf("Multiplier(6) = %s, want 5.0", got)
	}
}

func TestTierTable_ForHours(t *testing.T) {
	tiers := DefaultTiers()

	cases := []struct {
		hours float64
		want  int
	}{
		{0, 1},
		{5.99, 1},
		{6, 2},
		{11.99, 2},
		{12, 3},
		{72, 4},
		{168, 5},
		{719.99, 5},
		{720, 6},
		{10000, 6},
	}
	for _, tc := range cases {
		if got := tiers.ForHours(tc.hours); got != tc.want {
			t.Errorf("ForHours(%v) = %d, want %d", tc.hours, got, tc.want)
		}
	}
}

func TestHoldStreak_Hours(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := &HoldStreak{StreakStart: now.Add(-90 * time.Minute)}
	if got := s.Hours(now); got != 1.5 {
		t.Errorf("Hours = %v, want 1.5", got)
	}
}
