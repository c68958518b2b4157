package distribution

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"copper-rewards/internal/domain"
)

func TestEvaluateTrigger(t *testing.T) {
	cfg := DefaultConfig()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	hoursAgo := func(h float64) *time.Time {
		ts := now.Add(-time.Duration(h * float64(time.Hour)))
		return &ts
	}

	cases := []struct {
		name       string
		poolUSD    string
		last       *time.Time
		wantShould bool
		wantType   domain.TriggerType
	}{
		{"below threshold, recent run", "100", hoursAgo(2), false, domain.TriggerNone},
		{"threshold met", "250", hoursAgo(2), true, domain.TriggerThreshold},
		{"above threshold", "900.50", hoursAgo(2), true, domain.TriggerThreshold},
		{"time trigger", "10", hoursAgo(24), true, domain.TriggerTime},
		{"no prior distribution", "0", nil, true, domain.TriggerTime},
		{"both met, threshold wins", "400", hoursAgo(48), true, domain.TriggerThreshold},
		{"just under both", "249.99", hoursAgo(23.9), false, domain.TriggerNone},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := EvaluateTrigger(decimal.RequireFromString(tc.poolUSD), tc.last, now, cfg)
			if got.Should != tc.wantShould {
				t.Errorf("Should = %v, want %v", got.Should, tc.wantShould)
			}
			if got.Type != tc.wantType {
				t.Errorf("Type = %s, want %s", got.Type, tc.wantType)
			}
		})
	}
}

func TestEvaluateTrigger_HoursSince(t *testing.T) {
	cfg := DefaultConfig()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	last := now.Add(-6 * time.Hour)

	got := EvaluateTrigger(decimal.Zero, &last, now, cfg)
	if !got.HasPrior || got.HoursSince != 6 {
		t.Errorf("HasPrior=%v HoursSince=%v, want true and 6", got.HasPrior, got.HoursSince)
	}
}
