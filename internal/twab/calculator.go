// Package twab computes Time-Weighted Average Balances from sparse
// snapshot series. All arithmetic runs on decimal types; results are
// floored raw token amounts.
package twab

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"copper-rewards/internal/domain"
	"copper-rewards/internal/storage"
)

// Calculate computes the TWAB for one ascending series over [start, end).
//
// The window is partitioned into one contiguous segment per sample,
// bounded by the midpoints to neighboring samples; the first segment
// starts at the window start and the last ends at the window end. Each
// segment contributes balance × duration.
//
// A single sample counts as the balance for the entire window. That is
// the source system's documented simplifying assumption; it overweighs
// a late-window sample, but changing it would reprice history.
//
// Empty series and zero-length windows yield 0.
func Calculate(series []domain.BalancePoint, start, end time.Time) int64 {
	if len(series) == 0 {
		return 0
	}

	window := end.Sub(start)
	if window <= 0 {
		return 0
	}

	if len(series) == 1 {
		if series[0].Balance < 0 {
			return 0
		}
		return series[0].Balance
	}

	weighted := decimal.Zero
	for i, point := range series {
		var segStart, segEnd time.Time

		switch {
		case i == 0:
			segStart = start
			segEnd = midpoint(point.Timestamp, series[i+1].Timestamp)
		case i == len(series)-1:
			segStart = midpoint(series[i-1].Timestamp, point.Timestamp)
			segEnd = end
		default:
			segStart = midpoint(series[i-1].Timestamp, point.Timestamp)
			segEnd = midpoint(point.Timestamp, series[i+1].Timestamp)
		}

		// Clamp to window boundaries.
		if segStart.Before(start) {
			segStart = start
		}
		if segEnd.After(end) {
			segEnd = end
		}

		duration := segEnd.Sub(segStart)
		if duration <= 0 {
			continue
		}

		weighted = weighted.Add(
			decimal.NewFromInt(point.Balance).Mul(decimal.NewFromInt(int64(duration))),
		)
	}

	result := weighted.Div(decimal.NewFromInt(int64(window))).Floor()
	if result.IsNegative() {
		return 0
	}
	return result.IntPart()
}

func midpoint(a, b time.Time) time.Time {
	return a.Add(b.Sub(a) / 2)
}

// Calculator answers TWAB queries against a balance store.
type Calculator struct {
	balances storage.BalanceStore
}

// NewCalculator creates a Calculator backed by the given store.
func NewCalculator(balances storage.BalanceStore) *Calculator {
	return &Calculator{balances: balances}
}

// ForWallet computes one wallet's TWAB over [start, end). Use the
// hashpower aggregator for batch computation; this issues one read per
// call.
func (c *Calculator) ForWallet(ctx context.Context, wallet string, start, end time.Time) (int64, error) {
	series, err := c.balances.SeriesFor(ctx, wallet, start, end)
	if err != nil {
		return 0, err
	}
	return Calculate(series, start, end), nil
}
