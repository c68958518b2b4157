// Package pricefeed supplies the USD-per-token price used for trigger
// evaluation and eligibility floors. Feeds degrade to a zero price on
// failure; USD-denominated filters then become no-ops by contract.
package pricefeed

import (
	"context"

	"github.com/shopspring/decimal"
)

// Feed returns the current USD price per whole token.
type Feed interface {
	// PriceUSD returns the price, or zero when unavailable. A zero
	// price is a valid degraded state, not an error.
	PriceUSD(ctx context.Context) (decimal.Decimal, error)
}

// Static is a fixed-price feed for tests and dry runs.
type Static struct {
	Price decimal.Decimal
}

// Compile-time interface check.
var _ Feed = (*Static)(nil)

// PriceUSD returns the configured price.
func (s *Static) PriceUSD(context.Context) (decimal.Decimal, error) {
	return s.Price, nil
}
