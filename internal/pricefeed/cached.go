package pricefeed

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Cache windows. A fresh price is served without hitting the upstream
// feed; a stale one is served only when the upstream fails.
const (
	CacheTTL = 60 * time.Second
	StaleTTL = 300 * time.Second
)

// Cached wraps a Feed with a TTL cache and stale fallback. When the
// upstream fails and the cache has expired past StaleTTL, it returns
// zero: downstream USD filters then degrade to no-ops.
type Cached struct {
	upstream Feed
	logger   *log.Logger
	now      func() time.Time

	mu        sync.Mutex
	price     decimal.Decimal
	fetchedAt time.Time
}

// NewCached wraps a feed with caching.
func NewCached(upstream Feed, logger *log.Logger) *Cached {
	if logger == nil {
		logger = log.Default()
	}
	return &Cached{
		upstream: upstream,
		logger:   logger,
		now:      time.Now,
	}
}

// SetNow overrides the clock, for tests.
func (c *Cached) SetNow(now func() time.Time) {
	c.now = now
}

// Compile-time interface check.
var _ Feed = (*Cached)(nil)

// PriceUSD returns the cached price while fresh, refreshes it when
// expired, and falls back to the stale value when the upstream fails.
func (c *Cached) PriceUSD(ctx context.Context) (decimal.Decimal, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	age := now.Sub(c.fetchedAt)
	if !c.fetchedAt.IsZero() && age < CacheTTL {
		return c.price, nil
	}

	price, err := c.upstream.PriceUSD(ctx)
	if err == nil && price.IsPositive() {
		c.price = price
		c.fetchedAt = now
		return price, nil
	}

	if !c.fetchedAt.IsZero() && age < StaleTTL {
		c.logger.Printf("price feed failed, serving stale price (age %s): %v", age.Round(time.Second), err)
		return c.price, nil
	}

	c.logger.Printf("price feed failed with no usable cache: %v", err)
	return decimal.Zero, nil
}
