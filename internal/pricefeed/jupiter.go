package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultEndpoint is the Jupiter price API.
const DefaultEndpoint = "https://price.jup.ag/v4/price"

// DefaultTimeout bounds one price request.
const DefaultTimeout = 10 * time.Second

// JupiterClient fetches token prices from the Jupiter price API.
type JupiterClient struct {
	endpoint string
	mint     string
	client   *http.Client
}

// JupiterOption configures JupiterClient.
type JupiterOption func(*JupiterClient)

// WithEndpoint overrides the API endpoint.
func WithEndpoint(endpoint string) JupiterOption {
	return func(c *JupiterClient) {
		c.endpoint = endpoint
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) JupiterOption {
	return func(c *JupiterClient) {
		c.client = client
	}
}

// NewJupiterClient creates a price client for the given token mint.
func NewJupiterClient(mint string, opts ...JupiterOption) *JupiterClient {
	c := &JupiterClient{
		endpoint: DefaultEndpoint,
		mint:     mint,
		client:   &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile-time interface check.
var _ Feed = (*JupiterClient)(nil)

type priceResponse struct {
	Data map[string]struct {
		Price json.Number `json:"price"`
	} `json:"data"`
}

// PriceUSD fetches the USD price for the configured mint. An
// unconfigured mint yields zero, matching the degraded-feed contract.
func (c *JupiterClient) PriceUSD(ctx context.Context) (decimal.Decimal, error) {
	if c.mint == "" {
		return decimal.Zero, nil
	}

	u := fmt.Sprintf("%s?ids=%s", c.endpoint, url.QueryEscape(c.mint))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("build price request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("fetch price: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("price api status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return decimal.Zero, fmt.Errorf("read price response: %w", err)
	}

	var parsed priceResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return decimal.Zero, fmt.Errorf("decode price response: %w", err)
	}

	entry, ok := parsed.Data[c.mint]
	if !ok || entry.Price == "" {
		return decimal.Zero, nil
	}
	price, err := decimal.NewFromString(entry.Price.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse price %q: %w", entry.Price, err)
	}
	if price.IsNegative() {
		return decimal.Zero, nil
	}
	return price, nil
}
