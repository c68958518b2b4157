// Package chain talks to the balance collector service that watches
// the token on-chain. The collector exposes holder balances, token
// supply and the reward pool balance over plain HTTP; everything else
// in the engine consumes it through the narrow source interfaces.
package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"copper-rewards/internal/snapshot"
)

// DefaultTimeout bounds one collector request.
const DefaultTimeout = 30 * time.Second

// Client is an HTTP client for the balance collector.
type Client struct {
	endpoint string
	client   *http.Client
}

// Option configures Client.
type Option func(*Client)

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.client = client
	}
}

// NewClient creates a collector client for the given base endpoint.
func NewClient(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint: endpoint,
		client:   &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile-time interface check.
var _ snapshot.HolderSource = (*Client)(nil)

type holdersResponse struct {
	Supply  int64 `json:"supply"`
	Holders []struct {
		Wallet  string `json:"wallet"`
		Balance int64  `json:"balance"`
	} `json:"holders"`
}

type poolResponse struct {
	Balance int64 `json:"balance"`
}

// HolderBalances fetches current balances for every holder.
func (c *Client) HolderBalances(ctx context.Context) ([]snapshot.HolderBalance, error) {
	var parsed holdersResponse
	if err := c.get(ctx, "/holders", &parsed); err != nil {
		return nil, err
	}

	holders := make([]snapshot.HolderBalance, 0, len(parsed.Holders))
	for _, h := range parsed.Holders {
		holders = append(holders, snapshot.HolderBalance{
			Wallet:  h.Wallet,
			Balance: h.Balance,
		})
	}
	return holders, nil
}

// TokenSupply fetches the current raw token supply.
func (c *Client) TokenSupply(ctx context.Context) (int64, error) {
	var parsed holdersResponse
	if err := c.get(ctx, "/holders", &parsed); err != nil {
		return 0, err
	}
	return parsed.Supply, nil
}

// Balance fetches the reward pool balance in raw units.
func (c *Client) Balance(ctx context.Context) (int64, error) {
	var parsed poolResponse
	if err := c.get(ctx, "/pool", &parsed); err != nil {
		return 0, err
	}
	return parsed.Balance, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+path, nil)
	if err != nil {
		return fmt.Errorf("build collector request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("collector status %d for %s", resp.StatusCode, path)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read collector response: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode collector response: %w", err)
	}
	return nil
}
