// Package balance queries the reward-token balance endpoint and computes
// goal progress for the dashboard.
package balance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Client reads token balances for addresses from the balance service.
type Client struct {
	BaseURL    string
	Contract   string
	HTTPClient *http.Client
}

// NewClient creates a balance client for the given token contract.
func NewClient(baseURL, contract string, timeout time.Duration) *Client {
	return &Client{
		BaseURL:    baseURL,
		Contract:   contract,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

// Balance returns the current token amount held by address.
func (c *Client) Balance(ctx context.Context, address string) (float64, error) {
	q := url.Values{}
	q.Set("token", c.Contract)
	q.Set("address", address)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/balance?"+q.Encode(), nil)
	if err != nil {
		return 0, fmt.Errorf("balance: build request: %w", err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("balance: query: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("balance: query: HTTP %d", resp.StatusCode)
	}

	var out struct {
		Value float64 `json:"value"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("balance: decode response: %w", err)
	}
	return out.Value, nil
}

// Summary is the dashboard view of a balance against its goal.
type Summary struct {
	Address   string  `json:"address"`
	Amount    float64 `json:"amount"`
	Goal      float64 `json:"goal"`
	Remaining float64 `json:"remaining"`
	Percent   int     `json:"percent"`
	Reached   bool    `json:"reached"`
}

// Summarize computes goal progress. A non-positive goal yields 0 percent and
// is never reached.
func Summarize(address string, amount, goal float64) Summary {
	s := Summary{Address: address, Amount: amount, Goal: goal}
	if goal <= 0 {
		return s
	}
	s.Reached = amount >= goal
	if s.Reached {
		s.Percent = 100
	} else {
		s.Percent = int(amount / goal * 100)
		s.Remaining = goal - amount
	}
	return s
}
