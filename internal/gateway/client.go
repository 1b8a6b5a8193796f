// Package gateway integrates the hosted payment gateway: outbound
// initialize-payment calls and inbound signed callbacks reconciled into the
// customer credit ledger.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// Client wraps interactions with the payment gateway API.
type Client struct {
	baseURL    string
	secret     string
	httpClient *http.Client
}

// NewClient constructs a new client.
func NewClient(baseURL, secret string) *Client {
	return &Client{
		baseURL: baseURL,
		secret:  secret,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// InitializeInput describes one payment to collect.
type InitializeInput struct {
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Reference string          `json:"reference"`
	Email     string          `json:"email"`
}

// Authorization is the gateway's answer to an initialize call: where to send
// the payer, under which reference the callback will arrive.
type Authorization struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

// Ping checks if the gateway is reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/health", c.baseURL), nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}
	return nil
}

// Initialize registers a pending payment with the gateway and returns the
// authorization the payer must complete.
func (c *Client) Initialize(ctx context.Context, input InitializeInput) (Authorization, error) {
	payload, err := json.Marshal(input)
	if err != nil {
		return Authorization{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/transaction/initialize", c.baseURL), bytes.NewReader(payload))
	if err != nil {
		return Authorization{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.secret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Authorization{}, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		return Authorization{}, fmt.Errorf("initialize failed with status %d", resp.StatusCode)
	}
	var body struct {
		Status bool          `json:"status"`
		Data   Authorization `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Authorization{}, fmt.Errorf("decode initialize response: %w", err)
	}
	if !body.Status {
		return Authorization{}, fmt.Errorf("gateway rejected initialize for %s", input.Reference)
	}
	return body.Data, nil
}
