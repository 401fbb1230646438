// Package payments provides the payment gateway client.
package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// DefaultBaseURL is the payment gateway API base URL.
const DefaultBaseURL = "https://api.paygate.example.com"

// ClientConfig holds configuration for the gateway client.
type ClientConfig struct {
	// APIKey is the gateway secret key (required).
	APIKey string

	// BaseURL is the API base URL (optional, defaults to the gateway API).
	BaseURL string

	// Timeout bounds individual HTTP calls. Default: 10 seconds.
	Timeout time.Duration

	// Logger for client operations.
	Logger zerolog.Logger
}

// ConfigFromEnv creates a ClientConfig from environment variables. The
// second return is false when no credentials are configured, which is a
// supported mode: payments are simply reported as not configured.
func ConfigFromEnv(logger zerolog.Logger) (ClientConfig, bool) {
	apiKey := os.Getenv("PAYMENT_GATEWAY_API_KEY")
	if apiKey == "" {
		return ClientConfig{}, false
	}

	baseURL := os.Getenv("PAYMENT_GATEWAY_URL")
	return ClientConfig{
		APIKey:  apiKey,
		BaseURL: baseURL,
		Logger:  logger,
	}, true
}

// Client is a payment gateway API client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a new gateway client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     cfg.Logger,
	}
}

// Account describes the gateway account the API key belongs to.
type Account struct {
	ID             string `json:"id"`
	ChargesEnabled bool   `json:"charges_enabled"`
	Country        string `json:"country"`
}

// AccountInfo fetches the gateway account the API key belongs to. This is
// the cheapest authenticated read the gateway offers and doubles as its
// liveness check.
func (c *Client) AccountInfo(ctx context.Context) (*Account, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/account", http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var account Account
	if err := json.NewDecoder(resp.Body).Decode(&account); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &account, nil
}

// CheckAccount verifies gateway reachability with a lightweight
// authenticated read. Used by the payment health probe.
func (c *Client) CheckAccount(ctx context.Context) error {
	_, err := c.AccountInfo(ctx)
	return err
}

// ChargeRequest describes a payment to capture.
type ChargeRequest struct {
	AmountCents int64  `json:"amount"`
	Currency    string `json:"currency"`
	Reference   string `json:"reference"`
	Description string `json:"description,omitempty"`
}

// Charge is a captured payment.
type Charge struct {
	ID          string `json:"id"`
	AmountCents int64  `json:"amount"`
	Currency    string `json:"currency"`
	Status      string `json:"status"`
}

// CreateCharge captures a payment.
func (c *Client) CreateCharge(ctx context.Context, charge ChargeRequest) (*Charge, error) {
	body, err := json.Marshal(charge)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/charges", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var created Charge
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &created, nil
}
