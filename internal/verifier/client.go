// Package verifier calls the careers-page verification service.
package verifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Rahil-Maniar/Autonomous-Discovery-Framework/internal/discovery"
)

const defaultTimeout = 120 * time.Second

// Client is an HTTP client for the verifier service.
type Client struct {
	baseURL string
	httpc   *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(httpc *http.Client) Option {
	return func(c *Client) {
		c.httpc = httpc
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpc.Timeout = d
	}
}

// NewClient creates a verifier client for the given base URL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("verifier url is required")
	}
	c := &Client{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type verifyRequest struct {
	CompanyName string `json:"company_name"`
}

// Verify asks the service to locate and score a careers page for a company.
func (c *Client) Verify(ctx context.Context, companyName string) (discovery.Verification, error) {
	body, err := json.Marshal(verifyRequest{CompanyName: companyName})
	if err != nil {
		return discovery.Verification{}, fmt.Errorf("encode verify request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return discovery.Verification{}, fmt.Errorf("build verify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return discovery.Verification{}, fmt.Errorf("call verifier: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return discovery.Verification{}, fmt.Errorf("verifier returned %d: %s", resp.StatusCode, snippet)
	}

	var v discovery.Verification
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return discovery.Verification{}, fmt.Errorf("decode verifier response: %w", err)
	}
	return v, nil
}
