// Package extractor calls the lead-extraction service.
package extractor

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

const defaultTimeout = 60 * time.Second

// Client is an HTTP client for the extractor service.
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

// NewClient creates an extractor client for the given base URL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("extractor url is required")
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

type extractRequest struct {
	TextChunk string `json:"text_chunk"`
}

// Extract submits one text chunk and returns the candidate company leads.
func (c *Client) Extract(ctx context.Context, textChunk string) ([]discovery.Lead, error) {
	body, err := json.Marshal(extractRequest{TextChunk: textChunk})
	if err != nil {
		return nil, fmt.Errorf("encode extract request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build extract request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call extractor: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("extractor returned %d: %s", resp.StatusCode, snippet)
	}

	var leads []discovery.Lead
	if err := json.NewDecoder(resp.Body).Decode(&leads); err != nil {
		return nil, fmt.Errorf("decode extractor response: %w", err)
	}
	return leads, nil
}
