// Package continuation re-enters the orchestrator by POSTing to its own
// public URL, which keeps a chain alive across serverless-style invocations.
package continuation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// SecretHeader must match the server's continuation gate.
const SecretHeader = "X-Continuation-Secret"

const requestTimeout = 15 * time.Second

// Client schedules follow-up cycles over HTTP.
type Client struct {
	baseURL string
	secret  string
	httpc   *http.Client
	logger  *zap.Logger
	// sent signals each delivery attempt's outcome, for tests.
	sent chan error
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(httpc *http.Client) Option {
	return func(c *Client) {
		c.httpc = httpc
	}
}

// WithDeliveryChannel surfaces asynchronous delivery results (used by tests).
func WithDeliveryChannel(ch chan error) Option {
	return func(c *Client) {
		c.sent = ch
	}
}

// NewClient builds a continuation client for the service's own base URL.
func NewClient(baseURL, secret string, logger *zap.Logger, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if secret == "" {
		return nil, fmt.Errorf("continuation secret is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		secret:  secret,
		httpc:   &http.Client{Timeout: requestTimeout},
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type continuePayload struct {
	NextCycle int `json:"next_cycle"`
}

// ScheduleNext fires the self-addressed POST after the given delay. It
// returns immediately; the delivery happens in the background with its own
// context, because the triggering request finishes before the next begins.
func (c *Client) ScheduleNext(_ context.Context, nextCycle int, delay time.Duration) error {
	if nextCycle < 1 {
		return fmt.Errorf("next cycle must be >= 1")
	}
	go func() {
		if delay > 0 {
			time.Sleep(delay)
		}
		err := c.deliver(nextCycle)
		if err != nil {
			c.logger.Error("continuation delivery failed",
				zap.Int("next_cycle", nextCycle),
				zap.Error(err))
		}
		if c.sent != nil {
			c.sent <- err
		}
	}()
	return nil
}

func (c *Client) deliver(nextCycle int) error {
	body, err := json.Marshal(continuePayload{NextCycle: nextCycle})
	if err != nil {
		return fmt.Errorf("encode continuation payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/__continue", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build continuation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SecretHeader, c.secret)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("post continuation: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("continuation rejected with %d", resp.StatusCode)
	}
	return nil
}
