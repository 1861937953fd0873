// Package search queries the programmable web-search API with credential
// rotation, mirroring the quota strategy used for generation.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Rahil-Maniar/Autonomous-Discovery-Framework/internal/discovery"
)

const defaultTimeout = 30 * time.Second

// Credential is one API key and search-engine ID pair.
type Credential struct {
	APIKey   string
	EngineID string
}

// ParseCredential decodes "apiKey:engineID".
func ParseCredential(raw string) (Credential, error) {
	key, engine, ok := strings.Cut(strings.TrimSpace(raw), ":")
	if !ok || key == "" || engine == "" {
		return Credential{}, fmt.Errorf("malformed search credential, want key:engine_id")
	}
	return Credential{APIKey: key, EngineID: engine}, nil
}

// ParseCredentials decodes a list of raw credentials, rejecting any bad entry.
func ParseCredentials(raw []string) ([]Credential, error) {
	creds := make([]Credential, 0, len(raw))
	for _, r := range raw {
		c, err := ParseCredential(r)
		if err != nil {
			return nil, err
		}
		creds = append(creds, c)
	}
	return creds, nil
}

// Client implements discovery.Searcher against a Custom Search style API.
type Client struct {
	endpoint string
	creds    []Credential
	locale   string
	httpc    *http.Client
	shuffle  func(n int, swap func(i, j int))
	logger   *zap.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(httpc *http.Client) Option {
	return func(c *Client) {
		c.httpc = httpc
	}
}

// WithShuffle replaces the credential-order shuffle (used by tests).
func WithShuffle(fn func(n int, swap func(i, j int))) Option {
	return func(c *Client) {
		c.shuffle = fn
	}
}

// NewClient builds a search client.
func NewClient(endpoint string, creds []Credential, locale string, logger *zap.Logger, opts ...Option) (*Client, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("search endpoint is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		endpoint: endpoint,
		creds:    creds,
		locale:   locale,
		httpc:    &http.Client{Timeout: defaultTimeout},
		shuffle:  rand.Shuffle,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type searchResponse struct {
	Items []discovery.SearchResult `json:"items"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Search runs the query against each credential in randomized order and
// returns the first successful result set. An empty result set is a success;
// it means the query found nothing, not that the call failed.
func (c *Client) Search(ctx context.Context, query string) ([]discovery.SearchResult, error) {
	if len(c.creds) == 0 {
		return nil, discovery.ErrNoCredentials
	}

	order := make([]int, len(c.creds))
	for i := range order {
		order[i] = i
	}
	c.shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})

	var lastErr error
	for _, idx := range order {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		results, err := c.searchOnce(ctx, c.creds[idx], query)
		if err != nil {
			lastErr = err
			c.logger.Warn("search attempt failed",
				zap.Int("credential", idx),
				zap.Error(err))
			continue
		}
		return results, nil
	}
	return nil, fmt.Errorf("all search credentials exhausted: %w", lastErr)
}

func (c *Client) searchOnce(ctx context.Context, cred Credential, query string) ([]discovery.SearchResult, error) {
	params := url.Values{}
	params.Set("key", cred.APIKey)
	params.Set("cx", cred.EngineID)
	params.Set("q", query)
	if c.locale != "" {
		params.Set("gl", c.locale)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call search api: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read search response: %w", err)
	}

	var decoded searchResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	if decoded.Error != nil {
		return nil, fmt.Errorf("search api error %d: %s", decoded.Error.Code, decoded.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search api returned %d", resp.StatusCode)
	}
	return decoded.Items, nil
}
