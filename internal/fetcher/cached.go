// Package fetcher provides caching around source fetchers.
package fetcher

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Rahil-Maniar/Autonomous-Discovery-Framework/internal/discovery"
)

// DefaultMaxAge bounds how long a cached body is reused. Seeds are news-like
// sources, so staleness directly costs lead freshness.
const DefaultMaxAge = 10 * time.Minute

type cacheEntry struct {
	content   discovery.SourceContent
	fetchedAt time.Time
}

// Cached wraps a SourceFetcher with an LRU of recent bodies, so retried
// cycles do not re-download the same seed.
type Cached struct {
	inner  discovery.SourceFetcher
	cache  *lru.Cache[string, cacheEntry]
	maxAge time.Duration
	clock  discovery.Clock
}

// NewCached builds a caching wrapper. A size below 2 disables caching
// effectively by keeping a single entry.
func NewCached(inner discovery.SourceFetcher, size int, maxAge time.Duration, clock discovery.Clock) (*Cached, error) {
	if size < 1 {
		size = 1
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	cache, err := lru.New[string, cacheEntry](size)
	if err != nil {
		return nil, err
	}
	return &Cached{inner: inner, cache: cache, maxAge: maxAge, clock: clock}, nil
}

// Fetch returns a cached body when fresh, delegating otherwise.
func (c *Cached) Fetch(ctx context.Context, url string) (discovery.SourceContent, error) {
	if entry, ok := c.cache.Get(url); ok {
		if c.clock.Now().Sub(entry.fetchedAt) < c.maxAge {
			return entry.content, nil
		}
		c.cache.Remove(url)
	}
	content, err := c.inner.Fetch(ctx, url)
	if err != nil {
		return discovery.SourceContent{}, err
	}
	c.cache.Add(url, cacheEntry{content: content, fetchedAt: c.clock.Now()})
	return content, nil
}
