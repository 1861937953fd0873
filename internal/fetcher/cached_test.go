package fetcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Rahil-Maniar/Autonomous-Discovery-Framework/internal/discovery"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

type countingFetcher struct {
	calls int
	err   error
}

func (f *countingFetcher) Fetch(_ context.Context, url string) (discovery.SourceContent, error) {
	f.calls++
	if f.err != nil {
		return discovery.SourceContent{}, f.err
	}
	return discovery.SourceContent{URL: url, StatusCode: 200, Body: []byte("body")}, nil
}

func TestCachedReusesFreshEntry(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}
	inner := &countingFetcher{}
	cached, err := NewCached(inner, 8, time.Minute, clock)
	require.NoError(t, err)

	_, err = cached.Fetch(context.Background(), "https://news.ycombinator.com")
	require.NoError(t, err)
	_, err = cached.Fetch(context.Background(), "https://news.ycombinator.com")
	require.NoError(t, err)
	require.Equal(t, 1, inner.calls)
}

func TestCachedExpiresStaleEntry(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}
	inner := &countingFetcher{}
	cached, err := NewCached(inner, 8, time.Minute, clock)
	require.NoError(t, err)

	_, err = cached.Fetch(context.Background(), "https://news.ycombinator.com")
	require.NoError(t, err)

	clock.now = clock.now.Add(2 * time.Minute)
	_, err = cached.Fetch(context.Background(), "https://news.ycombinator.com")
	require.NoError(t, err)
	require.Equal(t, 2, inner.calls)
}

func TestCachedDoesNotCacheFailures(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Now()}
	inner := &countingFetcher{err: errors.New("connection refused")}
	cached, err := NewCached(inner, 8, time.Minute, clock)
	require.NoError(t, err)

	_, err = cached.Fetch(context.Background(), "https://down.example.com")
	require.Error(t, err)

	inner.err = nil
	content, err := cached.Fetch(context.Background(), "https://down.example.com")
	require.NoError(t, err)
	require.Equal(t, 200, content.StatusCode)
	require.Equal(t, 2, inner.calls)
}
