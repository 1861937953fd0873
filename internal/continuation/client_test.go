package continuation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestScheduleNextDeliversPayload(t *testing.T) {
	t.Parallel()

	var (
		mu       sync.Mutex
		received continuePayload
		secret   string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		secret = r.Header.Get(SecretHeader)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	sent := make(chan error, 1)
	client, err := NewClient(srv.URL, "topsecret", zap.NewNop(), WithDeliveryChannel(sent))
	require.NoError(t, err)

	require.NoError(t, client.ScheduleNext(context.Background(), 5, 0))
	require.NoError(t, <-sent)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 5, received.NextCycle)
	require.Equal(t, "topsecret", secret)
}

func TestScheduleNextHonorsDelay(t *testing.T) {
	t.Parallel()

	var arrived time.Time
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		arrived = time.Now()
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	sent := make(chan error, 1)
	client, err := NewClient(srv.URL, "topsecret", zap.NewNop(), WithDeliveryChannel(sent))
	require.NoError(t, err)

	start := time.Now()
	require.NoError(t, client.ScheduleNext(context.Background(), 2, 100*time.Millisecond))
	require.NoError(t, <-sent)
	require.GreaterOrEqual(t, arrived.Sub(start), 100*time.Millisecond)
}

func TestScheduleNextReportsRejection(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	sent := make(chan error, 1)
	client, err := NewClient(srv.URL, "wrong", zap.NewNop(), WithDeliveryChannel(sent))
	require.NoError(t, err)

	require.NoError(t, client.ScheduleNext(context.Background(), 2, 0))
	require.Error(t, <-sent)
}

func TestNewClientValidation(t *testing.T) {
	t.Parallel()

	_, err := NewClient("", "secret", zap.NewNop())
	require.Error(t, err)

	_, err = NewClient("http://localhost:8080", "", zap.NewNop())
	require.Error(t, err)
}

func TestScheduleNextRejectsBadCycle(t *testing.T) {
	t.Parallel()

	client, err := NewClient("http://localhost:8080", "secret", zap.NewNop())
	require.NoError(t, err)
	require.Error(t, client.ScheduleNext(context.Background(), 0, 0))
}
