package headless

import (
	"context"
	"testing"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/require"
)

func TestResponseMetaFallbacks(t *testing.T) {
	t.Parallel()

	meta := newResponseMeta()
	status, url := meta.snapshotWithFallbacks("https://req.example.com", "")
	require.Equal(t, 200, status)
	require.Equal(t, "https://req.example.com", url)

	status, url = meta.snapshotWithFallbacks("https://req.example.com", "https://final.example.com")
	require.Equal(t, 200, status)
	require.Equal(t, "https://final.example.com", url)
}

func TestResponseMetaCapturesDocumentResponse(t *testing.T) {
	t.Parallel()

	meta := newResponseMeta()
	meta.captureEvent(&network.EventResponseReceived{
		Type: network.ResourceTypeDocument,
		Response: &network.Response{
			Status: 301,
			URL:    "https://acme.com/careers",
		},
	})

	status, url := meta.snapshotWithFallbacks("https://req.example.com", "")
	require.Equal(t, 301, status)
	require.Equal(t, "https://acme.com/careers", url)
}

func TestResponseMetaIgnoresSubresources(t *testing.T) {
	t.Parallel()

	meta := newResponseMeta()
	meta.captureEvent(&network.EventResponseReceived{
		Type: network.ResourceTypeImage,
		Response: &network.Response{
			Status: 404,
			URL:    "https://acme.com/logo.png",
		},
	})

	status, url := meta.snapshotWithFallbacks("https://acme.com", "")
	require.Equal(t, 200, status)
	require.Equal(t, "https://acme.com", url)
}

func TestNoopAlwaysFails(t *testing.T) {
	t.Parallel()

	_, err := NewNoop().Fetch(context.Background(), "https://acme.com")
	require.Error(t, err)
}
