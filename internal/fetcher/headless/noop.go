package headless

import (
	"context"
	"errors"

	"github.com/Rahil-Maniar/Autonomous-Discovery-Framework/internal/discovery"
)

// Noop stands in for the browser when headless escalation is disabled. Every
// fetch fails, so callers fall back to the plain response they already have.
type Noop struct{}

// NewNoop creates a new Noop fetcher.
func NewNoop() *Noop {
	return &Noop{}
}

// Fetch always reports that no browser is available.
func (Noop) Fetch(_ context.Context, _ string) (discovery.SourceContent, error) {
	return discovery.SourceContent{}, errors.New("headless escalation disabled")
}
