package discovery

import "errors"

// Error classes the orchestrator branches on. Transport failures from
// collaborators are recovered locally as empty results and never surface
// through these.
var (
	// ErrMalformedResponse marks invalid JSON from the LLM or search API.
	// It fails the cycle and schedules a delayed retry.
	ErrMalformedResponse = errors.New("malformed collaborator response")

	// ErrNoCredentials marks a missing credential or endpoint. It is fatal
	// for the cycle and no retry is scheduled.
	ErrNoCredentials = errors.New("no credentials configured")

	// ErrCycleRunning is returned when a trigger arrives while another cycle
	// holds the single-writer lease.
	ErrCycleRunning = errors.New("a cycle is already running")

	// ErrChainExhausted is returned when the continuation chain reaches the
	// configured maximum cycle count.
	ErrChainExhausted = errors.New("cycle chain exhausted")
)
