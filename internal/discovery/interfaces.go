package discovery

import (
	"context"
	"time"
)

// StateStore persists the five state documents. Each accessor performs an
// independent read (with lazy defaults) and each mutator an independent
// write; there is no cross-document transaction.
type StateStore interface {
	SeedLibrary(ctx context.Context) (SeedLibrary, error)
	SaveSeedLibrary(ctx context.Context, lib SeedLibrary) error

	ProcessedCompanies(ctx context.Context) (ProcessedCompanies, error)
	MarkProcessed(ctx context.Context, name string, at time.Time) error

	VerifiedPages(ctx context.Context) (VerifiedPages, error)
	AppendVerifiedPage(ctx context.Context, url string) (added bool, err error)

	AppendPrompt(ctx context.Context, query string) error

	Analytics(ctx context.Context) (Analytics, error)
	SaveAnalytics(ctx context.Context, a Analytics) error
}

// Extractor returns candidate company names found in a text chunk.
type Extractor interface {
	Extract(ctx context.Context, chunk string) ([]Lead, error)
}

// Verifier predicts and validates a careers-page URL for a company.
type Verifier interface {
	Verify(ctx context.Context, companyName string) (Verification, error)
}

// SourceFetcher retrieves the raw content of a seed URL.
type SourceFetcher interface {
	Fetch(ctx context.Context, url string) (SourceContent, error)
}

// QueryGenerator produces text from a prompt, trying ranked credential/model
// pairs until one succeeds.
type QueryGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Searcher runs a web search and returns organic results in rank order.
type Searcher interface {
	Search(ctx context.Context, query string) ([]SearchResult, error)
}

// Publisher pushes one event per accepted careers page to Pub/Sub (or
// similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, event PageEvent) (string, error)
}

// Archiver stores raw artifacts and returns a URI. Archive failures are
// best-effort and never fail a cycle.
type Archiver interface {
	Put(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Continuer schedules the next cycle via the self-addressed re-entry call.
type Continuer interface {
	ScheduleNext(ctx context.Context, nextCycle int, delay time.Duration) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
