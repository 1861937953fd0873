// Package discovery defines core types shared across subsystems.
package discovery

import "time"

// CycleMode identifies which branch of the state machine a cycle executed.
type CycleMode string

// Cycle modes recorded in reports and metrics.
const (
	ModeExplore  CycleMode = "explore"
	ModeDiscover CycleMode = "discover"
)

// Seed is a content source the orchestrator periodically re-crawls for leads.
// Score stays within [-5, +inf) while the entry exists; entries falling below
// -5 are pruned. LastVisited moves only when the seed is explored.
type Seed struct {
	URL         string    `json:"url"`
	Score       int       `json:"score"`
	LastVisited time.Time `json:"last_visited"`
}

// SeedLibrary is the ordered set of known sources.
type SeedLibrary struct {
	Seeds []Seed `json:"seeds"`
}

// Contains reports whether a URL is already present in the library.
func (l SeedLibrary) Contains(url string) bool {
	for _, s := range l.Seeds {
		if s.URL == url {
			return true
		}
	}
	return false
}

// ProcessedCompanies maps a normalized (lower-cased) company name to the time
// it was first submitted for verification. Write-once per key.
type ProcessedCompanies struct {
	Companies map[string]time.Time `json:"companies"`
}

// VerifiedPages is the append-only, deduplicated list of confirmed careers
// page URLs. It is the system's primary output artifact.
type VerifiedPages struct {
	URLs []string `json:"urls"`
}

// Contains reports whether a URL was already accepted.
func (v VerifiedPages) Contains(url string) bool {
	for _, u := range v.URLs {
		if u == url {
			return true
		}
	}
	return false
}

// PromptHistory is a bounded log of past discovery queries, kept for
// observability and query diversity, not correctness.
type PromptHistory struct {
	Queries []string `json:"queries"`
}

// QueryPattern records one discovery query and its outcome.
type QueryPattern struct {
	Query     string    `json:"query"`
	Succeeded bool      `json:"succeeded"`
	At        time.Time `json:"at"`
}

// Analytics tracks discovery performance. ConsecutiveFailures drives
// creativity escalation: reset on any new verified page, incremented on every
// cycle that yields zero new pages or errors.
type Analytics struct {
	QueryPatterns       []QueryPattern `json:"query_patterns"`
	SuccessfulPatterns  []string       `json:"successful_patterns"`
	FailedPatterns      []string       `json:"failed_patterns"`
	ConsecutiveFailures int            `json:"consecutive_failures"`
}

// Lead is a candidate company name extracted from source content, not yet
// verified.
type Lead struct {
	CompanyName string `json:"company_name"`
}

// Verification is the verifier service's prediction for a company.
type Verification struct {
	IsCareersPage   bool    `json:"is_careers_page"`
	ConfidenceScore float64 `json:"confidence_score"`
	FinalURL        string  `json:"final_url,omitempty"`
	Reason          string  `json:"reason,omitempty"`
}

// SourceContent is the raw body fetched from a seed URL.
type SourceContent struct {
	URL        string
	StatusCode int
	Body       []byte
	Duration   time.Duration
}

// SearchResult is one organic result from the web-search API.
type SearchResult struct {
	Title string `json:"title"`
	URL   string `json:"link"`
}

// ChunkResult carries the outcome of one extractor call. Err and Leads are
// mutually exclusive, so callers can tell "nothing found" from "could not
// ask"; both are non-fatal to the batch.
type ChunkResult struct {
	Index int
	Leads []Lead
	Err   error
}

// CycleReport summarizes one orchestrator invocation.
type CycleReport struct {
	Cycle           int       `json:"cycle"`
	Mode            CycleMode `json:"mode"`
	SourceURL       string    `json:"source_url,omitempty"`
	Query           string    `json:"query,omitempty"`
	LeadsProcessed  int       `json:"leads_processed"`
	NewPages        int       `json:"new_pages"`
	CreativityLevel int       `json:"creativity_level,omitempty"`
}

// Succeeded reports whether the cycle found at least one new verified page,
// which terminates the continuation chain.
func (r CycleReport) Succeeded() bool {
	return r.NewPages > 0
}

// PageEvent is published for every newly accepted careers page.
type PageEvent struct {
	CompanyName string    `json:"company_name"`
	URL         string    `json:"url"`
	Confidence  float64   `json:"confidence"`
	Cycle       int       `json:"cycle"`
	VerifiedAt  time.Time `json:"verified_at"`
}
