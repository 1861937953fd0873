package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	archivemem "github.com/Rahil-Maniar/Autonomous-Discovery-Framework/internal/archive/memory"
	"github.com/Rahil-Maniar/Autonomous-Discovery-Framework/internal/discovery"
	pubmem "github.com/Rahil-Maniar/Autonomous-Discovery-Framework/internal/publisher/memory"
	"github.com/Rahil-Maniar/Autonomous-Discovery-Framework/internal/state"
	"github.com/Rahil-Maniar/Autonomous-Discovery-Framework/internal/storage/memory"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

type fakeFetcher struct {
	content discovery.SourceContent
	err     error
	calls   int
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (discovery.SourceContent, error) {
	f.calls++
	if f.err != nil {
		return discovery.SourceContent{}, f.err
	}
	content := f.content
	content.URL = url
	return content, nil
}

type fakeExtractor struct {
	mu    sync.Mutex
	fn    func(chunk string) ([]discovery.Lead, error)
	calls []string
}

func (f *fakeExtractor) Extract(_ context.Context, chunk string) ([]discovery.Lead, error) {
	f.mu.Lock()
	f.calls = append(f.calls, chunk)
	f.mu.Unlock()
	return f.fn(chunk)
}

type fakeVerifier struct {
	mu    sync.Mutex
	fn    func(name string) (discovery.Verification, error)
	calls []string
}

func (f *fakeVerifier) Verify(_ context.Context, name string) (discovery.Verification, error) {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.mu.Unlock()
	return f.fn(name)
}

type fakeGenerator struct {
	out     string
	err     error
	prompts []string
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.out, f.err
}

type fakeSearcher struct {
	results []discovery.SearchResult
	err     error
	queries []string
}

func (f *fakeSearcher) Search(_ context.Context, query string) ([]discovery.SearchResult, error) {
	f.queries = append(f.queries, query)
	return f.results, f.err
}

type scheduled struct {
	next  int
	delay time.Duration
}

type fakeContinuer struct {
	mu    sync.Mutex
	calls []scheduled
}

func (c *fakeContinuer) ScheduleNext(_ context.Context, next int, delay time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, scheduled{next: next, delay: delay})
	return nil
}

func (c *fakeContinuer) scheduledCalls() []scheduled {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]scheduled(nil), c.calls...)
}

type fixture struct {
	store     *state.Store
	fetcher   *fakeFetcher
	extractor *fakeExtractor
	verifier  *fakeVerifier
	generator *fakeGenerator
	searcher  *fakeSearcher
	publisher *pubmem.Publisher
	archiver  *archivemem.Archive
	continuer *fakeContinuer
	clock     *fakeClock
}

func newFixture() *fixture {
	return &fixture{
		store:   state.New(memory.NewKV()),
		fetcher: &fakeFetcher{content: discovery.SourceContent{StatusCode: 200, Body: []byte("<html><body>nothing</body></html>")}},
		extractor: &fakeExtractor{fn: func(string) ([]discovery.Lead, error) {
			return nil, nil
		}},
		verifier: &fakeVerifier{fn: func(string) (discovery.Verification, error) {
			return discovery.Verification{}, nil
		}},
		generator: &fakeGenerator{out: `["query one","query two","query three"]`},
		searcher:  &fakeSearcher{},
		publisher: pubmem.New(),
		archiver:  archivemem.New(),
		continuer: &fakeContinuer{},
		clock:     &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
	}
}

func (f *fixture) orchestrator(t *testing.T, cfg Config, opts ...Option) *Orchestrator {
	t.Helper()
	if cfg.Cooldown == 0 {
		cfg.Cooldown = 23 * time.Hour
	}
	if cfg.ConfidenceThreshold == 0 {
		cfg.ConfidenceThreshold = 0.8
	}
	if cfg.Topic == "" {
		cfg.Topic = "verified-pages"
	}
	opts = append([]Option{WithPick(func(int) int { return 0 })}, opts...)
	o, err := New(cfg, Dependencies{
		Store:     f.store,
		Extractor: f.extractor,
		Verifier:  f.verifier,
		Fetcher:   f.fetcher,
		Generator: f.generator,
		Searcher:  f.searcher,
		Publisher: f.publisher,
		Archiver:  f.archiver,
		Continuer: f.continuer,
		Clock:     f.clock,
	}, zap.NewNop(), opts...)
	require.NoError(t, err)
	return o
}

func (f *fixture) seedLibrary(t *testing.T, seeds ...discovery.Seed) {
	t.Helper()
	require.NoError(t, f.store.SaveSeedLibrary(context.Background(),
		discovery.SeedLibrary{Seeds: seeds}))
}

func eligibleSeed(url string, score int) discovery.Seed {
	return discovery.Seed{URL: url, Score: score, LastVisited: time.Unix(0, 0).UTC()}
}

func TestRunCycleRejectsOverlappingTrigger(t *testing.T) {
	t.Parallel()

	f := newFixture()
	o := f.orchestrator(t, Config{})
	o.running.Store(true)

	_, err := o.RunCycle(context.Background(), 1)
	require.ErrorIs(t, err, discovery.ErrCycleRunning)
}

func TestRunCycleChoosesDiscoverWhenNoSeedIsEligible(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.seedLibrary(t, discovery.Seed{
		URL:         "https://news.ycombinator.com",
		Score:       3,
		LastVisited: f.clock.now.Add(-time.Hour),
	})
	o := f.orchestrator(t, Config{})

	report, err := o.RunCycle(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, discovery.ModeDiscover, report.Mode)
	require.Zero(t, f.fetcher.calls)
}

func TestRunCycleChoosesExploreWhenSeedIsEligible(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.seedLibrary(t, eligibleSeed("https://news.ycombinator.com", 0))
	o := f.orchestrator(t, Config{})

	report, err := o.RunCycle(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, discovery.ModeExplore, report.Mode)
	require.Equal(t, 1, f.fetcher.calls)
}

func TestPickSeedPrefersScoreThenURL(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	seeds := []discovery.Seed{
		{URL: "https://b.example.com", Score: 3, LastVisited: time.Unix(0, 0)},
		{URL: "https://a.example.com", Score: 3, LastVisited: time.Unix(0, 0)},
		{URL: "https://c.example.com", Score: 9, LastVisited: now.Add(-time.Hour)},
	}

	idx, ok := pickSeed(seeds, now, 23*time.Hour)
	require.True(t, ok)
	require.Equal(t, "https://a.example.com", seeds[idx].URL)

	_, ok = pickSeed(seeds[2:], now, 23*time.Hour)
	require.False(t, ok)
}

func TestExploreAcceptsQualifyingPage(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.seedLibrary(t, eligibleSeed("https://news.ycombinator.com", 0))
	f.fetcher.content = discovery.SourceContent{
		StatusCode: 200,
		Body:       []byte("<html><body>Acme Corp raised a Series B</body></html>"),
	}
	f.extractor.fn = func(string) ([]discovery.Lead, error) {
		return []discovery.Lead{{CompanyName: "Acme Corp"}}, nil
	}
	f.verifier.fn = func(string) (discovery.Verification, error) {
		return discovery.Verification{
			IsCareersPage:   true,
			ConfidenceScore: 0.93,
			FinalURL:        "https://acme.com/careers",
		}, nil
	}
	o := f.orchestrator(t, Config{})

	ctx := context.Background()
	report, err := o.RunCycle(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, discovery.ModeExplore, report.Mode)
	require.Equal(t, 1, report.LeadsProcessed)
	require.Equal(t, 1, report.NewPages)
	require.True(t, report.Succeeded())

	pages, err := f.store.VerifiedPages(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"https://acme.com/careers"}, pages.URLs)

	processed, err := f.store.ProcessedCompanies(ctx)
	require.NoError(t, err)
	require.Contains(t, processed.Companies, "acme corp")

	lib, err := f.store.SeedLibrary(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, lib.Seeds[0].Score)
	require.Equal(t, f.clock.now, lib.Seeds[0].LastVisited)

	events := f.publisher.Events()
	require.Len(t, events, 1)
	require.Equal(t, "verified-pages", events[0].Topic)
	require.Equal(t, "https://acme.com/careers", events[0].Event.URL)
	require.Equal(t, 1, events[0].Event.Cycle)

	// A successful cycle ends the chain.
	require.Empty(t, f.continuer.scheduledCalls())

	analytics, err := f.store.Analytics(ctx)
	require.NoError(t, err)
	require.Zero(t, analytics.ConsecutiveFailures)
}

func TestExploreRecordsVisitAndPenalizesDeadSeed(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.seedLibrary(t, eligibleSeed("https://down.example.com", 2))
	f.fetcher.err = errors.New("connection refused")
	o := f.orchestrator(t, Config{})

	ctx := context.Background()
	report, err := o.RunCycle(ctx, 1)
	require.NoError(t, err)
	require.Zero(t, report.LeadsProcessed)
	require.Zero(t, report.NewPages)

	lib, err := f.store.SeedLibrary(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, lib.Seeds[0].Score)
	require.Equal(t, f.clock.now, lib.Seeds[0].LastVisited)

	// Barren cycle continues the chain immediately.
	require.Equal(t, []scheduled{{next: 2, delay: 0}}, f.continuer.scheduledCalls())

	analytics, err := f.store.Analytics(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, analytics.ConsecutiveFailures)
}

func TestExploreDeduplicatesFiltersAndCapsLeads(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.seedLibrary(t, eligibleSeed("https://news.ycombinator.com", 0))
	require.NoError(t, f.store.MarkProcessed(context.Background(), "Processed Co", f.clock.now.Add(-time.Hour)))

	f.extractor.fn = func(string) ([]discovery.Lead, error) {
		return []discovery.Lead{
			{CompanyName: "Acme"},
			{CompanyName: "ACME"},
			{CompanyName: "Processed Co"},
			{CompanyName: "B Co"}, {CompanyName: "C Co"}, {CompanyName: "D Co"},
			{CompanyName: "E Co"}, {CompanyName: "F Co"}, {CompanyName: "G Co"},
			{CompanyName: "H Co"},
		}, nil
	}
	o := f.orchestrator(t, Config{})

	report, err := o.RunCycle(context.Background(), 1)
	require.NoError(t, err)

	// Score 0 gives a budget of 6: "acme" once, "processed co" dropped.
	require.Equal(t, 6, report.LeadsProcessed)
	require.Len(t, f.verifier.calls, 6)
	require.Contains(t, f.verifier.calls, "acme")
	require.NotContains(t, f.verifier.calls, "processed co")
}

func TestLeadBudgetTiers(t *testing.T) {
	t.Parallel()

	require.Equal(t, 12, leadBudget(6))
	require.Equal(t, 8, leadBudget(3))
	require.Equal(t, 6, leadBudget(2))
	require.Equal(t, 6, leadBudget(-4))
}

func TestExploreRejectsBelowThresholdAndDuplicates(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.seedLibrary(t, eligibleSeed("https://news.ycombinator.com", 0))
	_, err := f.store.AppendVerifiedPage(context.Background(), "https://dup.com/careers")
	require.NoError(t, err)

	f.extractor.fn = func(string) ([]discovery.Lead, error) {
		return []discovery.Lead{
			{CompanyName: "Borderline"},
			{CompanyName: "NotCareers"},
			{CompanyName: "Duplicate"},
		}, nil
	}
	f.verifier.fn = func(name string) (discovery.Verification, error) {
		switch name {
		case "borderline":
			// Exactly at the threshold is rejected; the bound is strict.
			return discovery.Verification{IsCareersPage: true, ConfidenceScore: 0.8, FinalURL: "https://b.com/careers"}, nil
		case "notcareers":
			return discovery.Verification{IsCareersPage: false, ConfidenceScore: 0.99, FinalURL: "https://n.com"}, nil
		default:
			return discovery.Verification{IsCareersPage: true, ConfidenceScore: 0.95, FinalURL: "https://dup.com/careers"}, nil
		}
	}
	o := f.orchestrator(t, Config{})

	report, err := o.RunCycle(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 3, report.LeadsProcessed)
	require.Zero(t, report.NewPages)

	pages, err := f.store.VerifiedPages(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"https://dup.com/careers"}, pages.URLs)
}

func TestExplorePrunesExhaustedSeed(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.seedLibrary(t, eligibleSeed("https://barren.example.com", -5))
	o := f.orchestrator(t, Config{})

	_, err := o.RunCycle(context.Background(), 1)
	require.NoError(t, err)

	lib, err := f.store.SeedLibrary(context.Background())
	require.NoError(t, err)
	require.Empty(t, lib.Seeds)
}

func TestExploreIsolatesChunkFailures(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.seedLibrary(t, eligibleSeed("https://news.ycombinator.com", 0))
	f.fetcher.content = discovery.SourceContent{
		StatusCode: 200,
		Body:       []byte("<html><body>A123456789B123456789C123456789D123456789</body></html>"),
	}
	f.extractor.fn = func(chunk string) ([]discovery.Lead, error) {
		if chunk[0] == 'A' {
			return nil, errors.New("model unavailable")
		}
		return []discovery.Lead{{CompanyName: "Survivor " + chunk[:2]}}, nil
	}
	o := f.orchestrator(t, Config{ChunkMaxChars: 10, ExtractBatchSize: 2})

	report, err := o.RunCycle(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, f.extractor.calls, 4)
	require.Equal(t, 3, report.LeadsProcessed)
}

func TestDiscoverAddsTopSearchResult(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.searcher.results = []discovery.SearchResult{
		{Title: "TechCrunch", URL: "https://techcrunch.com"},
		{Title: "HN", URL: "https://news.ycombinator.com"},
	}
	o := f.orchestrator(t, Config{}, WithPick(func(n int) int { return 1 }))

	ctx := context.Background()
	report, err := o.RunCycle(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, discovery.ModeDiscover, report.Mode)
	require.Equal(t, "query two", report.Query)
	require.Equal(t, 1, report.CreativityLevel)
	require.Zero(t, report.NewPages)

	// Only the top organic result becomes a seed.
	lib, err := f.store.SeedLibrary(ctx)
	require.NoError(t, err)
	require.Len(t, lib.Seeds, 1)
	require.Equal(t, "https://techcrunch.com", lib.Seeds[0].URL)
	require.Equal(t, 1, lib.Seeds[0].Score)
	require.Equal(t, time.Unix(0, 0).UTC(), lib.Seeds[0].LastVisited)

	analytics, err := f.store.Analytics(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"query two"}, analytics.SuccessfulPatterns)

	// Discovery never accepts pages directly, so the chain continues.
	require.Equal(t, []scheduled{{next: 2, delay: 0}}, f.continuer.scheduledCalls())
}

func TestDiscoverSkipsKnownSeeds(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.seedLibrary(t, discovery.Seed{
		URL:         "https://techcrunch.com",
		Score:       2,
		LastVisited: f.clock.now.Add(-time.Hour),
	})
	f.searcher.results = []discovery.SearchResult{
		{Title: "TechCrunch", URL: "https://techcrunch.com"},
	}
	o := f.orchestrator(t, Config{})

	ctx := context.Background()
	_, err := o.RunCycle(ctx, 1)
	require.NoError(t, err)

	lib, err := f.store.SeedLibrary(ctx)
	require.NoError(t, err)
	require.Len(t, lib.Seeds, 1)
	require.Equal(t, 2, lib.Seeds[0].Score)

	analytics, err := f.store.Analytics(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"query one"}, analytics.FailedPatterns)
}

func TestDiscoverMalformedGenerationFailsCycle(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.generator.out = "here are some ideas for you!"
	o := f.orchestrator(t, Config{RetryDelay: 30 * time.Second})

	_, err := o.RunCycle(context.Background(), 4)
	require.ErrorIs(t, err, discovery.ErrMalformedResponse)

	// Failed cycles re-schedule after the retry delay.
	require.Equal(t, []scheduled{{next: 5, delay: 30 * time.Second}}, f.continuer.scheduledCalls())

	analytics, err := f.store.Analytics(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, analytics.ConsecutiveFailures)
}

func TestMissingCredentialsStopChain(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.generator.err = discovery.ErrNoCredentials
	o := f.orchestrator(t, Config{RetryDelay: 30 * time.Second})

	_, err := o.RunCycle(context.Background(), 1)
	require.ErrorIs(t, err, discovery.ErrNoCredentials)

	// A misconfiguration would fail identically on retry, so none is scheduled.
	require.Empty(t, f.continuer.scheduledCalls())
}

func TestDiscoverEscalatesCreativity(t *testing.T) {
	t.Parallel()

	f := newFixture()
	require.NoError(t, f.store.SaveAnalytics(context.Background(), discovery.Analytics{
		ConsecutiveFailures: 12,
		FailedPatterns:      []string{"stale query"},
	}))
	o := f.orchestrator(t, Config{})

	report, err := o.RunCycle(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 3, report.CreativityLevel)
	require.Len(t, f.generator.prompts, 1)
	require.Contains(t, f.generator.prompts[0], "Creativity level 3")
	require.Contains(t, f.generator.prompts[0], "stale query")
}

func TestDiscoverRecordsPromptHistory(t *testing.T) {
	t.Parallel()

	f := newFixture()
	o := f.orchestrator(t, Config{})

	_, err := o.RunCycle(context.Background(), 1)
	require.NoError(t, err)

	// A second run a moment later should see the first query in history.
	f.clock.now = f.clock.now.Add(time.Minute)
	_, err = o.RunCycle(context.Background(), 2)
	require.NoError(t, err)

	require.Equal(t, []string{"query one", "query one"}, f.searcher.queries)
	require.Len(t, f.generator.prompts, 2)
	require.Contains(t, f.generator.prompts[1], "query one")
}

func TestChainStopsAtMaxCycles(t *testing.T) {
	t.Parallel()

	f := newFixture()
	o := f.orchestrator(t, Config{MaxCycles: 3})

	_, err := o.RunCycle(context.Background(), 3)
	require.NoError(t, err)
	require.Empty(t, f.continuer.scheduledCalls())
}

func TestRunCycleRecoversFromPanic(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.seedLibrary(t, eligibleSeed("https://news.ycombinator.com", 0))
	f.extractor.fn = func(string) ([]discovery.Lead, error) {
		panic("extractor blew up")
	}
	f.fetcher.content = discovery.SourceContent{
		StatusCode: 200,
		Body:       []byte("<html><body>Acme Corp</body></html>"),
	}
	o := f.orchestrator(t, Config{RetryDelay: time.Second})

	_, err := o.RunCycle(context.Background(), 1)
	require.Error(t, err)
	require.Contains(t, err.Error(), "panicked")

	// The lease is released so the retry can run.
	require.False(t, o.running.Load())
	require.Equal(t, []scheduled{{next: 2, delay: time.Second}}, f.continuer.scheduledCalls())
}
