package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Rahil-Maniar/Autonomous-Discovery-Framework/internal/chunk"
	"github.com/Rahil-Maniar/Autonomous-Discovery-Framework/internal/discovery"
	"github.com/Rahil-Maniar/Autonomous-Discovery-Framework/internal/metrics"
	"github.com/Rahil-Maniar/Autonomous-Discovery-Framework/internal/state"
)

// Lead budget per cycle, keyed off the seed's score before this visit.
func leadBudget(score int) int {
	switch {
	case score > 5:
		return 12
	case score > 2:
		return 8
	default:
		return 6
	}
}

// Seeds scoring below this are pruned from the library.
const pruneThreshold = -5

// explore visits the chosen seed, extracts leads, verifies them, and adjusts
// the seed's score by the number of newly accepted pages.
func (o *Orchestrator) explore(ctx context.Context, cycle int, lib discovery.SeedLibrary, idx int) (discovery.CycleReport, error) {
	seed := lib.Seeds[idx]
	report := discovery.CycleReport{Cycle: cycle, Mode: discovery.ModeExplore, SourceURL: seed.URL}
	now := o.deps.Clock.Now()

	o.logger.Info("exploring seed",
		zap.Int("cycle", cycle),
		zap.String("seed", seed.URL),
		zap.Int("score", seed.Score))

	// The visit is recorded before fetching so a crash mid-cycle cannot pin
	// the scheduler to a broken seed.
	lib.Seeds[idx].LastVisited = now
	if err := o.deps.Store.SaveSeedLibrary(ctx, lib); err != nil {
		return report, fmt.Errorf("record seed visit: %w", err)
	}

	var leads []discovery.Lead
	content, err := o.deps.Fetcher.Fetch(ctx, seed.URL)
	if err != nil {
		// A dead seed yields zero leads and takes the score penalty below.
		o.logger.Warn("seed fetch failed", zap.String("seed", seed.URL), zap.Error(err))
	} else {
		o.archiveSource(ctx, cycle, content)
		leads = o.extractFromContent(ctx, content)
	}

	candidates, err := o.selectCandidates(ctx, leads, seed.Score)
	if err != nil {
		return report, err
	}
	report.LeadsProcessed = len(candidates)
	metrics.ObserveLeads(len(candidates))

	newPages, err := o.verifyCandidates(ctx, cycle, candidates, now)
	if err != nil {
		return report, err
	}
	report.NewPages = newPages

	if err := o.scoreSeed(ctx, seed.URL, newPages); err != nil {
		return report, err
	}
	return report, nil
}

// extractFromContent converts the raw body to text, splits it, and runs the
// extractor over sequential batches with concurrency inside each batch. A
// failed chunk is skipped; its siblings still contribute leads.
func (o *Orchestrator) extractFromContent(ctx context.Context, content discovery.SourceContent) []discovery.Lead {
	text, err := chunk.Text(content.Body)
	if err != nil {
		o.logger.Warn("source text extraction failed",
			zap.String("url", content.URL),
			zap.Error(err))
		return nil
	}
	chunks := chunk.Split(text, o.cfg.ChunkMaxChars)
	if len(chunks) == 0 {
		return nil
	}

	batch := o.cfg.ExtractBatchSize
	if batch <= 0 {
		batch = 5
	}

	results := make([]discovery.ChunkResult, len(chunks))
	for start := 0; start < len(chunks); start += batch {
		end := min(start+batch, len(chunks))
		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			g.Go(func() error {
				leads, err := o.deps.Extractor.Extract(gctx, chunks[i])
				results[i] = discovery.ChunkResult{Index: i, Leads: leads, Err: err}
				if err != nil {
					metrics.ObserveChunkFailure()
					o.logger.Warn("chunk extraction failed",
						zap.Int("chunk", i),
						zap.Error(err))
				}
				return nil
			})
		}
		// Goroutines always return nil; per-chunk errors live in results.
		_ = g.Wait()
	}

	var merged []discovery.Lead
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		merged = append(merged, r.Leads...)
	}
	return merged
}

// selectCandidates deduplicates leads by normalized name, drops companies
// already processed, and caps the remainder at the seed's lead budget.
func (o *Orchestrator) selectCandidates(ctx context.Context, leads []discovery.Lead, seedScore int) ([]string, error) {
	if len(leads) == 0 {
		return nil, nil
	}
	processed, err := o.deps.Store.ProcessedCompanies(ctx)
	if err != nil {
		return nil, fmt.Errorf("load processed companies: %w", err)
	}

	budget := leadBudget(seedScore)
	seen := make(map[string]struct{}, len(leads))
	candidates := make([]string, 0, budget)
	for _, lead := range leads {
		name := state.Normalize(lead.CompanyName)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		if _, done := processed.Companies[name]; done {
			continue
		}
		candidates = append(candidates, name)
		if len(candidates) == budget {
			break
		}
	}
	return candidates, nil
}

type verdict struct {
	name   string
	result discovery.Verification
	err    error
}

// verifyCandidates marks every candidate processed first, so a crash or a
// failed verification never causes a re-submit, then fans verification out
// concurrently and accepts qualifying pages.
func (o *Orchestrator) verifyCandidates(ctx context.Context, cycle int, candidates []string, now time.Time) (int, error) {
	if len(candidates) == 0 {
		return 0, nil
	}
	for _, name := range candidates {
		if err := o.deps.Store.MarkProcessed(ctx, name, now); err != nil {
			return 0, fmt.Errorf("mark processed %q: %w", name, err)
		}
	}

	results := make(chan verdict, len(candidates))
	var wg sync.WaitGroup
	for _, name := range candidates {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			v, err := o.deps.Verifier.Verify(ctx, name)
			results <- verdict{name: name, result: v, err: err}
		}(name)
	}
	wg.Wait()
	close(results)

	newPages := 0
	for r := range results {
		if r.err != nil {
			o.logger.Warn("verification failed",
				zap.String("company", r.name),
				zap.Error(r.err))
			continue
		}
		if !r.result.IsCareersPage || r.result.ConfidenceScore <= o.cfg.ConfidenceThreshold {
			continue
		}
		if r.result.FinalURL == "" {
			o.logger.Warn("positive verification without a final url",
				zap.String("company", r.name))
			continue
		}
		added, err := o.deps.Store.AppendVerifiedPage(ctx, r.result.FinalURL)
		if err != nil {
			return newPages, fmt.Errorf("append verified page: %w", err)
		}
		if !added {
			continue
		}
		newPages++
		metrics.ObserveVerifiedPage()
		o.logger.Info("accepted careers page",
			zap.String("company", r.name),
			zap.String("url", r.result.FinalURL),
			zap.Float64("confidence", r.result.ConfidenceScore))
		o.publishPage(ctx, discovery.PageEvent{
			CompanyName: r.name,
			URL:         r.result.FinalURL,
			Confidence:  r.result.ConfidenceScore,
			Cycle:       cycle,
			VerifiedAt:  now,
		})
	}
	return newPages, nil
}

// scoreSeed rewards a seed by the number of new pages it produced, or applies
// a single penalty point for a barren visit. Seeds falling below the prune
// threshold are removed.
func (o *Orchestrator) scoreSeed(ctx context.Context, url string, newPages int) error {
	lib, err := o.deps.Store.SeedLibrary(ctx)
	if err != nil {
		return fmt.Errorf("load seed library for scoring: %w", err)
	}
	for i := range lib.Seeds {
		if lib.Seeds[i].URL != url {
			continue
		}
		if newPages > 0 {
			lib.Seeds[i].Score += newPages
		} else {
			lib.Seeds[i].Score--
		}
		if lib.Seeds[i].Score < pruneThreshold {
			o.logger.Info("pruning exhausted seed",
				zap.String("seed", url),
				zap.Int("score", lib.Seeds[i].Score))
			lib.Seeds = append(lib.Seeds[:i], lib.Seeds[i+1:]...)
			metrics.DeleteSeedScore(url)
		} else {
			metrics.SetSeedScore(url, lib.Seeds[i].Score)
		}
		break
	}
	return o.deps.Store.SaveSeedLibrary(ctx, lib)
}

// archiveSource snapshots the raw fetched body, best-effort.
func (o *Orchestrator) archiveSource(ctx context.Context, cycle int, content discovery.SourceContent) {
	if o.deps.Archiver == nil || len(content.Body) == 0 {
		return
	}
	path := fmt.Sprintf("cycles/%d/source.html", cycle)
	if o.cfg.ArchivePrefix != "" {
		path = o.cfg.ArchivePrefix + "/" + path
	}
	uri, err := o.deps.Archiver.Put(ctx, path, "text/html", content.Body)
	if err != nil {
		o.logger.Warn("archive source failed",
			zap.String("url", content.URL),
			zap.Error(err))
		return
	}
	o.logger.Debug("archived source", zap.String("uri", uri))
}
