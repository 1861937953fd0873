package orchestrator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Rahil-Maniar/Autonomous-Discovery-Framework/internal/discovery"
)

// discover generates fresh search queries, runs one, and folds the organic
// results into the seed library as unvisited seeds. It never accepts pages
// itself; new seeds are harvested by later explore cycles.
func (o *Orchestrator) discover(ctx context.Context, cycle int) (discovery.CycleReport, error) {
	report := discovery.CycleReport{Cycle: cycle, Mode: discovery.ModeDiscover}

	analytics, err := o.deps.Store.Analytics(ctx)
	if err != nil {
		return report, fmt.Errorf("load analytics: %w", err)
	}
	level := CreativityLevel(analytics.ConsecutiveFailures)
	report.CreativityLevel = level

	o.logger.Info("discovering new seeds",
		zap.Int("cycle", cycle),
		zap.Int("creativity_level", level),
		zap.Int("consecutive_failures", analytics.ConsecutiveFailures))

	prompt := BuildPrompt(level, analytics.RecentSuccessful(10), analytics.RecentFailed(15))
	raw, err := o.deps.Generator.Generate(ctx, prompt)
	if err != nil {
		return report, fmt.Errorf("generate queries: %w", err)
	}
	queries, err := ParseQueries(raw)
	if err != nil {
		return report, err
	}

	query := queries[o.pick(len(queries))]
	report.Query = query

	if err := o.deps.Store.AppendPrompt(ctx, query); err != nil {
		return report, fmt.Errorf("record prompt: %w", err)
	}

	results, err := o.deps.Searcher.Search(ctx, query)
	if err != nil {
		o.recordPattern(ctx, query, false)
		return report, fmt.Errorf("search %q: %w", query, err)
	}

	added, err := o.addTopSeed(ctx, results)
	if err != nil {
		return report, err
	}
	o.recordPattern(ctx, query, added)

	o.logger.Info("discovery cycle complete",
		zap.String("query", query),
		zap.Int("results", len(results)),
		zap.Bool("seed_added", added))
	return report, nil
}

// addTopSeed inserts the top organic result as a new seed with a starting
// score of 1 and an epoch LastVisited so it is immediately eligible for
// exploration. A known or empty top result adds nothing.
func (o *Orchestrator) addTopSeed(ctx context.Context, results []discovery.SearchResult) (bool, error) {
	if len(results) == 0 || results[0].URL == "" {
		return false, nil
	}
	lib, err := o.deps.Store.SeedLibrary(ctx)
	if err != nil {
		return false, fmt.Errorf("load seed library: %w", err)
	}
	if lib.Contains(results[0].URL) {
		return false, nil
	}
	lib.Seeds = append(lib.Seeds, discovery.Seed{
		URL:         results[0].URL,
		Score:       1,
		LastVisited: time.Unix(0, 0).UTC(),
	})
	if err := o.deps.Store.SaveSeedLibrary(ctx, lib); err != nil {
		return false, fmt.Errorf("save seed library: %w", err)
	}
	return true, nil
}

func (o *Orchestrator) recordPattern(ctx context.Context, query string, succeeded bool) {
	analytics, err := o.deps.Store.Analytics(ctx)
	if err != nil {
		o.logger.Error("load analytics for pattern failed", zap.Error(err))
		return
	}
	analytics.RecordPattern(query, succeeded, o.deps.Clock.Now())
	if err := o.deps.Store.SaveAnalytics(ctx, analytics); err != nil {
		o.logger.Error("save analytics for pattern failed", zap.Error(err))
	}
}
