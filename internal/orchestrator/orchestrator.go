// Package orchestrator runs the discovery cycle state machine. A cycle either
// explores a known seed for leads or discovers new seeds via generated search
// queries, then schedules its own successor until a new page is found or the
// chain bound is reached.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Rahil-Maniar/Autonomous-Discovery-Framework/internal/discovery"
	"github.com/Rahil-Maniar/Autonomous-Discovery-Framework/internal/metrics"
)

// Config controls cycle behavior.
type Config struct {
	// Cooldown is how long a seed must rest between explorations.
	Cooldown time.Duration
	// ChunkMaxChars bounds one extractor request.
	ChunkMaxChars int
	// ExtractBatchSize is how many chunks are extracted concurrently.
	ExtractBatchSize int
	// ConfidenceThreshold is the strict lower bound for accepting a page.
	ConfidenceThreshold float64
	// MaxCycles bounds the continuation chain. Zero means unbounded.
	MaxCycles int
	// RetryDelay is the pause before re-scheduling after a failed cycle.
	RetryDelay time.Duration
	// Topic receives a PageEvent per accepted page.
	Topic string
	// ArchivePrefix namespaces archived source snapshots.
	ArchivePrefix string
}

// Dependencies are the collaborators a cycle drives.
type Dependencies struct {
	Store     discovery.StateStore
	Extractor discovery.Extractor
	Verifier  discovery.Verifier
	Fetcher   discovery.SourceFetcher
	Generator discovery.QueryGenerator
	Searcher  discovery.Searcher
	Publisher discovery.Publisher
	Archiver  discovery.Archiver
	Continuer discovery.Continuer
	Clock     discovery.Clock
}

// Orchestrator executes discovery cycles one at a time.
type Orchestrator struct {
	cfg     Config
	deps    Dependencies
	logger  *zap.Logger
	pick    func(n int) int
	running atomic.Bool
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithPick replaces the random query selection (used by tests).
func WithPick(fn func(n int) int) Option {
	return func(o *Orchestrator) {
		o.pick = fn
	}
}

// New validates dependencies and builds an Orchestrator.
func New(cfg Config, deps Dependencies, logger *zap.Logger, opts ...Option) (*Orchestrator, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("state store is required")
	}
	if deps.Extractor == nil || deps.Verifier == nil {
		return nil, fmt.Errorf("extractor and verifier clients are required")
	}
	if deps.Fetcher == nil {
		return nil, fmt.Errorf("source fetcher is required")
	}
	if deps.Generator == nil || deps.Searcher == nil {
		return nil, fmt.Errorf("query generator and searcher are required")
	}
	if deps.Clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = 0.8
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 23 * time.Hour
	}
	metrics.Init()

	o := &Orchestrator{
		cfg:    cfg,
		deps:   deps,
		logger: logger,
		pick:   rand.Intn,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Busy reports whether a cycle currently holds the single-writer lease.
func (o *Orchestrator) Busy() bool {
	return o.running.Load()
}

// RunCycle executes one full cycle. Only one cycle runs at a time; an
// overlapping trigger returns ErrCycleRunning without touching state.
func (o *Orchestrator) RunCycle(ctx context.Context, cycle int) (report discovery.CycleReport, err error) {
	if !o.running.CompareAndSwap(false, true) {
		return discovery.CycleReport{}, discovery.ErrCycleRunning
	}
	defer o.running.Store(false)

	start := o.deps.Clock.Now()
	report = discovery.CycleReport{Cycle: cycle}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle %d panicked: %v", cycle, r)
		}
		outcome := "success"
		if err != nil {
			outcome = "error"
			o.logger.Error("cycle failed",
				zap.Int("cycle", cycle),
				zap.String("mode", string(report.Mode)),
				zap.Error(err))
		}
		metrics.ObserveCycle(string(report.Mode), outcome, o.deps.Clock.Now().Sub(start))
		o.finishCycle(ctx, cycle, report, err)
	}()

	lib, err := o.deps.Store.SeedLibrary(ctx)
	if err != nil {
		return report, err
	}

	idx, eligible := pickSeed(lib.Seeds, o.deps.Clock.Now(), o.cfg.Cooldown)
	if eligible {
		report, err = o.explore(ctx, cycle, lib, idx)
	} else {
		report, err = o.discover(ctx, cycle)
	}
	return report, err
}

// pickSeed returns the index of the highest-scoring seed whose cooldown has
// elapsed. Equal scores break lexicographically by URL so the choice is
// deterministic.
func pickSeed(seeds []discovery.Seed, now time.Time, cooldown time.Duration) (int, bool) {
	best := -1
	for i, s := range seeds {
		if now.Sub(s.LastVisited) < cooldown {
			continue
		}
		if best == -1 {
			best = i
			continue
		}
		if s.Score > seeds[best].Score ||
			(s.Score == seeds[best].Score && s.URL < seeds[best].URL) {
			best = i
		}
	}
	return best, best >= 0
}

// finishCycle updates failure analytics and decides whether to schedule the
// next cycle. A cycle that accepted a new page ends the chain; anything else
// continues it until MaxCycles.
func (o *Orchestrator) finishCycle(ctx context.Context, cycle int, report discovery.CycleReport, cycleErr error) {
	o.updateFailureStreak(ctx, report, cycleErr)

	if o.deps.Continuer == nil {
		return
	}
	if cycleErr == nil && report.Succeeded() {
		o.logger.Info("cycle found new pages, chain complete",
			zap.Int("cycle", cycle),
			zap.Int("new_pages", report.NewPages))
		return
	}
	// Retrying a missing credential only repeats the same failure.
	if errors.Is(cycleErr, discovery.ErrNoCredentials) {
		o.logger.Error("configuration error, chain stopped",
			zap.Int("cycle", cycle),
			zap.Error(cycleErr))
		return
	}

	next := cycle + 1
	if o.cfg.MaxCycles > 0 && next > o.cfg.MaxCycles {
		o.logger.Warn("continuation chain bound reached",
			zap.Int("cycle", cycle),
			zap.Int("max_cycles", o.cfg.MaxCycles),
			zap.Error(discovery.ErrChainExhausted))
		return
	}

	delay := time.Duration(0)
	if cycleErr != nil {
		delay = o.cfg.RetryDelay
	}
	if err := o.deps.Continuer.ScheduleNext(ctx, next, delay); err != nil {
		o.logger.Error("schedule next cycle failed",
			zap.Int("next_cycle", next),
			zap.Error(err))
	}
}

func (o *Orchestrator) updateFailureStreak(ctx context.Context, report discovery.CycleReport, cycleErr error) {
	analytics, err := o.deps.Store.Analytics(ctx)
	if err != nil {
		o.logger.Error("load analytics failed", zap.Error(err))
		return
	}
	if cycleErr == nil && report.Succeeded() {
		analytics.ConsecutiveFailures = 0
	} else {
		analytics.ConsecutiveFailures++
	}
	if err := o.deps.Store.SaveAnalytics(ctx, analytics); err != nil {
		o.logger.Error("save analytics failed", zap.Error(err))
	}
}

// publishPage emits a PageEvent, best-effort.
func (o *Orchestrator) publishPage(ctx context.Context, event discovery.PageEvent) {
	if o.deps.Publisher == nil {
		return
	}
	if _, err := o.deps.Publisher.Publish(ctx, o.cfg.Topic, event); err != nil {
		o.logger.Warn("publish page event failed",
			zap.String("url", event.URL),
			zap.Error(err))
	}
}
