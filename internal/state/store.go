// Package state layers the five discovery documents over a KV store. Each
// document is independently read-modify-written; there is no cross-document
// transaction. Documents are lazily created with defaults on first read.
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Rahil-Maniar/Autonomous-Discovery-Framework/internal/discovery"
	"github.com/Rahil-Maniar/Autonomous-Discovery-Framework/internal/storage"
)

// Persisted document keys.
const (
	KeySeedLibrary        = "SEED_LIBRARY"
	KeyProcessedCompanies = "PROCESSED_COMPANIES"
	KeyVerifiedPages      = "VERIFIED_JOB_PAGES"
	KeyPromptHistory      = "PROMPT_HISTORY"
	KeyAnalytics          = "PERFORMANCE_ANALYTICS"
)

// Store implements discovery.StateStore over a storage.KV.
type Store struct {
	kv storage.KV
}

// New constructs a Store.
func New(kv storage.KV) *Store {
	return &Store{kv: kv}
}

// SeedLibrary loads the seed library, defaulting to empty.
func (s *Store) SeedLibrary(ctx context.Context) (discovery.SeedLibrary, error) {
	var lib discovery.SeedLibrary
	if err := s.read(ctx, KeySeedLibrary, &lib); err != nil {
		return discovery.SeedLibrary{}, err
	}
	return lib, nil
}

// SaveSeedLibrary persists the seed library.
func (s *Store) SaveSeedLibrary(ctx context.Context, lib discovery.SeedLibrary) error {
	return s.write(ctx, KeySeedLibrary, lib)
}

// ProcessedCompanies loads the processed-companies set, defaulting to empty.
func (s *Store) ProcessedCompanies(ctx context.Context) (discovery.ProcessedCompanies, error) {
	var set discovery.ProcessedCompanies
	if err := s.read(ctx, KeyProcessedCompanies, &set); err != nil {
		return discovery.ProcessedCompanies{}, err
	}
	if set.Companies == nil {
		set.Companies = make(map[string]time.Time)
	}
	return set, nil
}

// MarkProcessed records the first time a normalized company name was
// processed. The key is write-once: a later mark never overwrites.
func (s *Store) MarkProcessed(ctx context.Context, name string, at time.Time) error {
	set, err := s.ProcessedCompanies(ctx)
	if err != nil {
		return err
	}
	normalized := Normalize(name)
	if _, exists := set.Companies[normalized]; exists {
		return nil
	}
	set.Companies[normalized] = at
	return s.write(ctx, KeyProcessedCompanies, set)
}

// VerifiedPages loads the verified-pages list, defaulting to empty.
func (s *Store) VerifiedPages(ctx context.Context) (discovery.VerifiedPages, error) {
	var pages discovery.VerifiedPages
	if err := s.read(ctx, KeyVerifiedPages, &pages); err != nil {
		return discovery.VerifiedPages{}, err
	}
	return pages, nil
}

// AppendVerifiedPage appends a URL unless it is already present. The write
// happens immediately, not at cycle end, to minimize loss on crash.
func (s *Store) AppendVerifiedPage(ctx context.Context, url string) (bool, error) {
	pages, err := s.VerifiedPages(ctx)
	if err != nil {
		return false, err
	}
	if pages.Contains(url) {
		return false, nil
	}
	pages.URLs = append(pages.URLs, url)
	if err := s.write(ctx, KeyVerifiedPages, pages); err != nil {
		return false, err
	}
	return true, nil
}

// AppendPrompt records a discovery query, evicting the oldest beyond the cap.
func (s *Store) AppendPrompt(ctx context.Context, query string) error {
	var history discovery.PromptHistory
	if err := s.read(ctx, KeyPromptHistory, &history); err != nil {
		return err
	}
	history.Queries = append(history.Queries, query)
	if len(history.Queries) > discovery.PromptHistoryCap {
		history.Queries = history.Queries[len(history.Queries)-discovery.PromptHistoryCap:]
	}
	return s.write(ctx, KeyPromptHistory, history)
}

// Analytics loads performance analytics, defaulting to zero values.
func (s *Store) Analytics(ctx context.Context) (discovery.Analytics, error) {
	var a discovery.Analytics
	if err := s.read(ctx, KeyAnalytics, &a); err != nil {
		return discovery.Analytics{}, err
	}
	return a, nil
}

// SaveAnalytics persists performance analytics.
func (s *Store) SaveAnalytics(ctx context.Context, a discovery.Analytics) error {
	return s.write(ctx, KeyAnalytics, a)
}

// Normalize lower-cases and trims a company name for set membership.
func Normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (s *Store) read(ctx context.Context, key string, out any) error {
	raw, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("load %s: %w", key, err)
	}
	if !ok || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (s *Store) write(ctx context.Context, key string, doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.kv.Put(ctx, key, raw); err != nil {
		return fmt.Errorf("store %s: %w", key, err)
	}
	return nil
}
