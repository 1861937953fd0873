// Package verify implements the careers-page verification service: given a
// company name it probes likely URLs, scores the rendered pages, and returns
// a confidence-weighted prediction.
package verify

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Rahil-Maniar/Autonomous-Discovery-Framework/internal/discovery"
)

// isCareersCutoff is the service's own belief threshold. The orchestrator
// applies its stricter acceptance bound on top.
const isCareersCutoff = 0.5

// maxSearchCandidates bounds how many search results are probed.
const maxSearchCandidates = 3

// Service probes candidate URLs for a company's careers page.
type Service struct {
	fetcher  discovery.SourceFetcher
	headless discovery.SourceFetcher
	searcher discovery.Searcher
	logger   *zap.Logger
}

// Option customizes a Service.
type Option func(*Service)

// WithHeadless enables browser escalation for script-only pages.
func WithHeadless(f discovery.SourceFetcher) Option {
	return func(s *Service) {
		s.headless = f
	}
}

// WithSearcher enables search-backed candidate discovery.
func WithSearcher(searcher discovery.Searcher) Option {
	return func(s *Service) {
		s.searcher = searcher
	}
}

// NewService wires the plain fetcher plus optional collaborators.
func NewService(fetcher discovery.SourceFetcher, logger *zap.Logger, opts ...Option) (*Service, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{fetcher: fetcher, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Verify probes conventional careers URLs first, then search results, and
// returns the best-scoring page. A company with no reachable candidate gets a
// zero-confidence negative, not an error.
func (s *Service) Verify(ctx context.Context, companyName string) (discovery.Verification, error) {
	if strings.TrimSpace(companyName) == "" {
		return discovery.Verification{}, fmt.Errorf("company name is required")
	}

	candidates := s.candidateURLs(ctx, companyName)
	if len(candidates) == 0 {
		return discovery.Verification{Reason: "no candidate urls"}, nil
	}

	best := discovery.Verification{Reason: "no candidate page reachable"}
	for _, url := range candidates {
		if ctx.Err() != nil {
			return discovery.Verification{}, ctx.Err()
		}
		content, err := s.fetchRendered(ctx, url)
		if err != nil {
			s.logger.Debug("candidate probe failed",
				zap.String("url", url),
				zap.Error(err))
			continue
		}
		score, reason := scorePage(content.Body, companyName)
		if score > best.ConfidenceScore {
			best = discovery.Verification{
				IsCareersPage:   score >= isCareersCutoff,
				ConfidenceScore: score,
				FinalURL:        content.URL,
				Reason:          reason,
			}
		}
	}
	return best, nil
}

// fetchRendered gets a URL and escalates to the headless browser when the
// plain response is an unrendered app shell.
func (s *Service) fetchRendered(ctx context.Context, url string) (discovery.SourceContent, error) {
	content, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		return discovery.SourceContent{}, err
	}
	if s.headless == nil || !looksLikeAppShell(content.Body) {
		return content, nil
	}
	rendered, herr := s.headless.Fetch(ctx, url)
	if herr != nil {
		s.logger.Warn("headless escalation failed, using plain response",
			zap.String("url", url),
			zap.Error(herr))
		return content, nil
	}
	return rendered, nil
}

func (s *Service) candidateURLs(ctx context.Context, companyName string) []string {
	urls := guessedURLs(companyName)
	seen := make(map[string]struct{}, len(urls)+maxSearchCandidates)
	for _, u := range urls {
		seen[u] = struct{}{}
	}

	if s.searcher != nil {
		results, err := s.searcher.Search(ctx, fmt.Sprintf("%s careers page", companyName))
		if err != nil {
			s.logger.Warn("candidate search failed",
				zap.String("company", companyName),
				zap.Error(err))
		} else {
			added := 0
			for _, r := range results {
				if r.URL == "" {
					continue
				}
				if _, dup := seen[r.URL]; dup {
					continue
				}
				seen[r.URL] = struct{}{}
				urls = append(urls, r.URL)
				if added++; added == maxSearchCandidates {
					break
				}
			}
		}
	}
	return urls
}
