// Package extract implements the lead-extraction service: it asks a language
// model to pull company names out of a chunk of source text.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Rahil-Maniar/Autonomous-Discovery-Framework/internal/discovery"
	"github.com/Rahil-Maniar/Autonomous-Discovery-Framework/internal/llm"
)

// Service turns raw text chunks into candidate leads.
type Service struct {
	generator discovery.QueryGenerator
	logger    *zap.Logger
}

// NewService wires the generator and logger.
func NewService(generator discovery.QueryGenerator, logger *zap.Logger) (*Service, error) {
	if generator == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{generator: generator, logger: logger}, nil
}

// Extract returns the company names the model found in the chunk. An empty
// result is a normal outcome for content with no company mentions.
func (s *Service) Extract(ctx context.Context, textChunk string) ([]discovery.Lead, error) {
	if strings.TrimSpace(textChunk) == "" {
		return nil, nil
	}
	raw, err := s.generator.Generate(ctx, buildExtractionPrompt(textChunk))
	if err != nil {
		return nil, fmt.Errorf("generate extraction: %w", err)
	}
	leads, err := parseLeads(raw)
	if err != nil {
		return nil, err
	}
	return leads, nil
}

func buildExtractionPrompt(textChunk string) string {
	var b strings.Builder
	b.WriteString("Extract the names of companies mentioned in the text below. ")
	b.WriteString("Only include real, specific company names; skip products, people, and places.\n")
	b.WriteString("Respond with a JSON array of objects shaped like {\"company_name\": \"...\"} and nothing else. ")
	b.WriteString("Respond with [] if no companies are mentioned.\n\nTEXT:\n")
	b.WriteString(textChunk)
	return b.String()
}

func parseLeads(raw string) ([]discovery.Lead, error) {
	cleaned := llm.CleanJSONBlock(raw)

	var leads []discovery.Lead
	if err := json.Unmarshal([]byte(cleaned), &leads); err != nil {
		return nil, fmt.Errorf("%w: %v", discovery.ErrMalformedResponse, err)
	}
	out := leads[:0]
	for _, l := range leads {
		if strings.TrimSpace(l.CompanyName) != "" {
			out = append(out, l)
		}
	}
	return out, nil
}
