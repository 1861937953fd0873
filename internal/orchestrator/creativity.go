package orchestrator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Rahil-Maniar/Autonomous-Discovery-Framework/internal/discovery"
	"github.com/Rahil-Maniar/Autonomous-Discovery-Framework/internal/llm"
)

// maxCreativityLevel caps query-generation escalation.
const maxCreativityLevel = 5

// CreativityLevel maps a failure streak to an escalation tier. Every five
// consecutive barren cycles buys one more tier.
func CreativityLevel(consecutiveFailures int) int {
	level := consecutiveFailures/5 + 1
	if level > maxCreativityLevel {
		level = maxCreativityLevel
	}
	return level
}

var creativityGuidance = map[int]string{
	1: "Use conventional queries: job boards, careers pages, and hiring announcements for established companies.",
	2: "Favor recently funded startups, accelerator batches, and product launch announcements.",
	3: "Target niche industries and regional markets that mainstream job boards under-index.",
	4: "Use lateral angles: conference sponsor lists, open-source maintainers hiring, procurement notices.",
	5: "Be maximally inventive. Combine unusual verticals, non-English markets, and obscure community hubs.",
}

// BuildPrompt assembles the query-generation prompt for the given creativity
// level, steering the model away from recently failed patterns.
func BuildPrompt(level int, successful, failed []string) string {
	guidance, ok := creativityGuidance[level]
	if !ok {
		guidance = creativityGuidance[1]
	}

	var b strings.Builder
	b.WriteString("You generate web search queries that surface companies likely to have careers pages.\n")
	fmt.Fprintf(&b, "Creativity level %d of %d. %s\n", level, maxCreativityLevel, guidance)
	if len(successful) > 0 {
		b.WriteString("\nQueries that previously produced results:\n")
		for _, q := range successful {
			fmt.Fprintf(&b, "- %s\n", q)
		}
	}
	if len(failed) > 0 {
		b.WriteString("\nQueries that produced nothing, avoid these patterns:\n")
		for _, q := range failed {
			fmt.Fprintf(&b, "- %s\n", q)
		}
	}
	b.WriteString("\nRespond with a JSON array of exactly 3 distinct query strings and nothing else.")
	return b.String()
}

// ParseQueries decodes the model response into a non-empty list of queries.
// Anything unparseable is reported as ErrMalformedResponse so the cycle can
// fail cleanly and retry with a different generation.
func ParseQueries(raw string) ([]string, error) {
	cleaned := llm.CleanJSONBlock(raw)

	var queries []string
	if err := json.Unmarshal([]byte(cleaned), &queries); err != nil {
		return nil, fmt.Errorf("%w: %v", discovery.ErrMalformedResponse, err)
	}

	out := queries[:0]
	for _, q := range queries {
		if strings.TrimSpace(q) != "" {
			out = append(out, strings.TrimSpace(q))
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no queries in response", discovery.ErrMalformedResponse)
	}
	return out, nil
}
