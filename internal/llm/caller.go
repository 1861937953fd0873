// Package llm generates text with Gemini behind a credential-rotation layer.
// Free-tier quota is per key and per model, so every request walks a shuffled
// key order and tries the primary model before the cheaper fallback.
package llm

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/Rahil-Maniar/Autonomous-Discovery-Framework/internal/discovery"
)

// AttemptFunc performs one generation attempt with a specific credential and
// model. Returning an empty string without error counts as a failed attempt.
type AttemptFunc func(ctx context.Context, apiKey, model, prompt string) (string, error)

// Caller implements discovery.QueryGenerator over a set of API keys.
type Caller struct {
	keys      []string
	primary   string
	secondary string
	attempt   AttemptFunc
	shuffle   func(n int, swap func(i, j int))
	logger    *zap.Logger
}

// Option customizes a Caller.
type Option func(*Caller)

// WithAttempt replaces the generation attempt (used by tests).
func WithAttempt(fn AttemptFunc) Option {
	return func(c *Caller) {
		c.attempt = fn
	}
}

// WithShuffle replaces the key-order shuffle (used by tests).
func WithShuffle(fn func(n int, swap func(i, j int))) Option {
	return func(c *Caller) {
		c.shuffle = fn
	}
}

// NewCaller builds a Caller over the given keys and model pair.
func NewCaller(keys []string, primaryModel, secondaryModel string, logger *zap.Logger, opts ...Option) *Caller {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Caller{
		keys:      keys,
		primary:   primaryModel,
		secondary: secondaryModel,
		attempt:   generateWithGemini,
		shuffle:   rand.Shuffle,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Generate tries every credential in randomized order, primary model first,
// then the secondary. The first non-empty response wins. Exhausting all pairs
// returns the last attempt error, or ErrNoCredentials when no key is set.
func (c *Caller) Generate(ctx context.Context, prompt string) (string, error) {
	if len(c.keys) == 0 {
		return "", discovery.ErrNoCredentials
	}

	order := make([]int, len(c.keys))
	for i := range order {
		order[i] = i
	}
	c.shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})

	models := []string{c.primary}
	if c.secondary != "" && c.secondary != c.primary {
		models = append(models, c.secondary)
	}

	var lastErr error
	for _, idx := range order {
		for _, model := range models {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			text, err := c.attempt(ctx, c.keys[idx], model, prompt)
			if err != nil {
				lastErr = err
				c.logger.Warn("generation attempt failed",
					zap.Int("credential", idx),
					zap.String("model", model),
					zap.Error(err))
				continue
			}
			if strings.TrimSpace(text) == "" {
				lastErr = fmt.Errorf("model %s returned empty response", model)
				continue
			}
			return text, nil
		}
	}
	return "", fmt.Errorf("all credential/model pairs exhausted: %w", lastErr)
}

func generateWithGemini(ctx context.Context, apiKey, model, prompt string) (string, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return "", fmt.Errorf("create genai client: %w", err)
	}
	defer client.Close()

	resp, err := client.GenerativeModel(model).GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	return textFromResponse(resp)
}

func textFromResponse(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in response")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("no content in response")
	}
	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("no text parts in response")
	}
	return strings.Join(parts, ""), nil
}

// CleanJSONBlock strips markdown code fences the model tends to wrap JSON in.
func CleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
