package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Rahil-Maniar/Autonomous-Discovery-Framework/internal/discovery"
)

func identityShuffle(n int, swap func(i, j int)) {}

func TestGenerateNoCredentials(t *testing.T) {
	t.Parallel()

	caller := NewCaller(nil, "primary", "secondary", zap.NewNop())
	_, err := caller.Generate(context.Background(), "prompt")
	require.ErrorIs(t, err, discovery.ErrNoCredentials)
}

func TestGenerateFirstPairWins(t *testing.T) {
	t.Parallel()

	var attempts []string
	caller := NewCaller([]string{"key-a", "key-b"}, "primary", "secondary", zap.NewNop(),
		WithShuffle(identityShuffle),
		WithAttempt(func(ctx context.Context, apiKey, model, prompt string) (string, error) {
			attempts = append(attempts, apiKey+"/"+model)
			return "generated query", nil
		}))

	out, err := caller.Generate(context.Background(), "prompt")
	require.NoError(t, err)
	require.Equal(t, "generated query", out)
	require.Equal(t, []string{"key-a/primary"}, attempts)
}

func TestGeneratePrimaryBeforeSecondaryPerCredential(t *testing.T) {
	t.Parallel()

	var attempts []string
	caller := NewCaller([]string{"key-a", "key-b"}, "primary", "secondary", zap.NewNop(),
		WithShuffle(identityShuffle),
		WithAttempt(func(ctx context.Context, apiKey, model, prompt string) (string, error) {
			attempts = append(attempts, apiKey+"/"+model)
			if apiKey == "key-b" && model == "secondary" {
				return "late win", nil
			}
			return "", errors.New("quota exceeded")
		}))

	out, err := caller.Generate(context.Background(), "prompt")
	require.NoError(t, err)
	require.Equal(t, "late win", out)
	require.Equal(t, []string{
		"key-a/primary", "key-a/secondary",
		"key-b/primary", "key-b/secondary",
	}, attempts)
}

func TestGenerateEmptyResponseCountsAsFailure(t *testing.T) {
	t.Parallel()

	calls := 0
	caller := NewCaller([]string{"key-a"}, "primary", "secondary", zap.NewNop(),
		WithShuffle(identityShuffle),
		WithAttempt(func(ctx context.Context, apiKey, model, prompt string) (string, error) {
			calls++
			return "   ", nil
		}))

	_, err := caller.Generate(context.Background(), "prompt")
	require.Error(t, err)
	require.Equal(t, 2, calls)
}

func TestGenerateExhaustedReturnsLastError(t *testing.T) {
	t.Parallel()

	caller := NewCaller([]string{"key-a"}, "primary", "", zap.NewNop(),
		WithShuffle(identityShuffle),
		WithAttempt(func(ctx context.Context, apiKey, model, prompt string) (string, error) {
			return "", errors.New("rate limited")
		}))

	_, err := caller.Generate(context.Background(), "prompt")
	require.Error(t, err)
	require.Contains(t, err.Error(), "rate limited")
}

func TestCleanJSONBlock(t *testing.T) {
	t.Parallel()

	require.Equal(t, `["a","b"]`, CleanJSONBlock("```json\n[\"a\",\"b\"]\n```"))
	require.Equal(t, `{"x":1}`, CleanJSONBlock(`{"x":1}`))
}
