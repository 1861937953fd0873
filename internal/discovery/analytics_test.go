package discovery

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRecordPatternCapsSequences(t *testing.T) {
	t.Parallel()

	var a Analytics
	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 150; i++ {
		a.RecordPattern(fmt.Sprintf("query %d", i), i%2 == 0, at)
	}

	require.Len(t, a.QueryPatterns, 100)
	require.Equal(t, "query 50", a.QueryPatterns[0].Query)
	require.Len(t, a.SuccessfulPatterns, 20)
	require.Len(t, a.FailedPatterns, 30)
	require.Equal(t, "query 149", a.FailedPatterns[len(a.FailedPatterns)-1])
}

func TestRecentSuccessfulReturnsTail(t *testing.T) {
	t.Parallel()

	a := Analytics{SuccessfulPatterns: []string{"a", "b", "c"}}
	require.Equal(t, []string{"b", "c"}, a.RecentSuccessful(2))
	require.Equal(t, []string{"a", "b", "c"}, a.RecentSuccessful(10))
	require.Nil(t, a.RecentFailed(5))
}
