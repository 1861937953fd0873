package discovery

import "time"

// Bounded-document capacities. Oldest entries are evicted first.
const (
	PromptHistoryCap     = 20
	queryPatternCap      = 100
	successfulPatternCap = 20
	failedPatternCap     = 30
)

// RecordPattern logs a discovery query outcome, keeping every bounded
// sequence within its capacity.
func (a *Analytics) RecordPattern(query string, succeeded bool, at time.Time) {
	a.QueryPatterns = append(a.QueryPatterns, QueryPattern{
		Query:     query,
		Succeeded: succeeded,
		At:        at,
	})
	a.QueryPatterns = trimOldest(a.QueryPatterns, queryPatternCap)

	if succeeded {
		a.SuccessfulPatterns = append(a.SuccessfulPatterns, query)
		a.SuccessfulPatterns = trimOldest(a.SuccessfulPatterns, successfulPatternCap)
		return
	}
	a.FailedPatterns = append(a.FailedPatterns, query)
	a.FailedPatterns = trimOldest(a.FailedPatterns, failedPatternCap)
}

// RecentSuccessful returns up to n of the most recent successful patterns.
func (a Analytics) RecentSuccessful(n int) []string {
	return tail(a.SuccessfulPatterns, n)
}

// RecentFailed returns up to n of the most recent failed patterns.
func (a Analytics) RecentFailed(n int) []string {
	return tail(a.FailedPatterns, n)
}

func trimOldest[T any](items []T, cap int) []T {
	if len(items) <= cap {
		return items
	}
	return items[len(items)-cap:]
}

func tail(items []string, n int) []string {
	if n <= 0 || len(items) == 0 {
		return nil
	}
	if len(items) <= n {
		return append([]string(nil), items...)
	}
	return append([]string(nil), items[len(items)-n:]...)
}
