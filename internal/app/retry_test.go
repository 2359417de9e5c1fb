package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/johnconna/pyforce-evaluation-v2/internal/domain"
)

// flakyFetcher fails each name until its configured attempt count is
// reached, then succeeds.
type flakyFetcher struct {
	mu        sync.Mutex
	attempts  map[string]int
	succeedOn map[string]int // attempt number that succeeds; 0 means never
}

func newFlakyFetcher(succeedOn map[string]int) *flakyFetcher {
	return &flakyFetcher{attempts: make(map[string]int), succeedOn: succeedOn}
}

func (f *flakyFetcher) Fetch(ctx context.Context, name string) domain.FetchResult {
	f.mu.Lock()
	f.attempts[name]++
	attempt := f.attempts[name]
	target := f.succeedOn[name]
	f.mu.Unlock()

	if target > 0 && attempt >= target {
		return domain.SuccessResult(name, name+"-1.0.tar.gz", 10, "")
	}
	return domain.FailedResult(name, domain.ReasonNetworkError)
}

func (f *flakyFetcher) attemptCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts[name]
}

func newRetryCoordinator(fetch Fetcher, rounds int) *RetryCoordinator {
	c := NewCoordinator(fetch, testDownloadConfig(2), zap.NewNop())
	return NewRetryCoordinator(c, domain.RetryConfig{
		Rounds:   rounds,
		Cooldown: time.Millisecond,
	}, zap.NewNop())
}

func TestRetryCoordinator_RecoversWithinRounds(t *testing.T) {
	fetch := newFlakyFetcher(map[string]int{
		"steady": 1,
		"flaky":  2,
		"broken": 0,
	})
	rc := newRetryCoordinator(fetch, 2)

	results := rc.Run(context.Background(), []string{"steady", "flaky", "broken"})

	assert.Len(t, results, 3)
	byName := make(map[string]domain.FetchResult)
	for _, r := range results {
		byName[r.Name] = r
	}

	assert.Equal(t, domain.StatusSuccess, byName["steady"].Status)
	assert.Equal(t, 0, byName["steady"].Round)

	assert.Equal(t, domain.StatusSuccess, byName["flaky"].Status)
	assert.Equal(t, 1, byName["flaky"].Round)

	assert.Equal(t, domain.StatusFailed, byName["broken"].Status)
	assert.Equal(t, 2, byName["broken"].Round)
}

func TestRetryCoordinator_SuccessIsNeverResubmitted(t *testing.T) {
	fetch := newFlakyFetcher(map[string]int{
		"steady": 1,
		"broken": 0,
	})
	rc := newRetryCoordinator(fetch, 3)

	rc.Run(context.Background(), []string{"steady", "broken"})

	assert.Equal(t, 1, fetch.attemptCount("steady"))
	assert.Equal(t, 4, fetch.attemptCount("broken"))
}

func TestRetryCoordinator_ResultsInInputOrder(t *testing.T) {
	fetch := newFlakyFetcher(map[string]int{"a": 1, "b": 2, "c": 1, "d": 0})
	rc := newRetryCoordinator(fetch, 1)

	names := []string{"d", "b", "a", "c"}
	results := rc.Run(context.Background(), names)

	got := make([]string, len(results))
	for i, r := range results {
		got[i] = r.Name
	}
	assert.Equal(t, names, got)
}

func TestRetryCoordinator_ZeroRounds(t *testing.T) {
	fetch := newFlakyFetcher(map[string]int{"broken": 0})
	rc := newRetryCoordinator(fetch, 0)

	results := rc.Run(context.Background(), []string{"broken"})

	assert.Len(t, results, 1)
	assert.Equal(t, domain.StatusFailed, results[0].Status)
	assert.Equal(t, 1, fetch.attemptCount("broken"))
}

func TestRetryCoordinator_StopsWhenNothingFails(t *testing.T) {
	fetch := newFlakyFetcher(map[string]int{"a": 1, "b": 1})
	rc := newRetryCoordinator(fetch, 5)

	results := rc.Run(context.Background(), []string{"a", "b"})

	assert.Len(t, results, 2)
	assert.Equal(t, 1, fetch.attemptCount("a"))
	assert.Equal(t, 1, fetch.attemptCount("b"))
}

func TestFailedNames_DedupesPreservingOrder(t *testing.T) {
	results := []domain.FetchResult{
		domain.FailedResult("b", domain.ReasonTimeout),
		domain.SuccessResult("a", "", 0, ""),
		domain.FailedResult("c", domain.ReasonNetworkError),
		domain.FailedResult("b", domain.ReasonNetworkError),
	}

	assert.Equal(t, []string{"b", "c"}, failedNames(results))
}
