package app

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/johnconna/pyforce-evaluation-v2/internal/domain"
)

// fetcherFunc adapts a plain function to the Fetcher interface.
type fetcherFunc func(ctx context.Context, name string) domain.FetchResult

func (f fetcherFunc) Fetch(ctx context.Context, name string) domain.FetchResult {
	return f(ctx, name)
}

func testDownloadConfig(workers int) domain.DownloadConfig {
	return domain.DownloadConfig{
		Workers:       workers,
		ProgressEvery: 50,
		ProgressBar:   false,
	}
}

func TestCoordinator_OneResultPerName(t *testing.T) {
	fetch := fetcherFunc(func(ctx context.Context, name string) domain.FetchResult {
		return domain.SuccessResult(name, name+"-1.0.tar.gz", 1, "")
	})

	for _, workers := range []int{1, 3, 16} {
		names := make([]string, 40)
		for i := range names {
			names[i] = fmt.Sprintf("pkg%d", i)
		}

		c := NewCoordinator(fetch, testDownloadConfig(workers), zap.NewNop())
		results := c.Run(context.Background(), names)

		assert.Len(t, results, len(names), "workers=%d", workers)
		seen := make(map[string]bool)
		for _, r := range results {
			assert.False(t, seen[r.Name], "duplicate result for %s", r.Name)
			seen[r.Name] = true
		}
	}
}

func TestCoordinator_BoundsConcurrency(t *testing.T) {
	var inFlight, peak int64
	fetch := fetcherFunc(func(ctx context.Context, name string) domain.FetchResult {
		n := atomic.AddInt64(&inFlight, 1)
		for {
			p := atomic.LoadInt64(&peak)
			if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt64(&inFlight, -1)
		return domain.SuccessResult(name, "", 0, "")
	})

	c := NewCoordinator(fetch, testDownloadConfig(3), zap.NewNop())
	c.Run(context.Background(), []string{"a", "b", "c", "d", "e", "f", "g", "h"})

	assert.LessOrEqual(t, atomic.LoadInt64(&peak), int64(3))
}

func TestCoordinator_ItemDeadlineAbandons(t *testing.T) {
	var mu sync.Mutex
	cancelled := make(map[string]bool)

	fetch := fetcherFunc(func(ctx context.Context, name string) domain.FetchResult {
		if name == "stuck" {
			<-ctx.Done()
			mu.Lock()
			cancelled[name] = true
			mu.Unlock()
			return domain.SuccessResult(name, "", 0, "")
		}
		return domain.SuccessResult(name, "", 0, "")
	})

	config := testDownloadConfig(2)
	config.ItemTimeout = 20 * time.Millisecond
	c := NewCoordinator(fetch, config, zap.NewNop())

	results := c.Run(context.Background(), []string{"ok", "stuck"})

	assert.Len(t, results, 2)
	byName := make(map[string]domain.FetchResult)
	for _, r := range results {
		byName[r.Name] = r
	}
	assert.Equal(t, domain.StatusSuccess, byName["ok"].Status)
	assert.Equal(t, domain.StatusFailed, byName["stuck"].Status)
	assert.Equal(t, domain.ReasonProcessingError, byName["stuck"].Reason)

	// The abandoned item's context was cancelled for cleanup.
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return cancelled["stuck"]
	}, time.Second, 10*time.Millisecond)
}

func TestCoordinator_PanicBecomesProcessingError(t *testing.T) {
	fetch := fetcherFunc(func(ctx context.Context, name string) domain.FetchResult {
		panic("boom")
	})

	c := NewCoordinator(fetch, testDownloadConfig(2), zap.NewNop())
	results := c.Run(context.Background(), []string{"x"})

	assert.Len(t, results, 1)
	assert.Equal(t, domain.StatusFailed, results[0].Status)
	assert.Equal(t, domain.ReasonProcessingError, results[0].Reason)
}

func TestCoordinator_EmptyInput(t *testing.T) {
	c := NewCoordinator(fetcherFunc(func(ctx context.Context, name string) domain.FetchResult {
		t.Fatal("fetcher should not be called")
		return domain.FetchResult{}
	}), testDownloadConfig(2), zap.NewNop())

	assert.Empty(t, c.Run(context.Background(), nil))
}
