package app

import (
	"context"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/johnconna/pyforce-evaluation-v2/internal/domain"
)

// Fetcher is the per-package operation the coordinator dispatches.
type Fetcher interface {
	Fetch(ctx context.Context, name string) domain.FetchResult
}

// Coordinator dispatches a Fetcher over an input list on a bounded pool.
// Every submitted name produces exactly one result; results are collected
// in completion order.
type Coordinator struct {
	fetcher       Fetcher
	workers       int
	itemTimeout   time.Duration
	progressEvery int
	progressBar   bool
	logger        *zap.Logger
}

// NewCoordinator creates a coordinator from the download configuration.
func NewCoordinator(fetcher Fetcher, config domain.DownloadConfig, logger *zap.Logger) *Coordinator {
	workers := config.Workers
	if workers < 1 {
		workers = 1
	}
	progressEvery := config.ProgressEvery
	if progressEvery < 1 {
		progressEvery = 50
	}
	return &Coordinator{
		fetcher:       fetcher,
		workers:       workers,
		itemTimeout:   config.ItemTimeout,
		progressEvery: progressEvery,
		progressBar:   config.ProgressBar,
		logger:        logger,
	}
}

// Run processes every name once and returns one result per name, in
// completion order. A name whose item deadline expires is abandoned and
// recorded as failed without blocking the remaining items.
func (c *Coordinator) Run(ctx context.Context, names []string) []domain.FetchResult {
	total := len(names)
	if total == 0 {
		return nil
	}

	c.logger.Info("Dispatching packages",
		zap.Int("total", total),
		zap.Int("workers", c.workers))

	resultCh := make(chan domain.FetchResult)
	sem := make(chan struct{}, c.workers)
	var wg sync.WaitGroup

	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				resultCh <- domain.FailedResult(name, domain.ReasonProcessingError)
				return
			}
			defer func() { <-sem }()
			resultCh <- c.runOne(ctx, name)
		}(name)
	}

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	var bar *progressbar.ProgressBar
	if c.progressBar {
		bar = progressbar.NewOptions(total,
			progressbar.OptionSetDescription("downloading"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionThrottle(100*time.Millisecond),
		)
	}

	start := time.Now()
	results := make([]domain.FetchResult, 0, total)
	completed, succeeded, failed := 0, 0, 0

	for result := range resultCh {
		results = append(results, result)
		completed++
		switch result.Status {
		case domain.StatusSuccess:
			succeeded++
		case domain.StatusFailed:
			failed++
		}
		if bar != nil {
			_ = bar.Add(1)
		}
		if completed%c.progressEvery == 0 || completed == total {
			c.logger.Info("Progress",
				zap.Int("completed", completed),
				zap.Int("total", total),
				zap.Int("success", succeeded),
				zap.Int("failed", failed),
				zap.Duration("elapsed", time.Since(start).Round(time.Second)))
		}
	}

	return results
}

// runOne supervises a single item under the per-item deadline. The inner
// fetch runs on its own goroutine; if the deadline fires first, the item's
// context is cancelled (best-effort cleanup of any in-flight transfer) and
// the item is recorded as failed while its goroutine winds down alone.
func (c *Coordinator) runOne(ctx context.Context, name string) domain.FetchResult {
	itemCtx := ctx
	cancel := context.CancelFunc(func() {})
	if c.itemTimeout > 0 {
		itemCtx, cancel = context.WithTimeout(ctx, c.itemTimeout)
	}
	defer cancel()

	done := make(chan domain.FetchResult, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				c.logger.Error("Fetch panicked",
					zap.String("package", name),
					zap.Any("panic", p))
				done <- domain.FailedResult(name, domain.ReasonProcessingError)
			}
		}()
		done <- c.fetcher.Fetch(itemCtx, name)
	}()

	select {
	case result := <-done:
		return result
	case <-itemCtx.Done():
		c.logger.Error("Abandoning package after item deadline",
			zap.String("package", name),
			zap.Duration("deadline", c.itemTimeout))
		return domain.FailedResult(name, domain.ReasonProcessingError)
	}
}
