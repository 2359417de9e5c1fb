package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/johnconna/pyforce-evaluation-v2/internal/domain"
)

// RetryCoordinator re-drives the failed subset of a pass across bounded
// rounds. A name that ever reaches a non-failed state is never
// resubmitted, so the still-failing set can only shrink round over round.
type RetryCoordinator struct {
	coordinator *Coordinator
	rounds      int
	cooldown    time.Duration
	logger      *zap.Logger
}

// NewRetryCoordinator creates a retry coordinator around a pool coordinator.
func NewRetryCoordinator(coordinator *Coordinator, config domain.RetryConfig, logger *zap.Logger) *RetryCoordinator {
	return &RetryCoordinator{
		coordinator: coordinator,
		rounds:      config.Rounds,
		cooldown:    config.Cooldown,
		logger:      logger,
	}
}

// Run executes the first full pass and up to the configured retry rounds,
// returning exactly one terminal result per input name, in input order.
func (rc *RetryCoordinator) Run(ctx context.Context, names []string) []domain.FetchResult {
	terminal := make(map[string]domain.FetchResult, len(names))

	first := rc.coordinator.Run(ctx, names)
	for _, result := range first {
		terminal[result.Name] = result
	}

	failed := failedNames(first)
	for round := 1; round <= rc.rounds && len(failed) > 0 && ctx.Err() == nil; round++ {
		rc.logger.Info("Cooling down before retry round",
			zap.Int("round", round),
			zap.Int("remaining", len(failed)),
			zap.Duration("cooldown", rc.cooldown))

		select {
		case <-time.After(rc.cooldown):
		case <-ctx.Done():
			return inInputOrder(terminal, names)
		}

		results := rc.coordinator.Run(ctx, failed)
		for _, result := range results {
			result.Round = round
			terminal[result.Name] = result
		}
		failed = failedNames(results)
	}

	if len(failed) > 0 {
		rc.logger.Warn("Packages still failing after all retry rounds",
			zap.Int("count", len(failed)))
	}

	return inInputOrder(terminal, names)
}

func inInputOrder(terminal map[string]domain.FetchResult, names []string) []domain.FetchResult {
	out := make([]domain.FetchResult, 0, len(names))
	for _, name := range names {
		out = append(out, terminal[name])
	}
	return out
}

// failedNames collects the distinct names of failed results, preserving
// completion order.
func failedNames(results []domain.FetchResult) []string {
	seen := make(map[string]bool)
	var names []string
	for _, result := range results {
		if result.IsFailed() && !seen[result.Name] {
			seen[result.Name] = true
			names = append(names, result.Name)
		}
	}
	return names
}
