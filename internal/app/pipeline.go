package app

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/johnconna/pyforce-evaluation-v2/internal/domain"
	"github.com/johnconna/pyforce-evaluation-v2/internal/infrastructure"
)

// Pipeline wires the resolve-fetch-retry pipeline together for one run.
type Pipeline struct {
	config   *domain.Config
	resolver domain.Resolver
	ledger   domain.FetchLedger // nil disables the persistent ledger
	logger   *zap.Logger
}

// NewPipeline assembles a pipeline. When resolver is nil the configured
// registry mirror client is used.
func NewPipeline(config *domain.Config, resolver domain.Resolver, ledger domain.FetchLedger, logger *zap.Logger) *Pipeline {
	if resolver == nil {
		resolver = infrastructure.NewMirrorClient(config.Registry, logger)
	}
	return &Pipeline{
		config:   config,
		resolver: resolver,
		ledger:   ledger,
		logger:   logger,
	}
}

// Run executes the full pipeline over names: dedup index build, first
// pass, retry rounds, report persistence. The only fatal error is an
// unusable output directory; per-package faults land in the results.
func (p *Pipeline) Run(ctx context.Context, manifestPath string, names []string) (*domain.Run, []domain.FetchResult, error) {
	outputDir := p.config.Download.OutputDir
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	index, err := domain.BuildDownloadedSetIndex(outputDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to scan output directory: %w", err)
	}
	p.logger.Info("Found already downloaded packages", zap.Int("count", index.Len()))

	worker := NewFetchWorker(p.resolver, index, p.config.Registry, outputDir, p.logger)
	coordinator := NewCoordinator(worker, p.config.Download, p.logger)
	retry := NewRetryCoordinator(coordinator, p.config.Retry, p.logger)

	run := domain.NewRun(manifestPath, outputDir, p.config.Download.Workers, p.config.Retry.Rounds)
	if p.ledger != nil {
		if err := p.ledger.CreateRun(run); err != nil {
			p.logger.Warn("Failed to record run in ledger", zap.Error(err))
		}
	}

	p.logger.Info("Starting download run",
		zap.String("run_id", run.ID),
		zap.Int("packages", len(names)),
		zap.Int("workers", p.config.Download.Workers))

	results := retry.Run(ctx, names)

	report := NewRunReport(outputDir, p.logger)
	stats, err := report.Write(run, results)
	if err != nil {
		p.logger.Error("Failed to persist run report", zap.Error(err))
	}
	report.LogSummary(stats)

	run.Finish(stats)
	if p.ledger != nil {
		records := make([]*domain.FetchRecord, 0, len(results))
		for _, result := range results {
			records = append(records, domain.NewFetchRecord(run.ID, result))
		}
		if err := p.ledger.SaveRecords(records); err != nil {
			p.logger.Warn("Failed to save records to ledger", zap.Error(err))
		}
		if err := p.ledger.FinishRun(run); err != nil {
			p.logger.Warn("Failed to finish run in ledger", zap.Error(err))
		}
	}

	return run, results, nil
}
