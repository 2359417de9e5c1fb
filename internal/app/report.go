package app

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/johnconna/pyforce-evaluation-v2/internal/domain"
)

// Output artifacts written next to the downloaded files.
const (
	ManifestFilename   = "download_results.json"
	FailedListFilename = "failed_packages.txt"
)

// RunReport reduces the terminal result set into statistics and persists
// the audit trail: the JSON manifest and the plain failed-names list.
type RunReport struct {
	outputDir string
	logger    *zap.Logger
}

// NewRunReport creates a report writer for the output directory.
func NewRunReport(outputDir string, logger *zap.Logger) *RunReport {
	return &RunReport{outputDir: outputDir, logger: logger}
}

type manifestMetadata struct {
	RunID           string               `json:"run_id"`
	DownloadDate    string               `json:"download_date"`
	OutputDirectory string               `json:"output_directory"`
	Workers         int                  `json:"workers"`
	RetryRounds     int                  `json:"retry_rounds"`
	DurationSeconds float64              `json:"duration_seconds"`
	Statistics      domain.RunStatistics `json:"statistics"`
}

type manifest struct {
	Metadata manifestMetadata     `json:"metadata"`
	Results  []domain.FetchResult `json:"results"`
}

// Write computes statistics over the terminal results and persists the
// manifest and the failed list. The statistics reduction is a sum over
// the set, so the non-deterministic completion order does not matter.
func (rr *RunReport) Write(run *domain.Run, results []domain.FetchResult) (domain.RunStatistics, error) {
	stats := domain.ComputeStatistics(results)

	finished := time.Now()
	doc := manifest{
		Metadata: manifestMetadata{
			RunID:           run.ID,
			DownloadDate:    finished.Format("2006-01-02 15:04:05"),
			OutputDirectory: rr.outputDir,
			Workers:         run.Workers,
			RetryRounds:     run.RetryRounds,
			DurationSeconds: finished.Sub(run.StartedAt).Seconds(),
			Statistics:      stats,
		},
		Results: results,
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return stats, fmt.Errorf("failed to encode manifest: %w", err)
	}
	manifestPath := filepath.Join(rr.outputDir, ManifestFilename)
	if err := os.WriteFile(manifestPath, data, 0644); err != nil {
		return stats, fmt.Errorf("failed to write manifest: %w", err)
	}
	rr.logger.Info("Results saved", zap.String("path", manifestPath))

	var failed []string
	for _, r := range results {
		if r.IsFailed() {
			failed = append(failed, r.Name)
		}
	}
	failedPath := filepath.Join(rr.outputDir, FailedListFilename)
	content := ""
	if len(failed) > 0 {
		content = strings.Join(failed, "\n") + "\n"
	}
	if err := os.WriteFile(failedPath, []byte(content), 0644); err != nil {
		return stats, fmt.Errorf("failed to write failed list: %w", err)
	}
	if len(failed) > 0 {
		rr.logger.Info("Failed packages saved",
			zap.String("path", failedPath),
			zap.Int("count", len(failed)))
	}

	return stats, nil
}

// LogSummary logs the final human-readable summary for a run.
func (rr *RunReport) LogSummary(stats domain.RunStatistics) {
	rr.logger.Info("Download summary",
		zap.Int("total", stats.Total),
		zap.Int("successful", stats.Successful),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed),
		zap.String("success_rate", fmt.Sprintf("%.1f%%", stats.SuccessRate)),
		zap.String("total_size", fmt.Sprintf("%.2f MB", float64(stats.TotalBytes)/1024/1024)),
		zap.String("average_size", fmt.Sprintf("%.2f MB", float64(stats.AverageBytes)/1024/1024)))
}
