package domain

import (
	"time"

	"github.com/google/uuid"
)

// Run is one pipeline invocation recorded in the ledger.
type Run struct {
	ID          string     `json:"id" gorm:"primaryKey"`
	Manifest    string     `json:"manifest"`
	OutputDir   string     `json:"output_dir"`
	Workers     int        `json:"workers"`
	RetryRounds int        `json:"retry_rounds"`
	Total       int        `json:"total"`
	Successful  int        `json:"successful"`
	Skipped     int        `json:"skipped"`
	Failed      int        `json:"failed"`
	SuccessRate float64    `json:"success_rate"`
	TotalBytes  int64      `json:"total_size_bytes"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// NewRun creates a run record for a pipeline invocation.
func NewRun(manifest, outputDir string, workers, retryRounds int) *Run {
	return &Run{
		ID:          uuid.New().String(),
		Manifest:    manifest,
		OutputDir:   outputDir,
		Workers:     workers,
		RetryRounds: retryRounds,
		StartedAt:   time.Now(),
	}
}

// Finish stamps the run with its final statistics.
func (r *Run) Finish(stats RunStatistics) {
	now := time.Now()
	r.FinishedAt = &now
	r.Total = stats.Total
	r.Successful = stats.Successful
	r.Skipped = stats.Skipped
	r.Failed = stats.Failed
	r.SuccessRate = stats.SuccessRate
	r.TotalBytes = stats.TotalBytes
}

// FetchRecord is one terminal FetchResult persisted in the ledger.
type FetchRecord struct {
	ID        string      `json:"id" gorm:"primaryKey"`
	RunID     string      `json:"run_id" gorm:"index"`
	Name      string      `json:"name" gorm:"index"`
	Status    FetchStatus `json:"status" gorm:"index"`
	Reason    FailReason  `json:"reason,omitempty"`
	Filename  string      `json:"filename,omitempty"`
	Size      int64       `json:"size,omitempty"`
	URL       string      `json:"url,omitempty"`
	Round     int         `json:"round"`
	CreatedAt time.Time   `json:"created_at" gorm:"autoCreateTime"`
}

// NewFetchRecord converts a terminal FetchResult into a ledger record.
func NewFetchRecord(runID string, result FetchResult) *FetchRecord {
	return &FetchRecord{
		ID:       uuid.New().String(),
		RunID:    runID,
		Name:     result.Name,
		Status:   result.Status,
		Reason:   result.Reason,
		Filename: result.Filename,
		Size:     result.Size,
		URL:      result.URL,
		Round:    result.Round,
	}
}
