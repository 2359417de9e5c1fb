package domain

// FetchLedger defines the interface for run and result persistence
type FetchLedger interface {
	// CreateRun records the start of a pipeline run
	CreateRun(run *Run) error

	// FinishRun updates a run with its final statistics
	FinishRun(run *Run) error

	// SaveRecords persists terminal fetch results for a run
	SaveRecords(records []*FetchRecord) error

	// FindByStatus finds records by status, newest first
	FindByStatus(status FetchStatus) ([]*FetchRecord, error)

	// FindByRun finds all records belonging to a run
	FindByRun(runID string) ([]*FetchRecord, error)

	// ListRuns lists runs, newest first, up to limit (0 = all)
	ListRuns(limit int) ([]*Run, error)

	// LatestFailedNames returns the package names that failed in the most
	// recent finished run
	LatestFailedNames() ([]string, error)

	// GetStats returns aggregate statistics across all recorded runs
	GetStats() (*LedgerStats, error)
}

// LedgerStats represents aggregate ledger statistics
type LedgerStats struct {
	Runs       int64 `json:"runs"`
	Total      int64 `json:"total"`
	Successful int64 `json:"successful"`
	Skipped    int64 `json:"skipped"`
	Failed     int64 `json:"failed"`
	TotalBytes int64 `json:"total_size_bytes"`
}
