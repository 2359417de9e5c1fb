package domain

// FetchStatus represents the terminal state of one package fetch
type FetchStatus string

const (
	StatusSuccess FetchStatus = "success"
	StatusSkipped FetchStatus = "skipped"
	StatusFailed  FetchStatus = "failed"
)

// FailReason classifies why a fetch did not produce a new artifact
type FailReason string

const (
	ReasonNotFound           FailReason = "not_found"           // metadata 404 under every strategy
	ReasonNoDownloadURL      FailReason = "no_download_url"     // metadata resolved but no usable artifact
	ReasonNetworkError       FailReason = "network_error"       // transport failure
	ReasonTimeout            FailReason = "timeout"             // request deadline exceeded
	ReasonIncompleteDownload FailReason = "incomplete_download" // byte count mismatch against declared length
	ReasonProcessingError    FailReason = "processing_error"    // unexpected fault or abandoned item
	ReasonAlreadyDownloaded  FailReason = "already_downloaded"  // non-error reason for skipped items
)

// Artifact distribution types as reported by the registry metadata.
const (
	PackageTypeSDist = "sdist"
	PackageTypeWheel = "bdist_wheel"
)

// PackageRequest names one package to fetch. One per input manifest row.
type PackageRequest struct {
	Name string
}

// ArtifactFile is one release file listed by the registry for a version.
type ArtifactFile struct {
	PackageType string `json:"packagetype"`
	Filename    string `json:"filename"`
	URL         string `json:"url"`
	Size        int64  `json:"size"`
}

// ResolvedArtifact is the single artifact chosen for a package.
// DeclaredSize is 0 when the registry did not report one.
type ResolvedArtifact struct {
	Name         string
	URL          string
	Filename     string
	DeclaredSize int64
}

// Resolution is the typed outcome of a resolve attempt. When Artifact is
// nil, Cause carries the reason the resolver came up empty.
type Resolution struct {
	Artifact *ResolvedArtifact
	Cause    FailReason
}

// FetchResult is the outcome of one pipeline pass over one package.
// Exactly one terminal FetchResult exists per input name.
type FetchResult struct {
	Name     string      `json:"name"`
	Status   FetchStatus `json:"status"`
	Reason   FailReason  `json:"reason,omitempty"`
	Filename string      `json:"filename,omitempty"`
	Size     int64       `json:"size,omitempty"`
	URL      string      `json:"url,omitempty"`
	Round    int         `json:"round,omitempty"`
}

// SuccessResult builds a success result for a completed download.
func SuccessResult(name, filename string, size int64, url string) FetchResult {
	return FetchResult{
		Name:     name,
		Status:   StatusSuccess,
		Filename: filename,
		Size:     size,
		URL:      url,
	}
}

// SkippedResult builds the result for a package already present on disk.
func SkippedResult(name string) FetchResult {
	return FetchResult{Name: name, Status: StatusSkipped, Reason: ReasonAlreadyDownloaded}
}

// FailedResult builds a failed result with the given reason.
func FailedResult(name string, reason FailReason) FetchResult {
	return FetchResult{Name: name, Status: StatusFailed, Reason: reason}
}

// IsFailed reports whether the result is a retryable failure.
func (r FetchResult) IsFailed() bool {
	return r.Status == StatusFailed
}

// RunStatistics summarizes a full result set. Derived, never stored
// incrementally.
type RunStatistics struct {
	Total        int     `json:"total"`
	Successful   int     `json:"successful"`
	Skipped      int     `json:"skipped"`
	Failed       int     `json:"failed"`
	SuccessRate  float64 `json:"success_rate"`
	TotalBytes   int64   `json:"total_size_bytes"`
	AverageBytes int64   `json:"average_size_bytes"`
}

// ComputeStatistics reduces a result set to summary statistics. The
// reduction is a plain sum over the set, so input order does not matter.
func ComputeStatistics(results []FetchResult) RunStatistics {
	stats := RunStatistics{Total: len(results)}
	for _, r := range results {
		switch r.Status {
		case StatusSuccess:
			stats.Successful++
			stats.TotalBytes += r.Size
		case StatusSkipped:
			stats.Skipped++
		case StatusFailed:
			stats.Failed++
		}
	}
	if stats.Total > 0 {
		stats.SuccessRate = float64(stats.Successful) / float64(stats.Total) * 100
	}
	if stats.Successful > 0 {
		stats.AverageBytes = stats.TotalBytes / int64(stats.Successful)
	}
	return stats
}
