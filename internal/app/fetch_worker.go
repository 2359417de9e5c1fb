package app

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/johnconna/pyforce-evaluation-v2/internal/domain"
	"go.uber.org/zap"
)

// FetchWorker executes one package's full fetch: skip-check, resolve,
// select, stream-download, verify. A single FetchWorker is shared by all
// pool goroutines; its only mutable state is the downloaded-set index and
// the filename claim table, both serialized internally.
type FetchWorker struct {
	resolver    domain.Resolver
	index       *domain.DownloadedSetIndex
	claims      *filenameClaims
	outputDir   string
	registryURL string // scheme://host of the registry, for root-relative URLs
	filesURL    string // host for schemeless artifact URLs
	userAgent   string
	client      *http.Client
	logger      *zap.Logger
}

// NewFetchWorker creates a worker writing into outputDir.
func NewFetchWorker(
	resolver domain.Resolver,
	index *domain.DownloadedSetIndex,
	config domain.RegistryConfig,
	outputDir string,
	logger *zap.Logger,
) *FetchWorker {
	registryURL := ""
	if u, err := url.Parse(config.BaseURL); err == nil && u.Scheme != "" {
		registryURL = u.Scheme + "://" + u.Host
	}
	return &FetchWorker{
		resolver:    resolver,
		index:       index,
		claims:      newFilenameClaims(),
		outputDir:   outputDir,
		registryURL: registryURL,
		filesURL:    strings.TrimSuffix(config.FilesURL, "/"),
		userAgent:   config.UserAgent,
		client:      &http.Client{Timeout: config.DownloadTimeout},
		logger:      logger,
	}
}

// Fetch processes a single package and always returns a terminal result
// for this attempt; no fault escapes as an error.
func (w *FetchWorker) Fetch(ctx context.Context, name string) domain.FetchResult {
	if w.index.Contains(name) {
		w.logger.Info("Skipping already downloaded", zap.String("package", name))
		return domain.SkippedResult(name)
	}

	resolution := w.resolver.Resolve(ctx, name)
	if resolution.Artifact == nil {
		reason := resolution.Cause
		if reason == "" {
			reason = domain.ReasonNoDownloadURL
		}
		w.logger.Warn("No download URL found",
			zap.String("package", name),
			zap.String("reason", string(reason)))
		return domain.FailedResult(name, reason)
	}

	downloadURL := w.normalizeURL(resolution.Artifact.URL)
	filename := resolution.Artifact.Filename
	if filename == "" {
		filename = path.Base(mustParsePath(downloadURL))
	}
	filename = w.claims.claim(w.outputDir, filename)
	destPath := filepath.Join(w.outputDir, filename)

	w.logger.Info("Downloading package",
		zap.String("package", name),
		zap.String("filename", filename))

	written, reason := w.download(ctx, name, downloadURL, destPath, resolution.Artifact.DeclaredSize)
	if reason != "" {
		return domain.FailedResult(name, reason)
	}

	w.index.Add(name)
	w.logger.Info("Successfully downloaded",
		zap.String("package", name),
		zap.String("filename", filename),
		zap.Int64("bytes", written))
	return domain.SuccessResult(name, filename, written, downloadURL)
}

// download streams the artifact to destPath, counting bytes written. A
// declared-length mismatch deletes the partial file: a half-written
// artifact must never be recorded as present.
func (w *FetchWorker) download(ctx context.Context, name, downloadURL, destPath string, declaredSize int64) (int64, domain.FailReason) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		w.logger.Error("Invalid download URL",
			zap.String("package", name),
			zap.String("url", downloadURL),
			zap.Error(err))
		return 0, domain.ReasonNoDownloadURL
	}
	req.Header.Set("User-Agent", w.userAgent)

	resp, err := w.client.Do(req)
	if err != nil {
		reason := classifyTransportError(err)
		w.logger.Error("Download request failed",
			zap.String("package", name),
			zap.String("reason", string(reason)),
			zap.Error(err))
		return 0, reason
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		w.logger.Error("Unexpected download status",
			zap.String("package", name),
			zap.Int("status", resp.StatusCode))
		return 0, domain.ReasonNetworkError
	}

	// The transfer's own declared length wins; registry metadata fills in
	// when the response omits it.
	declared := declaredSize
	if resp.ContentLength > 0 {
		declared = resp.ContentLength
	}

	out, err := os.Create(destPath)
	if err != nil {
		w.logger.Error("Failed to create output file",
			zap.String("package", name),
			zap.String("path", destPath),
			zap.Error(err))
		return 0, domain.ReasonProcessingError
	}

	written, copyErr := io.Copy(out, resp.Body)
	closeErr := out.Close()

	if copyErr != nil {
		_ = os.Remove(destPath)
		reason := classifyTransportError(copyErr)
		// A stream cut short of the declared length is an incomplete
		// download, not a generic transport fault. Deadline and cancel
		// classifications still win.
		if errors.Is(copyErr, io.ErrUnexpectedEOF) ||
			(reason == domain.ReasonNetworkError && declared > 0 && written != declared) {
			reason = domain.ReasonIncompleteDownload
		}
		w.logger.Error("Download stream failed",
			zap.String("package", name),
			zap.Int64("written", written),
			zap.String("reason", string(reason)),
			zap.Error(copyErr))
		return 0, reason
	}
	if closeErr != nil {
		_ = os.Remove(destPath)
		w.logger.Error("Failed to finalize output file",
			zap.String("package", name),
			zap.Error(closeErr))
		return 0, domain.ReasonProcessingError
	}

	if declared > 0 && written != declared {
		_ = os.Remove(destPath)
		w.logger.Error("Download incomplete",
			zap.String("package", name),
			zap.Int64("written", written),
			zap.Int64("declared", declared))
		return 0, domain.ReasonIncompleteDownload
	}

	return written, ""
}

// normalizeURL expands scheme-relative and root-relative artifact URLs to
// absolute form before any transfer starts.
func (w *FetchWorker) normalizeURL(raw string) string {
	switch {
	case strings.HasPrefix(raw, "//"):
		return "https:" + raw
	case strings.HasPrefix(raw, "/"):
		return w.registryURL + raw
	case strings.HasPrefix(raw, "http://"), strings.HasPrefix(raw, "https://"):
		return raw
	default:
		return w.filesURL + "/" + raw
	}
}

func classifyTransportError(err error) domain.FailReason {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.ReasonTimeout
	}
	if errors.Is(err, context.Canceled) {
		return domain.ReasonProcessingError
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.ReasonTimeout
	}
	return domain.ReasonNetworkError
}

func mustParsePath(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil {
		return u.Path
	}
	return rawURL
}

// filenameClaims resolves collisions between distinct packages whose
// artifacts share a literal filename: the claim is taken under a lock
// before the first write, and colliding names get a numeric suffix.
type filenameClaims struct {
	mu    sync.Mutex
	taken map[string]struct{}
}

func newFilenameClaims() *filenameClaims {
	return &filenameClaims{taken: make(map[string]struct{})}
}

// claim returns a filename unique among this run's claims and the files
// already present under dir.
func (c *filenameClaims) claim(dir, filename string) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	candidate := filename
	for n := 1; ; n++ {
		if _, claimed := c.taken[candidate]; !claimed {
			// Only a successful stat means the name is taken on disk.
			// Any stat failure ends the search and lets the create
			// surface the real fault.
			if _, err := os.Stat(filepath.Join(dir, candidate)); err != nil {
				break
			}
		}
		candidate = withNumericSuffix(filename, n)
	}
	c.taken[candidate] = struct{}{}
	return candidate
}

// withNumericSuffix inserts a numeric suffix ahead of the archive suffix:
// "pkg-1.0.tar.gz" becomes "pkg-1.0.2.tar.gz" for n=2.
func withNumericSuffix(filename string, n int) string {
	for _, suffix := range domain.ArchiveSuffixes {
		if strings.HasSuffix(filename, suffix) {
			return strings.TrimSuffix(filename, suffix) + "." + strconv.Itoa(n) + suffix
		}
	}
	return filename + "." + strconv.Itoa(n)
}
