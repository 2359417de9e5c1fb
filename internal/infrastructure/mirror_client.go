package infrastructure

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/johnconna/pyforce-evaluation-v2/internal/domain"
	"go.uber.org/zap"
)

// anchorRE matches anchor hrefs on the registry's plain file-listing page.
var anchorRE = regexp.MustCompile(`<a[^>]*href="([^"]+)"`)

// MirrorClient resolves a package name to one download URL against a PyPI
// compatible registry. It tries the structured JSON metadata endpoint
// first and falls back to scraping the simple file-listing page. Faults
// never escape: they are logged with a cause tag and folded into the
// Resolution's Cause.
type MirrorClient struct {
	baseURL   string
	simpleURL string
	client    *http.Client
	logger    *zap.Logger
}

// NewMirrorClient creates a resolver for the configured registry.
func NewMirrorClient(config domain.RegistryConfig, logger *zap.Logger) *MirrorClient {
	return &MirrorClient{
		baseURL:   strings.TrimSuffix(config.BaseURL, "/"),
		simpleURL: strings.TrimSuffix(config.SimpleURL, "/"),
		client:    &http.Client{Timeout: config.RequestTimeout},
		logger:    logger,
	}
}

var _ domain.Resolver = (*MirrorClient)(nil)

// Resolve tries the JSON metadata strategy, then the file-listing scrape.
// The fallback runs only when the primary yields no artifact.
func (c *MirrorClient) Resolve(ctx context.Context, name string) domain.Resolution {
	artifact, primaryCause := c.resolveMetadata(ctx, name)
	if artifact != nil {
		return domain.Resolution{Artifact: artifact}
	}

	c.logger.Debug("metadata strategy yielded no artifact, trying file listing",
		zap.String("package", name),
		zap.String("cause", string(primaryCause)))

	artifact, fallbackCause := c.resolveListing(ctx, name)
	if artifact != nil {
		return domain.Resolution{Artifact: artifact}
	}

	return domain.Resolution{Cause: combineCauses(primaryCause, fallbackCause)}
}

// metadataResponse is the subset of the registry metadata document the
// resolver reads.
type metadataResponse struct {
	Info struct {
		Version string `json:"version"`
	} `json:"info"`
	Releases map[string][]domain.ArtifactFile `json:"releases"`
}

func (c *MirrorClient) resolveMetadata(ctx context.Context, name string) (*domain.ResolvedArtifact, domain.FailReason) {
	endpoint := c.baseURL + "/" + url.PathEscape(name) + "/json"

	body, cause := c.get(ctx, name, endpoint, "metadata")
	if body == nil {
		return nil, cause
	}
	defer body.Close()

	var doc metadataResponse
	if err := json.NewDecoder(body).Decode(&doc); err != nil {
		c.logger.Warn("Malformed metadata document",
			zap.String("package", name),
			zap.Error(err))
		return nil, domain.ReasonNoDownloadURL
	}

	files := doc.Releases[doc.Info.Version]
	if artifact := domain.ChooseArtifact(name, files); artifact != nil {
		return artifact, ""
	}

	c.logger.Warn("No usable release files in metadata",
		zap.String("package", name),
		zap.String("version", doc.Info.Version))
	return nil, domain.ReasonNoDownloadURL
}

func (c *MirrorClient) resolveListing(ctx context.Context, name string) (*domain.ResolvedArtifact, domain.FailReason) {
	endpoint := c.simpleURL + "/" + url.PathEscape(name) + "/"

	body, cause := c.get(ctx, name, endpoint, "file listing")
	if body == nil {
		return nil, cause
	}
	defer body.Close()

	page, err := io.ReadAll(body)
	if err != nil {
		c.logger.Warn("Failed to read file listing page",
			zap.String("package", name),
			zap.Error(err))
		return nil, domain.ReasonNetworkError
	}

	candidates := extractListingCandidates(string(page))
	if artifact := domain.ChooseArtifact(name, candidates); artifact != nil {
		return artifact, ""
	}

	c.logger.Warn("No archive links on file listing page", zap.String("package", name))
	return nil, domain.ReasonNoDownloadURL
}

// get performs one registry request and maps the response to a body or a
// no-artifact cause. strategy is only used for log context.
func (c *MirrorClient) get(ctx context.Context, name, endpoint, strategy string) (io.ReadCloser, domain.FailReason) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		c.logger.Warn("Failed to build registry request",
			zap.String("package", name),
			zap.String("strategy", strategy),
			zap.Error(err))
		return nil, domain.ReasonNetworkError
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("Registry request failed",
			zap.String("package", name),
			zap.String("strategy", strategy),
			zap.Error(err))
		return nil, domain.ReasonNetworkError
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return resp.Body, ""
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		c.logger.Warn("Package not found on registry",
			zap.String("package", name),
			zap.String("strategy", strategy))
		return nil, domain.ReasonNotFound
	default:
		resp.Body.Close()
		c.logger.Warn("Unexpected registry status",
			zap.String("package", name),
			zap.String("strategy", strategy),
			zap.Int("status", resp.StatusCode))
		return nil, domain.ReasonNetworkError
	}
}

// extractListingCandidates pulls archive links out of the listing HTML.
// Distribution type is inferred from the filename suffix so the same
// selection precedence applies as for structured metadata.
func extractListingCandidates(page string) []domain.ArtifactFile {
	var candidates []domain.ArtifactFile
	for _, m := range anchorRE.FindAllStringSubmatch(page, -1) {
		href := m[1]
		// Listing links carry a hash fragment after the filename.
		link := href
		if i := strings.Index(link, "#"); i >= 0 {
			link = link[:i]
		}

		var packageType string
		switch {
		case strings.HasSuffix(link, ".tar.gz"), strings.HasSuffix(link, ".zip"):
			packageType = domain.PackageTypeSDist
		case strings.HasSuffix(link, ".whl"):
			packageType = domain.PackageTypeWheel
		default:
			continue
		}

		candidates = append(candidates, domain.ArtifactFile{
			PackageType: packageType,
			Filename:    path.Base(link),
			URL:         link,
		})
	}
	return candidates
}

// combineCauses folds the two strategies' no-artifact causes into one.
// Metadata that resolved but listed nothing usable outranks a not-found,
// and not_found requires both strategies to have seen a 404.
func combineCauses(primary, fallback domain.FailReason) domain.FailReason {
	if primary == domain.ReasonNoDownloadURL || fallback == domain.ReasonNoDownloadURL {
		return domain.ReasonNoDownloadURL
	}
	if primary == domain.ReasonNotFound && fallback == domain.ReasonNotFound {
		return domain.ReasonNotFound
	}
	return domain.ReasonNetworkError
}
