package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/johnconna/pyforce-evaluation-v2/internal/domain"
)

// newRegistryFixture serves metadata and artifacts for a small registry:
// alpha resolves and downloads, beta is unknown, gamma resolves but its
// artifact endpoint refuses the transfer.
func newRegistryFixture(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	var server *httptest.Server
	mux.HandleFunc("/pypi/alpha/json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{
			"info": {"version": "1.0"},
			"releases": {"1.0": [
				{"packagetype": "sdist", "filename": "alpha-1.0.tar.gz", "url": "%s/files/alpha-1.0.tar.gz", "size": 11}
			]}
		}`, server.URL)
	})
	mux.HandleFunc("/pypi/gamma/json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{
			"info": {"version": "2.0"},
			"releases": {"2.0": [
				{"packagetype": "sdist", "filename": "gamma-2.0.tar.gz", "url": "%s/files/gamma-2.0.tar.gz", "size": 5}
			]}
		}`, server.URL)
	})
	mux.HandleFunc("/files/alpha-1.0.tar.gz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("alpha-bytes"))
	})
	mux.HandleFunc("/files/gamma-2.0.tar.gz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func fixtureConfig(serverURL, outputDir string) *domain.Config {
	config := domain.DefaultConfig()
	config.Registry.BaseURL = serverURL + "/pypi"
	config.Registry.SimpleURL = serverURL + "/simple"
	config.Registry.FilesURL = serverURL
	config.Download.OutputDir = outputDir
	config.Download.Workers = 2
	config.Download.ItemTimeout = 10 * time.Second
	config.Download.ProgressBar = false
	config.Retry.Rounds = 1
	config.Retry.Cooldown = time.Millisecond
	return config
}

func TestPipeline_EndToEnd(t *testing.T) {
	server := newRegistryFixture(t)
	outputDir := t.TempDir()

	// beta is already on disk, so it must be skipped without a resolve.
	require.NoError(t, os.WriteFile(
		filepath.Join(outputDir, "beta-0.9.tar.gz"), []byte("old"), 0644))

	pipeline := NewPipeline(fixtureConfig(server.URL, outputDir), nil, nil, zap.NewNop())

	run, results, err := pipeline.Run(context.Background(), "packages.txt", []string{"alpha", "beta", "gamma"})
	require.NoError(t, err)
	require.Len(t, results, 3)

	byName := make(map[string]domain.FetchResult)
	for _, r := range results {
		byName[r.Name] = r
	}

	assert.Equal(t, domain.StatusSuccess, byName["alpha"].Status)
	assert.Equal(t, "alpha-1.0.tar.gz", byName["alpha"].Filename)
	assert.Equal(t, int64(11), byName["alpha"].Size)

	assert.Equal(t, domain.StatusSkipped, byName["beta"].Status)
	assert.Equal(t, domain.ReasonAlreadyDownloaded, byName["beta"].Reason)

	assert.Equal(t, domain.StatusFailed, byName["gamma"].Status)
	assert.Equal(t, domain.ReasonNetworkError, byName["gamma"].Reason)
	assert.Equal(t, 1, byName["gamma"].Round)

	assert.FileExists(t, filepath.Join(outputDir, "alpha-1.0.tar.gz"))
	_, statErr := os.Stat(filepath.Join(outputDir, "gamma-2.0.tar.gz"))
	assert.True(t, os.IsNotExist(statErr))

	assert.Equal(t, 3, run.Total)
	assert.Equal(t, 1, run.Successful)
	assert.Equal(t, 1, run.Skipped)
	assert.Equal(t, 1, run.Failed)
	assert.InDelta(t, 33.3, run.SuccessRate, 0.1)
	assert.NotNil(t, run.FinishedAt)

	// Manifest and failed list are written next to the artifacts.
	data, err := os.ReadFile(filepath.Join(outputDir, ManifestFilename))
	require.NoError(t, err)
	var doc struct {
		Metadata struct {
			RunID string `json:"run_id"`
		} `json:"metadata"`
		Results []domain.FetchResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, run.ID, doc.Metadata.RunID)
	assert.Len(t, doc.Results, 3)

	failed, err := os.ReadFile(filepath.Join(outputDir, FailedListFilename))
	require.NoError(t, err)
	assert.Equal(t, "gamma\n", string(failed))
}

func TestPipeline_RerunSkipsDownloaded(t *testing.T) {
	server := newRegistryFixture(t)
	outputDir := t.TempDir()
	config := fixtureConfig(server.URL, outputDir)

	pipeline := NewPipeline(config, nil, nil, zap.NewNop())
	_, _, err := pipeline.Run(context.Background(), "packages.txt", []string{"alpha"})
	require.NoError(t, err)

	// A fresh pipeline rebuilds the index from the directory contents.
	rerun := NewPipeline(config, nil, nil, zap.NewNop())
	_, results, err := rerun.Run(context.Background(), "packages.txt", []string{"alpha"})
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, domain.StatusSkipped, results[0].Status)
}

func TestPipeline_UnusableOutputDirIsFatal(t *testing.T) {
	server := newRegistryFixture(t)

	blocked := filepath.Join(t.TempDir(), "blocked")
	require.NoError(t, os.WriteFile(blocked, []byte("x"), 0644))

	config := fixtureConfig(server.URL, filepath.Join(blocked, "out"))
	pipeline := NewPipeline(config, nil, nil, zap.NewNop())

	_, _, err := pipeline.Run(context.Background(), "packages.txt", []string{"alpha"})
	assert.Error(t, err)
}
