//go:build integration
// +build integration

package integration

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/johnconna/pyforce-evaluation-v2/internal/app"
	"github.com/johnconna/pyforce-evaluation-v2/internal/domain"
	"github.com/johnconna/pyforce-evaluation-v2/internal/infrastructure"
)

// TestPipeline_PersistsLedger drives the full pipeline against a local
// registry and checks that the run and its records land in the ledger.
func TestPipeline_PersistsLedger(t *testing.T) {
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
	mux.HandleFunc("/files/alpha-1.0.tar.gz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("alpha-bytes"))
	})
	server = httptest.NewServer(mux)
	defer server.Close()

	outputDir := t.TempDir()
	config := domain.DefaultConfig()
	config.Registry.BaseURL = server.URL + "/pypi"
	config.Registry.SimpleURL = server.URL + "/simple"
	config.Registry.FilesURL = server.URL
	config.Download.OutputDir = outputDir
	config.Download.Workers = 2
	config.Download.ProgressBar = false
	config.Retry.Rounds = 1
	config.Retry.Cooldown = time.Millisecond

	ledger, err := infrastructure.NewSQLiteFetchLedger(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	defer ledger.Close()

	pipeline := app.NewPipeline(config, nil, ledger, zap.NewNop())
	run, results, err := pipeline.Run(context.Background(), "packages.txt", []string{"alpha", "ghost"})
	require.NoError(t, err)
	require.Len(t, results, 2)

	records, err := ledger.FindByRun(run.ID)
	require.NoError(t, err)
	assert.Len(t, records, 2)

	runs, err := ledger.ListRuns(0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 1, runs[0].Successful)
	assert.Equal(t, 1, runs[0].Failed)
	assert.NotNil(t, runs[0].FinishedAt)

	names, err := ledger.LatestFailedNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"ghost"}, names)
}
