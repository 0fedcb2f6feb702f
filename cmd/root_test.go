package cmd

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dataDir, seed string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "crawler.yaml")
	body := `
run:
  data_dir: ` + dataDir + `
crawler:
  batch_size: 4
  timeout_seconds: 2
  seeds:
    - ` + seed + `
retry:
  max_attempts: 1
  backoff_min_ms: 1
  backoff_max_ms: 1
logging:
  development: false
  level: error
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCrawlThenExport(t *testing.T) {
	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html lang="en"><body>Tübingen old town</body></html>`))
	}))
	defer site.Close()

	dataDir := t.TempDir()
	cfgPath := writeConfig(t, dataDir, site.URL+"/")

	_, err := execute(t, "--config", cfgPath, "crawl", "--run-id", "cli")
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(dataDir, "mse_cli", "cli.csv"))

	out, err := execute(t, "--config", cfgPath, "export", "--run-id", "cli")
	require.NoError(t, err)
	require.Contains(t, out, "kept 1 of 1 records")
	require.FileExists(t, filepath.Join(dataDir, "mse_cli", "cli_corpus.csv"))
}

func TestExportRequiresRunID(t *testing.T) {
	cfgPath := writeConfig(t, t.TempDir(), "https://www.tuebingen.de/")

	_, err := execute(t, "--config", cfgPath, "export")
	require.ErrorContains(t, err, "--run-id or run.id is required")
}

func TestInvalidConfigFails(t *testing.T) {
	cfgPath := writeConfig(t, "", "https://www.tuebingen.de/")

	_, err := execute(t, "--config", cfgPath, "crawl")
	require.ErrorContains(t, err, "run.data_dir")
}
