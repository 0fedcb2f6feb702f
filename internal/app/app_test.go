package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/FlorianSp2000/tuebingen-search-engine/internal/config"
	"github.com/FlorianSp2000/tuebingen-search-engine/internal/frontier"
	localstorage "github.com/FlorianSp2000/tuebingen-search-engine/internal/storage/local"
	"github.com/FlorianSp2000/tuebingen-search-engine/internal/urlnorm"
)

type noSleep struct{}

func (noSleep) Sleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

func newSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html lang="de"><body>Willkommen in Tübingen <a href="/a">mehr</a></body></html>`))
	})
	mux.HandleFunc("/a", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html lang="en"><body>Visit Tuebingen</body></html>`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(dataDir string, seeds ...string) config.Config {
	return config.Config{
		Run: config.RunConfig{DataDir: dataDir},
		Crawler: config.CrawlerConfig{
			BatchSize:      4,
			MaxDepth:       10,
			PerDomainLimit: 0,
			TimeoutSeconds: 5,
			MaxFilesize:    1 << 20,
			Seeds:          seeds,
			Headers:        config.DefaultHeaders(),
			DeniedDomains:  urlnorm.DefaultDenyRules(),
		},
		Classifier: config.ClassifierConfig{
			TopicPattern:   `(?i)t(ü|ue|u)binge[nr]`,
			EnglishPattern: `(?i)^en([-_](us|gb|de))?$`,
		},
		Retry:    config.RetryConfig{MaxAttempts: 2, BackoffMinMs: 1, BackoffMaxMs: 2},
		Storage:  config.StorageConfig{Backend: config.StorageLocal},
		Snapshot: config.SnapshotConfig{Backend: config.SnapshotCSV},
	}
}

func TestRunID(t *testing.T) {
	t.Parallel()

	now := time.Date(2023, 7, 1, 12, 30, 5, 0, time.UTC)
	assert.Equal(t, "flag", RunID(" flag ", "cfg", now))
	assert.Equal(t, "cfg", RunID("", "cfg", now))
	assert.Equal(t, "20230701123005", RunID("", "", now))
}

func TestAppCrawlsAndResumes(t *testing.T) {
	t.Parallel()

	site := newSite(t)
	dataDir := t.TempDir()
	cfg := testConfig(dataDir, site.URL+"/")
	ctx := context.Background()

	a, err := New(ctx, cfg, "run1", zap.NewNop(), WithRegisterer(prometheus.NewRegistry()), WithSleeper(noSleep{}))
	require.NoError(t, err)
	require.False(t, a.Resumed())
	require.NoError(t, a.Run(ctx))
	stats := a.Stats()
	require.NoError(t, a.Close(ctx))

	assert.Equal(t, "run1", stats.RunID)
	assert.Equal(t, 3, stats.Counts.Total)
	assert.Equal(t, 2, stats.Counts.Completed)
	assert.Equal(t, 1, stats.Counts.Failed, "the /en variant does not exist")
	assert.Equal(t, 1, stats.Counts.English)
	assert.False(t, stats.Running)

	layout := a.Layout()
	assert.FileExists(t, layout.SnapshotPath())
	pages, err := os.ReadDir(filepath.Join(layout.RunDir(), layout.PageDir()))
	require.NoError(t, err)
	assert.Len(t, pages, 2)

	snap := localstorage.NewCSVSnapshotter(layout.SnapshotPath())
	records, err := snap.Load(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)
	for _, rec := range records {
		assert.True(t, rec.Status.Terminal(), rec.URL)
		assert.Equal(t, records[0].DocID, rec.Root)
	}

	resumed, err := New(ctx, cfg, "run1", zap.NewNop(), WithRegisterer(prometheus.NewRegistry()), WithSleeper(noSleep{}))
	require.NoError(t, err)
	defer resumed.Close(ctx) //nolint:errcheck // test cleanup
	require.True(t, resumed.Resumed())
	require.NoError(t, resumed.Run(ctx))
	assert.Equal(t, 0, resumed.Stats().Batches)
	assert.Equal(t, stats.Counts, resumed.Stats().Counts)
}

func TestAppMemoryStorageWithOpsServer(t *testing.T) {
	t.Parallel()

	site := newSite(t)
	cfg := testConfig(t.TempDir(), site.URL+"/")
	cfg.Storage.Backend = config.StorageMemory
	cfg.Snapshot.Backend = config.SnapshotMemory
	cfg.Server.Addr = "127.0.0.1:0"
	ctx := context.Background()

	a, err := New(ctx, cfg, "run2", nil, WithRegisterer(prometheus.NewRegistry()), WithSleeper(noSleep{}))
	require.NoError(t, err)
	defer a.Close(ctx) //nolint:errcheck // test cleanup

	require.NoError(t, a.Run(ctx))
	assert.Equal(t, 2, a.Stats().Counts.Completed)

	pages, err := os.ReadDir(filepath.Join(a.Layout().RunDir(), a.Layout().PageDir()))
	require.NoError(t, err)
	assert.Empty(t, pages)
	assert.NoFileExists(t, a.Layout().SnapshotPath(), "a dry run leaves no resumable snapshot")

	_, err = Export(ctx, cfg, "run2", nil)
	require.ErrorContains(t, err, "no persisted frontier snapshot")
}

func TestAppCanceledRunLeavesFrontierPending(t *testing.T) {
	t.Parallel()

	site := newSite(t)
	cfg := testConfig(t.TempDir(), site.URL+"/")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a, err := New(context.Background(), cfg, "run3", nil, WithRegisterer(prometheus.NewRegistry()))
	require.NoError(t, err)
	defer a.Close(context.Background()) //nolint:errcheck // test cleanup

	require.ErrorIs(t, a.Run(ctx), context.Canceled)
	assert.Equal(t, frontier.Counts{Total: 1, Pending: 1}, a.Stats().Counts)
	assert.NoFileExists(t, a.Layout().SnapshotPath())
}

func TestNewFailsFast(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	_, err := New(ctx, testConfig(filepath.Join(t.TempDir(), "missing"), "https://www.tuebingen.de/"), "run", nil)
	require.ErrorContains(t, err, "data directory")

	cfg := testConfig(t.TempDir(), "https://www.tuebingen.de/")
	cfg.Snapshot = config.SnapshotConfig{Backend: config.SnapshotPostgres, DSN: "::not a dsn::"}
	_, err = New(ctx, cfg, "run", nil, WithRegisterer(prometheus.NewRegistry()))
	require.ErrorContains(t, err, "parse postgres dsn")

	cfg = testConfig(t.TempDir(), "https://www.tuebingen.de/")
	cfg.Classifier.TopicPattern = "("
	_, err = New(ctx, cfg, "run", nil, WithRegisterer(prometheus.NewRegistry()))
	require.ErrorContains(t, err, "compile topic pattern")
}
