package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/FlorianSp2000/tuebingen-search-engine/internal/urlnorm"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CRAWLER_RUN_DATA_DIR", t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Crawler.BatchSize != 256 || cfg.Crawler.MaxDepth != 10 || cfg.Crawler.MaxFilesize != 10_000_000 {
		t.Fatalf("unexpected crawler defaults: %+v", cfg.Crawler)
	}
	if len(cfg.Crawler.Seeds) != 19 {
		t.Fatalf("expected 19 default seeds, got %d", len(cfg.Crawler.Seeds))
	}
	if len(cfg.Crawler.Headers) != len(DefaultHeaders()) {
		t.Fatalf("expected default headers, got %v", cfg.Crawler.Headers)
	}
	if len(cfg.Crawler.DeniedDomains) == 0 || cfg.Crawler.DeniedDomains[0].Unless == "" {
		t.Fatalf("expected default deny rules, got %+v", cfg.Crawler.DeniedDomains)
	}
	if cfg.Storage.Backend != StorageLocal || cfg.Snapshot.Backend != SnapshotCSV {
		t.Fatalf("unexpected backends: %s/%s", cfg.Storage.Backend, cfg.Snapshot.Backend)
	}
	if got := cfg.FetchTimeout(); got != 10*time.Second {
		t.Fatalf("expected 10s timeout, got %v", got)
	}
	retry := cfg.RetryPolicy()
	if retry.MaxAttempts != 3 || retry.MinDelay != time.Second || retry.MaxDelay != 10*time.Second {
		t.Fatalf("unexpected retry policy: %+v", retry)
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
run:
  data_dir: ` + dir + `
  id: "20230701120000"
crawler:
  batch_size: 32
  per_domain_limit: 0
  timeout_seconds: 5
  domain_rps: 2.5
  domain_burst: 3
  seeds:
    - https://www.tuebingen.de/
  denied_domains:
    - pattern: example\.org
classifier:
  topic_pattern: (?i)neckar
retry:
  max_attempts: 5
  backoff_min_ms: 100
  backoff_max_ms: 400
storage:
  backend: gcs
  gcs_bucket: pages
  prefix: crawls
snapshot:
  backend: postgres
  dsn: postgres://crawler@localhost/crawler
pubsub:
  project_id: proj
  topic: pages-ready
server:
  addr: ":9090"
logging:
  development: false
  level: warn
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Run.ID != "20230701120000" || cfg.Run.DataDir != dir {
		t.Fatalf("unexpected run config: %+v", cfg.Run)
	}
	if cfg.Crawler.BatchSize != 32 || cfg.Crawler.PerDomainLimit != 0 {
		t.Fatalf("expected crawler overrides to apply: %+v", cfg.Crawler)
	}
	if cfg.Crawler.DomainRPS != 2.5 || cfg.Crawler.DomainBurst != 3 {
		t.Fatalf("expected rate limit overrides: %+v", cfg.Crawler)
	}
	if len(cfg.Crawler.Seeds) != 1 || len(cfg.Crawler.DeniedDomains) != 1 {
		t.Fatalf("expected list overrides to replace defaults: %+v", cfg.Crawler)
	}
	if cfg.Classifier.TopicPattern != "(?i)neckar" || cfg.Classifier.EnglishPattern == "" {
		t.Fatalf("unexpected classifier config: %+v", cfg.Classifier)
	}
	if cfg.Storage.GCSBucket != "pages" || cfg.Snapshot.Table != "frontier" {
		t.Fatalf("unexpected storage config: %+v %+v", cfg.Storage, cfg.Snapshot)
	}
	if cfg.Server.Addr != ":9090" || cfg.Logging.Development || cfg.Logging.Level != "warn" {
		t.Fatalf("unexpected server/logging config: %+v %+v", cfg.Server, cfg.Logging)
	}
	if got := cfg.RetryPolicy().MaxDelay; got != 400*time.Millisecond {
		t.Fatalf("expected 400ms max backoff, got %v", got)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("CRAWLER_RUN_DATA_DIR", t.TempDir())
	t.Setenv("CRAWLER_CRAWLER_BATCH_SIZE", "8")
	t.Setenv("CRAWLER_STORAGE_BACKEND", "memory")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Crawler.BatchSize != 8 || cfg.Storage.Backend != StorageMemory {
		t.Fatalf("expected env overrides, got %+v %+v", cfg.Crawler, cfg.Storage)
	}
	if cfg.Snapshot.Backend != SnapshotMemory {
		t.Fatalf("expected memory pages to default to memory snapshots, got %q", cfg.Snapshot.Backend)
	}
}

func TestLoadRejectsPersistedSnapshotForMemoryPages(t *testing.T) {
	t.Setenv("CRAWLER_RUN_DATA_DIR", t.TempDir())
	t.Setenv("CRAWLER_STORAGE_BACKEND", "memory")
	t.Setenv("CRAWLER_SNAPSHOT_BACKEND", "csv")

	_, err := Load("")
	if err == nil || !strings.Contains(err.Error(), "snapshot.backend must be memory") {
		t.Fatalf("expected memory pages with csv snapshots to be rejected, got %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func validConfig() Config {
	return Config{
		Run: RunConfig{DataDir: "/data"},
		Crawler: CrawlerConfig{
			BatchSize:      256,
			MaxDepth:       10,
			PerDomainLimit: 1,
			TimeoutSeconds: 10,
			MaxFilesize:    1000,
			Seeds:          []string{"https://www.tuebingen.de/"},
		},
		Classifier: ClassifierConfig{TopicPattern: "x", EnglishPattern: "^en$"},
		Retry:      RetryConfig{MaxAttempts: 3, BackoffMinMs: 1, BackoffMaxMs: 2},
		Storage:    StorageConfig{Backend: StorageLocal},
		Snapshot:   SnapshotConfig{Backend: SnapshotCSV},
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	if err := validConfig().Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing data dir", func(c *Config) { c.Run.DataDir = " " }, "run.data_dir"},
		{"batch size", func(c *Config) { c.Crawler.BatchSize = 0 }, "crawler.batch_size"},
		{"max depth", func(c *Config) { c.Crawler.MaxDepth = 0 }, "crawler.max_depth"},
		{"per domain limit", func(c *Config) { c.Crawler.PerDomainLimit = -1 }, "crawler.per_domain_limit"},
		{"timeout", func(c *Config) { c.Crawler.TimeoutSeconds = 0 }, "crawler.timeout_seconds"},
		{"max filesize", func(c *Config) { c.Crawler.MaxFilesize = 0 }, "crawler.max_filesize"},
		{"no seeds", func(c *Config) { c.Crawler.Seeds = nil }, "crawler.seeds"},
		{"negative rps", func(c *Config) { c.Crawler.DomainRPS = -1 }, "crawler.domain_rps"},
		{"burst", func(c *Config) { c.Crawler.DomainRPS = 2 }, "crawler.domain_burst"},
		{"bad deny pattern", func(c *Config) {
			c.Crawler.DeniedDomains = []urlnorm.DenyRule{{Pattern: "("}}
		}, "crawler.denied_domains[0].pattern"},
		{"bad topic", func(c *Config) { c.Classifier.TopicPattern = "[" }, "classifier.topic_pattern"},
		{"empty english", func(c *Config) { c.Classifier.EnglishPattern = "" }, "classifier.english_pattern"},
		{"attempts", func(c *Config) { c.Retry.MaxAttempts = 0 }, "retry.max_attempts"},
		{"backoff min", func(c *Config) { c.Retry.BackoffMinMs = 0 }, "retry.backoff_min_ms"},
		{"backoff order", func(c *Config) { c.Retry.BackoffMaxMs = 0 }, "retry.backoff_max_ms"},
		{"storage backend", func(c *Config) { c.Storage.Backend = "s3" }, "storage.backend"},
		{"gcs bucket", func(c *Config) { c.Storage.Backend = StorageGCS }, "storage.gcs_bucket"},
		{"snapshot backend", func(c *Config) { c.Snapshot.Backend = "sqlite" }, "snapshot.backend"},
		{"memory pages need memory snapshots", func(c *Config) { c.Storage.Backend = StorageMemory }, "snapshot.backend must be memory"},
		{"postgres dsn", func(c *Config) { c.Snapshot.Backend = SnapshotPostgres }, "snapshot.dsn"},
		{"pubsub project", func(c *Config) { c.PubSub.Topic = "pages" }, "pubsub.project_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
