// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/FlorianSp2000/tuebingen-search-engine/internal/classifier"
	"github.com/FlorianSp2000/tuebingen-search-engine/internal/crawler"
	"github.com/FlorianSp2000/tuebingen-search-engine/internal/urlnorm"
)

// Storage and snapshot backends.
const (
	StorageLocal  = "local"
	StorageGCS    = "gcs"
	StorageMemory = "memory"

	SnapshotCSV      = "csv"
	SnapshotPostgres = "postgres"
	SnapshotMemory   = "memory"
)

// Config captures all crawler configuration knobs loaded via Viper.
type Config struct {
	Run        RunConfig        `mapstructure:"run"`
	Crawler    CrawlerConfig    `mapstructure:"crawler"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Retry      RetryConfig      `mapstructure:"retry"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Snapshot   SnapshotConfig   `mapstructure:"snapshot"`
	PubSub     PubSubConfig     `mapstructure:"pubsub"`
	Server     ServerConfig     `mapstructure:"server"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// RunConfig identifies the run and where its artifacts live.
type RunConfig struct {
	DataDir string `mapstructure:"data_dir"`
	// ID resumes an existing run when set. Empty means a fresh timestamped run.
	ID string `mapstructure:"id"`
}

// CrawlerConfig governs batching, fetch limits and the seed set.
type CrawlerConfig struct {
	BatchSize      int                `mapstructure:"batch_size"`
	MaxDepth       int                `mapstructure:"max_depth"`
	PerDomainLimit int                `mapstructure:"per_domain_limit"`
	TimeoutSeconds int                `mapstructure:"timeout_seconds"`
	MaxFilesize    int                `mapstructure:"max_filesize"`
	Seeds          []string           `mapstructure:"seeds"`
	Headers        map[string]string  `mapstructure:"headers"`
	DeniedDomains  []urlnorm.DenyRule `mapstructure:"denied_domains"`
	// DomainRPS spaces requests to one main domain; 0 disables the limiter.
	DomainRPS   float64 `mapstructure:"domain_rps"`
	DomainBurst int     `mapstructure:"domain_burst"`
}

// ClassifierConfig holds the relevance and language expressions.
type ClassifierConfig struct {
	TopicPattern   string `mapstructure:"topic_pattern"`
	EnglishPattern string `mapstructure:"english_pattern"`
}

// RetryConfig configures the fetch retry policy.
type RetryConfig struct {
	MaxAttempts  int `mapstructure:"max_attempts"`
	BackoffMinMs int `mapstructure:"backoff_min_ms"`
	BackoffMaxMs int `mapstructure:"backoff_max_ms"`
}

// StorageConfig selects where raw pages are written.
type StorageConfig struct {
	Backend   string `mapstructure:"backend"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// SnapshotConfig selects where the frontier is persisted after each batch.
type SnapshotConfig struct {
	Backend  string `mapstructure:"backend"`
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// PubSubConfig holds metadata for page-ready notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// ServerConfig controls the ops HTTP server. An empty Addr disables it.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	// Pages kept in memory cannot back a persisted frontier.
	if cfg.Snapshot.Backend == "" {
		cfg.Snapshot.Backend = SnapshotCSV
		if cfg.Storage.Backend == StorageMemory {
			cfg.Snapshot.Backend = SnapshotMemory
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("run.data_dir", "")
	v.SetDefault("run.id", "")
	v.SetDefault("crawler.batch_size", 256)
	v.SetDefault("crawler.max_depth", 10)
	v.SetDefault("crawler.per_domain_limit", 1)
	v.SetDefault("crawler.timeout_seconds", 10)
	v.SetDefault("crawler.max_filesize", 10_000_000)
	v.SetDefault("crawler.seeds", DefaultSeeds())
	v.SetDefault("crawler.headers", DefaultHeaders())
	v.SetDefault("crawler.denied_domains", urlnorm.DefaultDenyRules())
	v.SetDefault("crawler.domain_rps", 0)
	v.SetDefault("crawler.domain_burst", 1)
	v.SetDefault("classifier.topic_pattern", classifier.DefaultTopicPattern)
	v.SetDefault("classifier.english_pattern", classifier.DefaultEnglishPattern)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.backoff_min_ms", 1000)
	v.SetDefault("retry.backoff_max_ms", 10000)
	v.SetDefault("storage.backend", StorageLocal)
	v.SetDefault("storage.gcs_bucket", "")
	v.SetDefault("storage.prefix", "")
	v.SetDefault("snapshot.backend", "")
	v.SetDefault("snapshot.dsn", "")
	v.SetDefault("snapshot.table", "frontier")
	v.SetDefault("snapshot.max_conns", 4)
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic", "")
	v.SetDefault("server.addr", "")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Run.DataDir) == "" {
		return fmt.Errorf("run.data_dir is required")
	}
	if c.Crawler.BatchSize <= 0 {
		return fmt.Errorf("crawler.batch_size must be > 0")
	}
	if c.Crawler.MaxDepth <= 0 {
		return fmt.Errorf("crawler.max_depth must be > 0")
	}
	if c.Crawler.PerDomainLimit < 0 {
		return fmt.Errorf("crawler.per_domain_limit must be >= 0")
	}
	if c.Crawler.TimeoutSeconds <= 0 {
		return fmt.Errorf("crawler.timeout_seconds must be > 0")
	}
	if c.Crawler.MaxFilesize <= 0 {
		return fmt.Errorf("crawler.max_filesize must be > 0")
	}
	if len(c.Crawler.Seeds) == 0 {
		return fmt.Errorf("crawler.seeds must not be empty")
	}
	if c.Crawler.DomainRPS < 0 {
		return fmt.Errorf("crawler.domain_rps must be >= 0")
	}
	if c.Crawler.DomainRPS > 0 && c.Crawler.DomainBurst <= 0 {
		return fmt.Errorf("crawler.domain_burst must be > 0 when crawler.domain_rps is set")
	}
	for i, rule := range c.Crawler.DeniedDomains {
		if _, err := regexp.Compile(rule.Pattern); err != nil {
			return fmt.Errorf("crawler.denied_domains[%d].pattern: %w", i, err)
		}
		if _, err := regexp.Compile(rule.Unless); err != nil {
			return fmt.Errorf("crawler.denied_domains[%d].unless: %w", i, err)
		}
	}
	if _, err := regexp.Compile(c.Classifier.TopicPattern); err != nil || c.Classifier.TopicPattern == "" {
		return fmt.Errorf("classifier.topic_pattern must be a non-empty regular expression")
	}
	if _, err := regexp.Compile(c.Classifier.EnglishPattern); err != nil || c.Classifier.EnglishPattern == "" {
		return fmt.Errorf("classifier.english_pattern must be a non-empty regular expression")
	}
	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry.max_attempts must be > 0")
	}
	if c.Retry.BackoffMinMs <= 0 {
		return fmt.Errorf("retry.backoff_min_ms must be > 0")
	}
	if c.Retry.BackoffMaxMs < c.Retry.BackoffMinMs {
		return fmt.Errorf("retry.backoff_max_ms must be >= retry.backoff_min_ms")
	}
	switch c.Storage.Backend {
	case StorageLocal, StorageMemory:
	case StorageGCS:
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket is required for the gcs backend")
		}
	default:
		return fmt.Errorf("storage.backend must be one of local, gcs, memory (got %q)", c.Storage.Backend)
	}
	switch c.Snapshot.Backend {
	case SnapshotCSV, SnapshotMemory:
	case SnapshotPostgres:
		if c.Snapshot.DSN == "" {
			return fmt.Errorf("snapshot.dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("snapshot.backend must be one of csv, postgres, memory (got %q)", c.Snapshot.Backend)
	}
	if c.Storage.Backend == StorageMemory && c.Snapshot.Backend != SnapshotMemory {
		return fmt.Errorf("snapshot.backend must be memory when storage.backend is memory (got %q)", c.Snapshot.Backend)
	}
	if c.PubSub.Topic != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id is required when pubsub.topic is set")
	}
	return nil
}

// FetchTimeout bounds a single fetch attempt.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Crawler.TimeoutSeconds) * time.Second
}

// RetryPolicy converts the retry section into the executor's policy config.
func (c Config) RetryPolicy() crawler.RetryConfig {
	return crawler.RetryConfig{
		MaxAttempts: c.Retry.MaxAttempts,
		MinDelay:    time.Duration(c.Retry.BackoffMinMs) * time.Millisecond,
		MaxDelay:    time.Duration(c.Retry.BackoffMaxMs) * time.Millisecond,
	}
}
