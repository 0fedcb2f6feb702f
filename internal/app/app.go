// Package app builds the long-lived services of a crawl run from configuration
// and owns their shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/FlorianSp2000/tuebingen-search-engine/internal/api"
	"github.com/FlorianSp2000/tuebingen-search-engine/internal/classifier"
	"github.com/FlorianSp2000/tuebingen-search-engine/internal/clock/system"
	"github.com/FlorianSp2000/tuebingen-search-engine/internal/config"
	"github.com/FlorianSp2000/tuebingen-search-engine/internal/crawler"
	collyfetcher "github.com/FlorianSp2000/tuebingen-search-engine/internal/fetcher/colly"
	"github.com/FlorianSp2000/tuebingen-search-engine/internal/frontier"
	"github.com/FlorianSp2000/tuebingen-search-engine/internal/hash/sha256"
	"github.com/FlorianSp2000/tuebingen-search-engine/internal/metrics"
	"github.com/FlorianSp2000/tuebingen-search-engine/internal/orchestrator"
	"github.com/FlorianSp2000/tuebingen-search-engine/internal/policy/ratelimit"
	"github.com/FlorianSp2000/tuebingen-search-engine/internal/progress"
	progresssinks "github.com/FlorianSp2000/tuebingen-search-engine/internal/progress/sinks"
	gcppublisher "github.com/FlorianSp2000/tuebingen-search-engine/internal/publisher/pubsub"
	"github.com/FlorianSp2000/tuebingen-search-engine/internal/scheduler"
	gcsstorage "github.com/FlorianSp2000/tuebingen-search-engine/internal/storage/gcs"
	localstorage "github.com/FlorianSp2000/tuebingen-search-engine/internal/storage/local"
	memorystorage "github.com/FlorianSp2000/tuebingen-search-engine/internal/storage/memory"
	pgstore "github.com/FlorianSp2000/tuebingen-search-engine/internal/storage/postgres"
	"github.com/FlorianSp2000/tuebingen-search-engine/internal/urlnorm"
)

// RunID picks the run identifier: the flag wins over the configured id, and a
// fresh timestamp is used when both are empty.
func RunID(flagID, configuredID string, now time.Time) string {
	if id := strings.TrimSpace(flagID); id != "" {
		return id
	}
	if id := strings.TrimSpace(configuredID); id != "" {
		return id
	}
	return system.RunStamp(now)
}

// Option customises how App is built.
type Option func(*options)

type options struct {
	fetcher    crawler.PageFetcher
	registerer prometheus.Registerer
	sleeper    crawler.Sleeper
}

// WithPageFetcher replaces the colly fetcher.
func WithPageFetcher(f crawler.PageFetcher) Option {
	return func(o *options) { o.fetcher = f }
}

// WithRegisterer registers the progress collectors somewhere other than the default registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithSleeper overrides how retry backoff is waited out.
func WithSleeper(s crawler.Sleeper) Option {
	return func(o *options) { o.sleeper = s }
}

// App holds the services of one crawl run.
type App struct {
	cfg     config.Config
	runID   string
	logger  *zap.Logger
	layout  localstorage.Layout
	store   *frontier.Store
	resumed bool
	orch    *orchestrator.Orchestrator
	hub     *progress.Hub
	ops     *api.Server

	closers []func(context.Context) error
}

// New wires every component for runID. It fails fast when a backend cannot be
// reached, releasing whatever was already opened.
func New(ctx context.Context, cfg config.Config, runID string, logger *zap.Logger, opts ...Option) (a *App, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	a = &App{cfg: cfg, runID: runID, logger: logger.With(zap.String("run_id", runID))}
	defer func() {
		if err != nil {
			if closeErr := a.Close(context.Background()); closeErr != nil {
				a.logger.Warn("cleanup after failed start", zap.Error(closeErr))
			}
			a = nil
		}
	}()

	a.layout, err = localstorage.NewLayout(cfg.Run.DataDir, runID)
	if err != nil {
		return a, err
	}
	if err = a.layout.Prepare(); err != nil {
		return a, err
	}

	validator, err := urlnorm.NewValidator(cfg.Crawler.DeniedDomains)
	if err != nil {
		return a, fmt.Errorf("build url validator: %w", err)
	}

	snap, err := a.buildSnapshotter(ctx)
	if err != nil {
		return a, err
	}
	a.store, a.resumed, err = frontier.Open(ctx, snap, cfg.Crawler.Seeds, validator, frontier.WithClock(system.New()))
	if err != nil {
		return a, err
	}
	a.logger.Info("frontier ready",
		zap.Bool("resumed", a.resumed),
		zap.Int("records", a.store.Len()),
	)

	pages, err := a.buildPageStore(ctx)
	if err != nil {
		return a, err
	}

	fetcher := o.fetcher
	if fetcher == nil {
		fetcher = collyfetcher.New(collyfetcher.Config{
			Headers: cfg.Crawler.Headers,
			Timeout: cfg.FetchTimeout(),
			// One byte over the limit is enough to reject the page.
			MaxBodyBytes: cfg.Crawler.MaxFilesize + 1,
		})
	}
	pacer := ratelimit.New(ratelimit.Config{
		DefaultRPS:   cfg.Crawler.DomainRPS,
		DefaultBurst: cfg.Crawler.DomainBurst,
		OnDelay:      metrics.ObserveRateLimitDelay,
	})
	execOpts := []crawler.ExecutorOption{
		crawler.WithPacer(pacer),
		crawler.WithAttemptObserver(metrics.NewFetchObserver()),
	}
	if o.sleeper != nil {
		execOpts = append(execOpts, crawler.WithSleeper(o.sleeper))
	}
	executor := crawler.NewExecutor(
		fetcher,
		crawler.NewExponentialRetryPolicy(cfg.RetryPolicy()),
		crawler.ExecutorConfig{Timeout: cfg.FetchTimeout()},
		a.logger,
		execOpts...,
	)

	cls, err := classifier.New(classifier.Config{
		TopicPattern:   cfg.Classifier.TopicPattern,
		EnglishPattern: cfg.Classifier.EnglishPattern,
	}, validator, a.logger)
	if err != nil {
		return a, err
	}

	promSink, err := progresssinks.NewPrometheusSink(o.registerer)
	if err != nil {
		return a, fmt.Errorf("register progress metrics: %w", err)
	}
	a.hub = progress.NewHub(progress.Config{Logger: a.logger}, progresssinks.NewLogSink(a.logger), promSink)

	deps := orchestrator.Deps{
		Store:       a.store,
		Scheduler:   scheduler.New(scheduler.Config{MaxDepth: cfg.Crawler.MaxDepth, PerDomainLimit: cfg.Crawler.PerDomainLimit}),
		Fetcher:     executor,
		Classifier:  cls,
		Pages:       pages,
		Snapshotter: snap,
		Hasher:      sha256.New(),
		Emitter:     a.hub,
	}
	if cfg.PubSub.Topic != "" {
		pub, pubErr := gcppublisher.Dial(ctx, cfg.PubSub.ProjectID)
		if pubErr != nil {
			return a, pubErr
		}
		a.closers = append(a.closers, func(context.Context) error { return pub.Close() })
		deps.Publisher = pub
	}

	a.orch, err = orchestrator.New(deps, orchestrator.Config{
		RunID:       runID,
		BatchSize:   cfg.Crawler.BatchSize,
		MaxFilesize: cfg.Crawler.MaxFilesize,
		PageDir:     a.layout.PageDir(),
		Topic:       cfg.PubSub.Topic,
	}, a.logger)
	if err != nil {
		return a, err
	}

	if cfg.Server.Addr != "" {
		a.ops = api.NewServer(a.orch, a.logger)
	}
	return a, nil
}

func (a *App) buildSnapshotter(ctx context.Context) (frontier.Snapshotter, error) {
	switch a.cfg.Snapshot.Backend {
	case config.SnapshotPostgres:
		pg, err := pgstore.NewFrontierStore(ctx, pgstore.FrontierStoreConfig{
			DSN:      a.cfg.Snapshot.DSN,
			Table:    a.cfg.Snapshot.Table,
			RunID:    a.runID,
			MaxConns: a.cfg.Snapshot.MaxConns,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) error { pg.Close(); return nil })
		if err := pg.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		a.logger.Info("using postgres frontier snapshots", zap.String("table", a.cfg.Snapshot.Table))
		return pg, nil
	case config.SnapshotMemory:
		a.logger.Info("keeping frontier snapshots in memory; the run cannot be resumed")
		return memorystorage.NewSnapshotter(), nil
	default:
		a.logger.Info("using csv frontier snapshots", zap.String("path", a.layout.SnapshotPath()))
		return localstorage.NewCSVSnapshotter(a.layout.SnapshotPath()), nil
	}
}

func (a *App) buildPageStore(ctx context.Context) (crawler.BlobStore, error) {
	switch a.cfg.Storage.Backend {
	case config.StorageGCS:
		prefix := path.Join(a.cfg.Storage.Prefix, "mse_"+a.runID)
		store, client, err := gcsstorage.Dial(ctx, gcsstorage.Config{Bucket: a.cfg.Storage.GCSBucket, Prefix: prefix})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) error { return client.Close() })
		a.logger.Info("writing pages to gcs", zap.String("bucket", a.cfg.Storage.GCSBucket), zap.String("prefix", prefix))
		return store, nil
	case config.StorageMemory:
		a.logger.Info("keeping pages in memory; they are discarded on exit")
		return memorystorage.NewBlobStore(), nil
	default:
		store, err := localstorage.New(localstorage.Config{BaseDir: a.layout.RunDir()})
		if err != nil {
			return nil, err
		}
		a.logger.Info("writing pages to disk", zap.String("dir", a.layout.RunDir()))
		return store, nil
	}
}

// RunID returns the identifier of the run.
func (a *App) RunID() string { return a.runID }

// Resumed reports whether the frontier was restored from a snapshot.
func (a *App) Resumed() bool { return a.resumed }

// Layout returns the on-disk layout of the run.
func (a *App) Layout() localstorage.Layout { return a.layout }

// Stats returns the orchestrator's run summary.
func (a *App) Stats() orchestrator.Stats { return a.orch.Stats() }

// Run crawls until the frontier is exhausted, ctx is canceled, or a fatal
// storage error occurs. The ops server, when configured, lives as long as the crawl.
func (a *App) Run(ctx context.Context) error {
	if a.ops == nil {
		return a.orch.Run(ctx)
	}

	opsCtx, stopOps := context.WithCancel(ctx)
	defer stopOps()
	g, gctx := errgroup.WithContext(opsCtx)
	g.Go(func() error {
		return a.ops.ListenAndServe(gctx, a.cfg.Server.Addr)
	})

	runErr := a.orch.Run(ctx)
	stopOps()
	if err := g.Wait(); err != nil {
		a.logger.Warn("ops server stopped with error", zap.Error(err))
	}
	return runErr
}

// Close flushes progress events and releases backends in reverse order of creation.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.hub != nil {
		if err := a.hub.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close progress hub: %w", err))
		}
		a.hub = nil
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
