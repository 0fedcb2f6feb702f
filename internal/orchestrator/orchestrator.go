package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/FlorianSp2000/tuebingen-search-engine/internal/classifier"
	"github.com/FlorianSp2000/tuebingen-search-engine/internal/clock/system"
	"github.com/FlorianSp2000/tuebingen-search-engine/internal/crawler"
	"github.com/FlorianSp2000/tuebingen-search-engine/internal/frontier"
	"github.com/FlorianSp2000/tuebingen-search-engine/internal/id/uuid"
	"github.com/FlorianSp2000/tuebingen-search-engine/internal/progress"
	"github.com/FlorianSp2000/tuebingen-search-engine/internal/scheduler"
	"github.com/FlorianSp2000/tuebingen-search-engine/internal/urlnorm"
)

const (
	defaultBatchSize   = 256
	defaultMaxFilesize = 10_000_000
	defaultPageDir     = "html"
	pageContentType    = "text/html; charset=utf-8"
)

// Scheduler selects the next batch of requests.
type Scheduler interface {
	NextBatch(src scheduler.Source, maxSize int) []frontier.Request
}

// Fetcher resolves one request to a page, or false when it could not be fetched.
type Fetcher interface {
	Fetch(ctx context.Context, req frontier.Request) (crawler.Page, bool)
}

// Classifier applies a fetched page's features and links to the frontier.
type Classifier interface {
	Classify(store classifier.Frontier, req frontier.Request, page crawler.Page) classifier.Result
}

// Config controls a run.
type Config struct {
	RunID string
	// BatchSize is both the scheduling round size and the fetch concurrency.
	BatchSize   int
	MaxFilesize int
	// PageDir is the blob path prefix for raw pages.
	PageDir string
	// Topic enables page-ready notifications when set.
	Topic string
}

// Deps are the collaborators of a run. Publisher, Hasher, Emitter and Clock are optional.
type Deps struct {
	Store       *frontier.Store
	Scheduler   Scheduler
	Fetcher     Fetcher
	Classifier  Classifier
	Pages       crawler.BlobStore
	Snapshotter frontier.Snapshotter
	Publisher   crawler.Publisher
	Hasher      crawler.Hasher
	Emitter     progress.Emitter
	Clock       crawler.Clock
}

// Stats is a point-in-time view of a run, refreshed after every persisted batch.
type Stats struct {
	RunID     string          `json:"run_id"`
	Batches   int             `json:"batches"`
	Counts    frontier.Counts `json:"counts"`
	StartedAt time.Time       `json:"started_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	Running   bool            `json:"running"`
	Error     string          `json:"error,omitempty"`
}

// Orchestrator owns the frontier for the duration of a run. Only the goroutine
// calling Run mutates the store.
type Orchestrator struct {
	deps   Deps
	cfg    Config
	runID  [16]byte
	logger *zap.Logger

	mu    sync.RWMutex
	stats Stats
}

type fetchResult struct {
	page crawler.Page
	ok   bool
	dur  time.Duration
}

// New validates deps and applies config defaults.
func New(deps Deps, cfg Config, logger *zap.Logger) (*Orchestrator, error) {
	switch {
	case deps.Store == nil:
		return nil, errors.New("orchestrator requires a frontier store")
	case deps.Scheduler == nil:
		return nil, errors.New("orchestrator requires a scheduler")
	case deps.Fetcher == nil:
		return nil, errors.New("orchestrator requires a fetcher")
	case deps.Classifier == nil:
		return nil, errors.New("orchestrator requires a classifier")
	case deps.Pages == nil:
		return nil, errors.New("orchestrator requires a page store")
	case deps.Snapshotter == nil:
		return nil, errors.New("orchestrator requires a snapshotter")
	case strings.TrimSpace(cfg.RunID) == "":
		return nil, errors.New("orchestrator requires a run id")
	}
	if deps.Clock == nil {
		deps.Clock = system.New()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.MaxFilesize <= 0 {
		cfg.MaxFilesize = defaultMaxFilesize
	}
	if cfg.PageDir == "" {
		cfg.PageDir = defaultPageDir
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{
		deps:   deps,
		cfg:    cfg,
		runID:  uuid.Bytes(cfg.RunID),
		logger: logger.With(zap.String("run_id", cfg.RunID)),
	}
	o.stats = Stats{RunID: cfg.RunID, Counts: deps.Store.Counts()}
	return o, nil
}

// Stats returns the latest run statistics. It is safe to call concurrently with Run.
func (o *Orchestrator) Stats() Stats {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.stats
}

// Run processes batches until the scheduler returns none. It returns an error
// when a page or snapshot cannot be persisted, or ctx is canceled. A batch
// interrupted by cancellation is not persisted.
func (o *Orchestrator) Run(ctx context.Context) error {
	start := o.deps.Clock.Now()
	o.setStats(func(s *Stats) {
		s.StartedAt = start
		s.UpdatedAt = start
		s.Running = true
		s.Error = ""
	})
	o.emit(progress.Event{Stage: progress.StageRunStart})
	counts := o.deps.Store.Counts()
	o.logger.Info("crawl run started",
		zap.Int("records", counts.Total),
		zap.Int("pending", counts.Pending),
	)

	batches, err := o.loop(ctx)
	elapsed := o.deps.Clock.Now().Sub(start)
	o.setStats(func(s *Stats) {
		s.Running = false
		if err != nil {
			s.Error = err.Error()
		}
	})
	if err != nil {
		o.emit(progress.Event{Stage: progress.StageRunError, Dur: elapsed, Note: err.Error()})
		return err
	}
	o.emit(progress.Event{Stage: progress.StageRunDone, Dur: elapsed})
	counts = o.deps.Store.Counts()
	o.logger.Info("crawl run finished",
		zap.Int("batches", batches),
		zap.Int("completed", counts.Completed),
		zap.Int("failed", counts.Failed),
		zap.Int("relevant", counts.Relevant),
		zap.Duration("elapsed", elapsed),
	)
	return nil
}

func (o *Orchestrator) loop(ctx context.Context) (int, error) {
	batches := 0
	for {
		if err := ctx.Err(); err != nil {
			return batches, fmt.Errorf("crawl interrupted: %w", err)
		}
		batch := o.deps.Scheduler.NextBatch(o.deps.Store, o.cfg.BatchSize)
		if len(batch) == 0 {
			return batches, nil
		}
		if err := o.runBatch(ctx, batches+1, batch); err != nil {
			return batches, err
		}
		batches++
	}
}

func (o *Orchestrator) runBatch(ctx context.Context, number int, batch []frontier.Request) error {
	start := o.deps.Clock.Now()
	o.logger.Debug("fetching batch", zap.Int("batch", number), zap.Int("requests", len(batch)))

	results := o.fetchAll(ctx, batch)
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("batch %d interrupted: %w", number, err)
	}

	for i, req := range batch {
		if err := o.process(ctx, number, req, results[i]); err != nil {
			return fmt.Errorf("batch %d: %w", number, err)
		}
	}

	if err := o.deps.Snapshotter.Save(ctx, o.deps.Store.Records()); err != nil {
		return fmt.Errorf("save frontier snapshot after batch %d: %w", number, err)
	}

	now := o.deps.Clock.Now()
	counts := o.deps.Store.Counts()
	o.setStats(func(s *Stats) {
		s.Batches = number
		s.Counts = counts
		s.UpdatedAt = now
	})
	o.emit(progress.Event{
		Stage:    progress.StageBatchDone,
		Batch:    number,
		Requests: len(batch),
		Dur:      now.Sub(start),
	})
	o.logger.Info("batch committed",
		zap.Int("batch", number),
		zap.Int("requests", len(batch)),
		zap.Int("pending", counts.Pending),
		zap.Int("completed", counts.Completed),
		zap.Int("failed", counts.Failed),
	)
	return nil
}

// fetchAll fetches every request concurrently and returns the results in
// request order once all of them have resolved.
func (o *Orchestrator) fetchAll(ctx context.Context, batch []frontier.Request) []fetchResult {
	results := make([]fetchResult, len(batch))
	var g errgroup.Group
	g.SetLimit(o.cfg.BatchSize)
	for i, req := range batch {
		g.Go(func() error {
			start := time.Now()
			page, ok := o.deps.Fetcher.Fetch(ctx, req)
			results[i] = fetchResult{page: page, ok: ok, dur: time.Since(start)}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (o *Orchestrator) process(ctx context.Context, batch int, req frontier.Request, res fetchResult) error {
	evt := progress.Event{
		Stage:       progress.StageFetchDone,
		Batch:       batch,
		Site:        siteOf(req.URL),
		URL:         req.URL,
		StatusClass: progress.ClassifyStatus(res.page.StatusCode),
		Bytes:       int64(len(res.page.Body)),
		Dur:         res.dur,
	}

	if reason := o.reject(res); reason != "" {
		o.deps.Store.Update(req.DocID, frontier.Patch{Status: frontier.Ptr(frontier.StatusFailed)})
		o.logger.Debug("request failed",
			zap.String("doc_id", req.DocID),
			zap.String("url", req.URL),
			zap.String("reason", reason),
		)
		evt.Outcome = progress.OutcomeFailed
		evt.Note = reason
		o.emit(evt)
		return nil
	}

	uri, err := o.deps.Pages.PutObject(ctx, o.pagePath(req.DocID), pageContentType, bytes.NewReader(res.page.Body))
	if err != nil {
		return fmt.Errorf("store page %s: %w", req.DocID, err)
	}

	result := o.deps.Classifier.Classify(o.deps.Store, req, res.page)

	patch := frontier.Patch{Status: frontier.Ptr(frontier.StatusCompleted)}
	if res.page.FinalURL != "" {
		patch.URL = frontier.Ptr(res.page.FinalURL)
	}
	o.deps.Store.Update(req.DocID, patch)

	if result.Relevant {
		o.publish(ctx, req, res.page, uri, result.English)
	}
	evt.Outcome = progress.OutcomeCompleted
	evt.Relevant = result.Relevant
	o.emit(evt)
	return nil
}

func (o *Orchestrator) reject(res fetchResult) string {
	switch {
	case !res.ok:
		return "fetch failed"
	case !res.page.IsHTML():
		return "not html"
	case res.page.TooLarge(o.cfg.MaxFilesize):
		return "too large"
	default:
		return ""
	}
}

func (o *Orchestrator) publish(ctx context.Context, req frontier.Request, page crawler.Page, uri string, english bool) {
	if o.cfg.Topic == "" || o.deps.Publisher == nil {
		return
	}
	payload := map[string]any{
		"run_id":    o.cfg.RunID,
		"doc_id":    req.DocID,
		"url":       page.FinalURL,
		"blob_uri":  uri,
		"english":   english,
		"timestamp": o.deps.Clock.Now().Format(time.RFC3339),
	}
	if o.deps.Hasher != nil {
		if digest, err := o.deps.Hasher.Hash(page.Body); err == nil {
			payload["content_sha256"] = digest
		}
	}
	if _, err := o.deps.Publisher.Publish(ctx, o.cfg.Topic, payload); err != nil {
		o.logger.Warn("publish page failed", zap.String("doc_id", req.DocID), zap.Error(err))
	}
}

func (o *Orchestrator) pagePath(docID string) string {
	return path.Join(o.cfg.PageDir, docID+".html")
}

func (o *Orchestrator) emit(evt progress.Event) {
	if o.deps.Emitter == nil {
		return
	}
	evt.RunID = o.runID
	evt.TS = o.deps.Clock.Now()
	o.deps.Emitter.Emit(evt)
}

func (o *Orchestrator) setStats(fn func(*Stats)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fn(&o.stats)
}

func siteOf(rawURL string) string {
	site := urlnorm.MainDomain(urlnorm.Host(rawURL))
	if site == "" {
		return "unknown"
	}
	return site
}
