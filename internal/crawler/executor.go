package crawler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/FlorianSp2000/tuebingen-search-engine/internal/frontier"
)

// Attempt outcomes reported to an AttemptObserver.
const (
	OutcomeSuccess   = "success"
	OutcomeRetry     = "retry"
	OutcomeExhausted = "exhausted"
	OutcomeCanceled  = "canceled"
)

// ExecutorConfig bounds each fetch attempt.
type ExecutorConfig struct {
	// Timeout bounds each attempt, not the whole retry sequence.
	Timeout time.Duration
}

// Executor fetches one request with retries. It is safe for concurrent use
// when its collaborators are.
type Executor struct {
	fetcher  PageFetcher
	policy   RetryPolicy
	sleeper  Sleeper
	pacer    Pacer
	observer AttemptObserver
	cfg      ExecutorConfig
	logger   *zap.Logger
}

// ExecutorOption customises an Executor.
type ExecutorOption func(*Executor)

// WithSleeper overrides how backoff delays are waited out.
func WithSleeper(s Sleeper) ExecutorOption {
	return func(e *Executor) {
		if s != nil {
			e.sleeper = s
		}
	}
}

// WithPacer makes every attempt wait on p first. The wait is not part of
// the attempt timeout.
func WithPacer(p Pacer) ExecutorOption {
	return func(e *Executor) {
		e.pacer = p
	}
}

// WithAttemptObserver registers an observer for attempt outcomes.
func WithAttemptObserver(o AttemptObserver) ExecutorOption {
	return func(e *Executor) {
		e.observer = o
	}
}

// NewExecutor wires an Executor.
func NewExecutor(
	fetcher PageFetcher,
	policy RetryPolicy,
	cfg ExecutorConfig,
	logger *zap.Logger,
	opts ...ExecutorOption,
) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy == nil {
		policy = NewExponentialRetryPolicy(RetryConfig{})
	}
	e := &Executor{
		fetcher: fetcher,
		policy:  policy,
		sleeper: TimerSleeper{},
		cfg:     cfg,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Fetch returns the page, or false once the retry policy gives up or ctx is
// canceled. Failures never escape as errors: they are logged and collapse to
// the absent result.
func (e *Executor) Fetch(ctx context.Context, req frontier.Request) (Page, bool) {
	for attempt := 1; ; attempt++ {
		if ctx.Err() != nil {
			return Page{}, false
		}
		if e.pacer != nil {
			if err := e.pacer.Wait(ctx, req.URL); err != nil {
				e.logger.Debug("pacing wait aborted", zap.String("url", req.URL), zap.Error(err))
				return Page{}, false
			}
		}
		start := time.Now()
		page, err := e.attempt(ctx, req.URL)
		elapsed := time.Since(start)
		if err == nil {
			e.observe(OutcomeSuccess, elapsed)
			return page, true
		}
		if ctx.Err() != nil {
			e.observe(OutcomeCanceled, elapsed)
			return Page{}, false
		}
		if !e.policy.ShouldRetry(err, attempt) {
			e.observe(OutcomeExhausted, elapsed)
			e.logger.Debug("fetch failed",
				zap.String("doc_id", req.DocID),
				zap.String("url", req.URL),
				zap.Int("attempts", attempt),
				zap.Error(err),
			)
			return Page{}, false
		}
		e.observe(OutcomeRetry, elapsed)
		delay := e.policy.Backoff(attempt)
		e.logger.Debug("retrying fetch",
			zap.String("url", req.URL),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
		if err := e.sleeper.Sleep(ctx, delay); err != nil {
			return Page{}, false
		}
	}
}

func (e *Executor) attempt(ctx context.Context, rawURL string) (Page, error) {
	if e.cfg.Timeout <= 0 {
		return e.fetcher.Fetch(ctx, rawURL)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()
	return e.fetcher.Fetch(attemptCtx, rawURL)
}

func (e *Executor) observe(outcome string, d time.Duration) {
	if e.observer != nil {
		e.observer.ObserveAttempt(outcome, d)
	}
}
