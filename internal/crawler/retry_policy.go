package crawler

import (
	"context"
	"errors"
	"time"
)

// RetryConfig parameterises ExponentialRetryPolicy.
type RetryConfig struct {
	MaxAttempts int
	MinDelay    time.Duration
	MaxDelay    time.Duration
}

// ExponentialRetryPolicy doubles the wait after every failed attempt,
// clamped to [MinDelay, MaxDelay].
type ExponentialRetryPolicy struct {
	maxAttempts int
	minDelay    time.Duration
	maxDelay    time.Duration
}

// NewExponentialRetryPolicy builds a policy; zero fields fall back to 3 attempts, 1s and 10s.
func NewExponentialRetryPolicy(cfg RetryConfig) *ExponentialRetryPolicy {
	p := &ExponentialRetryPolicy{
		maxAttempts: cfg.MaxAttempts,
		minDelay:    cfg.MinDelay,
		maxDelay:    cfg.MaxDelay,
	}
	if p.maxAttempts <= 0 {
		p.maxAttempts = 3
	}
	if p.minDelay <= 0 {
		p.minDelay = time.Second
	}
	if p.maxDelay <= 0 {
		p.maxDelay = 10 * time.Second
	}
	if p.maxDelay < p.minDelay {
		p.maxDelay = p.minDelay
	}
	return p
}

// MaxAttempts returns the attempt ceiling.
func (p *ExponentialRetryPolicy) MaxAttempts() int {
	return p.maxAttempts
}

// ShouldRetry retries any failure, including per-attempt timeouts, until the
// ceiling is reached. Caller cancellation is never retried.
func (p *ExponentialRetryPolicy) ShouldRetry(err error, attempt int) bool {
	if err == nil || attempt >= p.maxAttempts {
		return false
	}
	return !errors.Is(err, context.Canceled)
}

// Backoff returns the wait after the given failed attempt.
func (p *ExponentialRetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := p.minDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= p.maxDelay {
			return p.maxDelay
		}
	}
	return min(delay, p.maxDelay)
}
