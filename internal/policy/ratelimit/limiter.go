// Package ratelimit spaces out requests to the same site with per-domain token buckets.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/FlorianSp2000/tuebingen-search-engine/internal/urlnorm"
)

// Limiter manages one token bucket per main domain. It satisfies crawler.Pacer.
type Limiter struct {
	mu           sync.Mutex
	limiters     map[string]*rate.Limiter
	defaultRate  rate.Limit
	defaultBurst int
	observe      func(domain string, d time.Duration)
}

// Config holds rate limiter configuration. A non-positive RPS disables limiting.
type Config struct {
	DefaultRPS   float64
	DefaultBurst int
	// OnDelay, if set, is called whenever a request had to wait for a token.
	OnDelay func(domain string, d time.Duration)
}

// New creates a new Limiter.
func New(cfg Config) *Limiter {
	r := rate.Limit(cfg.DefaultRPS)
	if cfg.DefaultRPS <= 0 {
		r = rate.Inf
	}
	burst := cfg.DefaultBurst
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		limiters:     make(map[string]*rate.Limiter),
		defaultRate:  r,
		defaultBurst: burst,
		observe:      cfg.OnDelay,
	}
}

// Wait blocks until a token is available for the URL's main domain, respecting the context.
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	domain := urlnorm.MainDomain(urlnorm.Host(rawURL))
	if domain == "" {
		domain = "unknown"
	}
	l.mu.Lock()
	limiter, exists := l.limiters[domain]
	if !exists {
		limiter = rate.NewLimiter(l.defaultRate, l.defaultBurst)
		l.limiters[domain] = limiter
	}
	l.mu.Unlock()

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	// Tokens available immediately are not a delay worth reporting.
	if d := time.Since(start); d > time.Millisecond && l.observe != nil {
		l.observe(domain, d)
	}
	return nil
}
