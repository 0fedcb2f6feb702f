package crawler

import (
	"context"
	"io"
	"time"
)

// PageFetcher performs one HTTP GET. Non-2xx responses are returned as *StatusError.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (Page, error)
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher pushes page-ready notifications downstream.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Hasher digests page bodies for downstream deduplication.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// RetryPolicy decides whether a failed attempt is retried and how long to wait.
// Attempts are numbered from 1.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int) time.Duration
}

// Sleeper waits for d or until ctx is done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// Pacer delays an attempt until the target site may be contacted again.
type Pacer interface {
	Wait(ctx context.Context, rawURL string) error
}

// AttemptObserver receives one call per fetch attempt.
type AttemptObserver interface {
	ObserveAttempt(outcome string, d time.Duration)
}
