package crawler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrNonSuccessStatus marks responses outside the 2xx range.
var ErrNonSuccessStatus = errors.New("non-success status")

// StatusError reports a non-2xx response. It unwraps to ErrNonSuccessStatus.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d for %s", e.Code, e.URL)
}

// Unwrap lets errors.Is match ErrNonSuccessStatus.
func (e *StatusError) Unwrap() error {
	return ErrNonSuccessStatus
}

// Page is a successfully fetched HTTP response.
type Page struct {
	// RequestedURL is the URL the fetch started from.
	RequestedURL string
	// FinalURL is the URL after redirects.
	FinalURL   string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// ContentType returns the response Content-Type header.
func (p Page) ContentType() string {
	if p.Headers == nil {
		return ""
	}
	return p.Headers.Get("Content-Type")
}

// IsHTML reports whether the Content-Type declares text/html.
func (p Page) IsHTML() bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(p.ContentType())), "text/html")
}

// TooLarge reports whether the body exceeds limit bytes. A non-positive limit never trips.
func (p Page) TooLarge(limit int) bool {
	return limit > 0 && len(p.Body) > limit
}
