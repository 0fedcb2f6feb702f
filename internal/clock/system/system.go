// Package system provides a real clock implementation.
package system

import "time"

// Clock implements the frontier and orchestrator clock ports using time.Now.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time in UTC.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}

// RunStamp formats t the way run identifiers are derived from wall time.
func RunStamp(t time.Time) string {
	return t.UTC().Format("20060102150405")
}
