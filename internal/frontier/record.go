package frontier

import (
	"fmt"
	"strconv"
	"time"
)

// Priority orders pending records; higher is fetched first.
type Priority int

// Supported priorities. Values are persisted, so they must not change.
const (
	PriorityLow  Priority = 0
	PriorityHigh Priority = 1
)

func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityLow:
		return "low"
	default:
		return strconv.Itoa(int(p))
	}
}

// ParsePriority accepts the persisted numeric form or the names "high"/"low".
func ParsePriority(s string) (Priority, error) {
	switch s {
	case "1", "high":
		return PriorityHigh, nil
	case "0", "low":
		return PriorityLow, nil
	default:
		return PriorityLow, fmt.Errorf("unknown priority %q", s)
	}
}

// Status is the lifecycle state of a record.
type Status string

// Record statuses. Completed and failed are terminal for the life of a run.
const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether s can no longer change.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ParseStatus validates a persisted status value.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusCompleted, StatusFailed:
		return st, nil
	default:
		return "", fmt.Errorf("unknown status %q", s)
	}
}

// Record is the persisted crawl state of one canonical URL.
type Record struct {
	DocID      string
	URL        string
	Domain     string
	MainDomain string
	Depth      int
	Priority   Priority
	Status     Status
	Created    time.Time
	Updated    time.Time
	// Root is the doc id of the seed the discovery chain started from.
	Root             string
	RandomSortKey    float64
	FeaturesTubingen bool
	FeaturesEnglish  bool
}

// Request is the ephemeral unit of work handed to the fetch executor.
type Request struct {
	DocID string
	URL   string
	Depth int
	Root  string
}

// Request materializes the scheduling view of r.
func (r Record) Request() Request {
	return Request{DocID: r.DocID, URL: r.URL, Depth: r.Depth, Root: r.Root}
}

// Patch lists the fields Update may change. Nil fields are left untouched.
// Setting URL also refreshes Domain and MainDomain.
type Patch struct {
	URL              *string
	Status           *Status
	FeaturesTubingen *bool
	FeaturesEnglish  *bool
}

// Ptr is a helper for building patches inline.
func Ptr[T any](v T) *T {
	return &v
}
