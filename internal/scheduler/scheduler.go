// Package scheduler picks the next batch of pending frontier records to fetch.
package scheduler

import (
	"sort"

	"github.com/FlorianSp2000/tuebingen-search-engine/internal/frontier"
)

// Source exposes the pending records of a frontier.
type Source interface {
	Pending() []frontier.Record
}

// Config bounds what a batch may contain.
type Config struct {
	// MaxDepth excludes records at or beyond this depth.
	MaxDepth int
	// PerDomainLimit caps requests per main domain in one batch. Zero disables the cap.
	PerDomainLimit int
}

// Scheduler orders pending work by priority, then depth, then a random tie-break,
// and spreads each batch across main domains.
type Scheduler struct {
	cfg Config
}

// New returns a Scheduler.
func New(cfg Config) *Scheduler {
	return &Scheduler{cfg: cfg}
}

// NextBatch returns at most maxSize requests. An empty batch means the
// frontier has no eligible work left.
func (s *Scheduler) NextBatch(src Source, maxSize int) []frontier.Request {
	if maxSize <= 0 {
		return nil
	}
	var eligible []frontier.Record
	for _, rec := range src.Pending() {
		if rec.Status == frontier.StatusPending && rec.Depth < s.cfg.MaxDepth {
			eligible = append(eligible, rec)
		}
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		a, b := eligible[i], eligible[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if a.Depth != b.Depth {
			return a.Depth < b.Depth
		}
		return a.RandomSortKey < b.RandomSortKey
	})

	perDomain := make(map[string]int)
	batch := make([]frontier.Request, 0, min(maxSize, len(eligible)))
	for _, rec := range eligible {
		if len(batch) == maxSize {
			break
		}
		if s.cfg.PerDomainLimit > 0 {
			if perDomain[rec.MainDomain] >= s.cfg.PerDomainLimit {
				continue
			}
			perDomain[rec.MainDomain]++
		}
		batch = append(batch, rec.Request())
	}
	return batch
}
