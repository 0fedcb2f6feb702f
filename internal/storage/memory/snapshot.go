package memory

import (
	"context"
	"sync"

	"github.com/FlorianSp2000/tuebingen-search-engine/internal/frontier"
)

// Snapshotter keeps the latest frontier snapshot in memory.
type Snapshotter struct {
	mu      sync.Mutex
	records []frontier.Record
	saved   bool
	saves   int
}

// NewSnapshotter returns a snapshotter with no snapshot.
func NewSnapshotter() *Snapshotter {
	return &Snapshotter{}
}

// Load returns the last saved records, or frontier.ErrNoSnapshot.
func (s *Snapshotter) Load(context.Context) ([]frontier.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.saved {
		return nil, frontier.ErrNoSnapshot
	}
	return append([]frontier.Record(nil), s.records...), nil
}

// Save replaces the snapshot.
func (s *Snapshotter) Save(_ context.Context, records []frontier.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append([]frontier.Record(nil), records...)
	s.saved = true
	s.saves++
	return nil
}

// Saves reports how many times Save was called.
func (s *Snapshotter) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}
