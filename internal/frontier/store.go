package frontier

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/FlorianSp2000/tuebingen-search-engine/internal/urlnorm"
)

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// Normalizer canonicalizes and validates raw URLs.
type Normalizer interface {
	Normalize(raw string) (string, bool)
}

// AddResult reports what AddOrImprove did.
type AddResult int

// AddOrImprove outcomes.
const (
	Unchanged AddResult = iota
	Inserted
	Improved
)

func (r AddResult) String() string {
	switch r {
	case Inserted:
		return "inserted"
	case Improved:
		return "improved"
	default:
		return "unchanged"
	}
}

type utcClock struct{}

func (utcClock) Now() time.Time { return time.Now().UTC() }

// Option customises a Store.
type Option func(*Store)

// WithClock overrides the timestamp source.
func WithClock(c Clock) Option {
	return func(s *Store) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithRandom overrides the source of random sort keys. fn must return values in [0,1).
func WithRandom(fn func() float64) Option {
	return func(s *Store) {
		if fn != nil {
			s.random = fn
		}
	}
}

// Store indexes records by doc id and remembers insertion order so snapshots
// are stable between batches.
type Store struct {
	records map[string]*Record
	order   []string
	clock   Clock
	random  func() float64
}

// NewStore returns an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		records: make(map[string]*Record),
		clock:   utcClock{},
		random:  rand.Float64,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Restore rebuilds a store from snapshot rows, keeping their order.
func Restore(records []Record, opts ...Option) (*Store, error) {
	s := NewStore(opts...)
	for i, rec := range records {
		if rec.DocID == "" {
			return nil, fmt.Errorf("snapshot row %d: empty doc_id", i)
		}
		if !s.UpsertNew(rec) {
			return nil, fmt.Errorf("snapshot row %d: duplicate doc_id %s", i, rec.DocID)
		}
	}
	return s, nil
}

// Len returns the number of records.
func (s *Store) Len() int {
	return len(s.order)
}

// Get returns a copy of the record for docID.
func (s *Store) Get(docID string) (Record, bool) {
	rec, ok := s.records[docID]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// UpsertNew inserts rec only if its doc id is absent.
func (s *Store) UpsertNew(rec Record) bool {
	if _, exists := s.records[rec.DocID]; exists {
		return false
	}
	cp := rec
	s.records[rec.DocID] = &cp
	s.order = append(s.order, rec.DocID)
	return true
}

// Update merges patch into the record and refreshes Updated. Absent doc ids
// are ignored. A terminal status is never replaced.
func (s *Store) Update(docID string, patch Patch) bool {
	rec, ok := s.records[docID]
	if !ok {
		return false
	}
	if patch.URL != nil {
		rec.URL = *patch.URL
		rec.Domain = urlnorm.Host(rec.URL)
		rec.MainDomain = urlnorm.MainDomain(rec.Domain)
	}
	if patch.Status != nil && !rec.Status.Terminal() {
		rec.Status = *patch.Status
	}
	if patch.FeaturesTubingen != nil {
		rec.FeaturesTubingen = *patch.FeaturesTubingen
	}
	if patch.FeaturesEnglish != nil {
		rec.FeaturesEnglish = *patch.FeaturesEnglish
	}
	rec.Updated = s.clock.Now()
	return true
}

// AddOrImprove proposes a canonical URL at the given priority and depth.
// New URLs are inserted as pending. A pending record only ever moves to a
// smaller depth or a higher priority. Terminal records are left alone.
func (s *Store) AddOrImprove(canonicalURL string, priority Priority, depth int, root string) AddResult {
	docID := urlnorm.Fingerprint(canonicalURL)
	rec, ok := s.records[docID]
	if !ok {
		s.UpsertNew(s.newRecord(docID, canonicalURL, priority, depth, root))
		return Inserted
	}
	if rec.Status != StatusPending {
		return Unchanged
	}
	if depth >= rec.Depth && priority <= rec.Priority {
		return Unchanged
	}
	rec.Depth = min(rec.Depth, depth)
	rec.Priority = max(rec.Priority, priority)
	rec.Updated = s.clock.Now()
	return Improved
}

// Seed inserts every schedulable seed URL at depth 0 with high priority,
// rooted at itself. It returns the number of records inserted.
func (s *Store) Seed(seeds []string, norm Normalizer) int {
	inserted := 0
	for _, raw := range seeds {
		canonical, ok := norm.Normalize(raw)
		if !ok {
			continue
		}
		docID := urlnorm.Fingerprint(canonical)
		if s.UpsertNew(s.newRecord(docID, canonical, PriorityHigh, 0, docID)) {
			inserted++
		}
	}
	return inserted
}

func (s *Store) newRecord(docID, canonicalURL string, priority Priority, depth int, root string) Record {
	now := s.clock.Now()
	domain := urlnorm.Host(canonicalURL)
	return Record{
		DocID:         docID,
		URL:           canonicalURL,
		Domain:        domain,
		MainDomain:    urlnorm.MainDomain(domain),
		Depth:         depth,
		Priority:      priority,
		Status:        StatusPending,
		Created:       now,
		Updated:       now,
		Root:          root,
		RandomSortKey: s.random(),
	}
}

// Records returns copies of all records in insertion order.
func (s *Store) Records() []Record {
	out := make([]Record, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.records[id])
	}
	return out
}

// Pending returns copies of the pending records in insertion order.
func (s *Store) Pending() []Record {
	var out []Record
	for _, id := range s.order {
		if rec := s.records[id]; rec.Status == StatusPending {
			out = append(out, *rec)
		}
	}
	return out
}

// Counts summarises the store.
type Counts struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Relevant  int `json:"relevant"`
	English   int `json:"english"`
}

// Counts tallies records by status and feature flags.
func (s *Store) Counts() Counts {
	c := Counts{Total: len(s.order)}
	for _, rec := range s.records {
		switch rec.Status {
		case StatusPending:
			c.Pending++
		case StatusCompleted:
			c.Completed++
		case StatusFailed:
			c.Failed++
		}
		if rec.FeaturesTubingen {
			c.Relevant++
		}
		if rec.FeaturesEnglish {
			c.English++
		}
	}
	return c
}
