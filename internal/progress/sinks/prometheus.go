package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/FlorianSp2000/tuebingen-search-engine/internal/progress"
)

// PrometheusSink exports run, batch and page counters.
type PrometheusSink struct {
	runsStarted   prometheus.Counter
	runsCompleted *prometheus.CounterVec
	runsActive    prometheus.Gauge
	runDuration   *prometheus.HistogramVec

	batchesCommitted prometheus.Counter
	batchRequests    prometheus.Histogram
	batchDuration    prometheus.Histogram

	pagesProcessed *prometheus.CounterVec
	pageBytes      prometheus.Counter
	fetchDuration  *prometheus.HistogramVec

	tracker *runTracker
}

// NewPrometheusSink registers the collectors against reg.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crawler_runs_started_total",
			Help: "Crawl runs started or resumed.",
		}),
		runsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crawler_runs_completed_total",
			Help: "Crawl runs finished, partitioned by result.",
		}, []string{"result"}),
		runsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crawler_runs_active",
			Help: "Crawl runs currently in progress.",
		}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "crawler_run_duration_seconds",
			Help:    "Wall time per finished run.",
			Buckets: prometheus.ExponentialBuckets(60, 2, 10),
		}, []string{"result"}),
		batchesCommitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crawler_batches_committed_total",
			Help: "Batches whose frontier snapshot was persisted.",
		}),
		batchRequests: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "crawler_batch_requests",
			Help:    "Requests scheduled per batch.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "crawler_batch_duration_seconds",
			Help:    "Wall time per batch including persistence.",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
		}),
		pagesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crawler_pages_processed_total",
			Help: "Processed requests partitioned by outcome, status class and relevance.",
		}, []string{"outcome", "status_class", "relevant"}),
		pageBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crawler_page_bytes_total",
			Help: "Bytes of page bodies received.",
		}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "crawler_fetch_duration_seconds",
			Help:    "Fetch duration including retries, partitioned by outcome.",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"outcome"}),
		tracker: newRunTracker(),
	}
	for _, collector := range []prometheus.Collector{
		s.runsStarted,
		s.runsCompleted,
		s.runsActive,
		s.runDuration,
		s.batchesCommitted,
		s.batchRequests,
		s.batchDuration,
		s.pagesProcessed,
		s.pageBytes,
		s.fetchDuration,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		switch evt.Stage {
		case progress.StageRunStart, progress.StageRunDone, progress.StageRunError:
			s.handleRunEvent(evt)
		case progress.StageBatchDone:
			s.batchesCommitted.Inc()
			s.batchRequests.Observe(float64(evt.Requests))
			if evt.Dur > 0 {
				s.batchDuration.Observe(evt.Dur.Seconds())
			}
		case progress.StageFetchDone:
			s.handleFetchEvent(evt)
		}
	}
	return nil
}

func (s *PrometheusSink) handleRunEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageRunStart:
		s.runsStarted.Inc()
		if s.tracker.start(evt.RunID) {
			s.runsActive.Inc()
		}
		return
	case progress.StageRunDone:
		s.observeRun(evt, "success")
	case progress.StageRunError:
		s.observeRun(evt, "error")
	}
	if s.tracker.complete(evt.RunID) {
		s.runsActive.Dec()
	}
}

func (s *PrometheusSink) observeRun(evt progress.Event, result string) {
	s.runsCompleted.WithLabelValues(result).Inc()
	if evt.Dur > 0 {
		s.runDuration.WithLabelValues(result).Observe(evt.Dur.Seconds())
	}
}

func (s *PrometheusSink) handleFetchEvent(evt progress.Event) {
	statusClass := string(evt.StatusClass)
	if statusClass == "" {
		statusClass = string(progress.StatusOther)
	}
	relevant := "false"
	if evt.Relevant {
		relevant = "true"
	}
	s.pagesProcessed.WithLabelValues(string(evt.Outcome), statusClass, relevant).Inc()
	if evt.Bytes > 0 {
		s.pageBytes.Add(float64(evt.Bytes))
	}
	if evt.Dur > 0 {
		s.fetchDuration.WithLabelValues(string(evt.Outcome)).Observe(evt.Dur.Seconds())
	}
}

// Close implements progress.Sink.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

type runTracker struct {
	mu     sync.Mutex
	active map[[16]byte]struct{}
}

func newRunTracker() *runTracker {
	return &runTracker{active: make(map[[16]byte]struct{})}
}

func (t *runTracker) start(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.active[id]; ok {
		return false
	}
	t.active[id] = struct{}{}
	return true
}

func (t *runTracker) complete(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.active[id]; !ok {
		return false
	}
	delete(t.active, id)
	return true
}
