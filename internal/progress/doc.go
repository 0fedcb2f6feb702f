// Package progress carries crawl run milestones from the orchestrator to
// observers. Events are batched on a background goroutine and fanned out to
// sinks such as structured logs or Prometheus collectors.
package progress
