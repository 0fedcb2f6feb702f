// Package orchestrator drives a crawl run: it asks the scheduler for a batch,
// fetches the batch concurrently, applies the results to the frontier in
// request order and persists a frontier snapshot before the next batch.
package orchestrator
