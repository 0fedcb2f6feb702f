// Package frontier holds the crawl frontier: one Record per canonical URL,
// keyed by its fingerprint, together with the merge policy applied when a URL
// is rediscovered and the snapshot contract used to persist and resume runs.
//
// A Store has a single mutator (the run orchestrator) and is not safe for
// concurrent use.
package frontier
