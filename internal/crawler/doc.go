// Package crawler defines the page type and ports shared by the fetcher,
// classifier and orchestrator, and implements the fetch executor: a single
// URL fetched under a per-attempt timeout with exponential backoff between
// attempts.
package crawler
