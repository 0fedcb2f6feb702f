// Package api hosts the ops HTTP server of a crawl run. Routes:
//   - GET /healthz and /readyz for liveness and readiness probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/run for the live run summary, refreshed after every committed batch.
package api
