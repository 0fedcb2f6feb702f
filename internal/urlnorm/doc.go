// Package urlnorm turns raw and relative hrefs into canonical absolute URLs,
// derives the identifiers the frontier keys on, and rejects URLs the crawl
// must never schedule.
//
// Canonical form is the WHATWG serialisation of the URL with query, fragment
// and path parameters removed. Canonicalize is idempotent, so two spellings of
// the same page always collapse onto one fingerprint.
package urlnorm
