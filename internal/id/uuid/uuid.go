// Package uuid derives stable identifiers for crawl runs.
package uuid

import (
	"github.com/google/uuid"
)

// runNamespace scopes run UUIDs so they never collide with URL-derived UUIDs.
var runNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("tuebingen-search-engine/run"))

// ForRun returns the deterministic UUID for a run identifier. Resuming a run
// under the same ID yields the same UUID, so progress streams line up.
func ForRun(runID string) uuid.UUID {
	return uuid.NewSHA1(runNamespace, []byte(runID))
}

// Bytes returns ForRun in its 16-byte form.
func Bytes(runID string) [16]byte {
	return [16]byte(ForRun(runID))
}
