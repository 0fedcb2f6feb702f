package frontier

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoSnapshot is returned by Snapshotter.Load when the run has not persisted a frontier yet.
var ErrNoSnapshot = errors.New("no frontier snapshot")

// Snapshotter persists the complete frontier after every batch.
type Snapshotter interface {
	Load(ctx context.Context) ([]Record, error)
	Save(ctx context.Context, records []Record) error
}

// Open resumes the store from the last snapshot, or seeds a fresh one when
// none exists. resumed reports which happened. Snapshot read errors other
// than ErrNoSnapshot are returned.
func Open(
	ctx context.Context,
	snap Snapshotter,
	seeds []string,
	norm Normalizer,
	opts ...Option,
) (store *Store, resumed bool, err error) {
	records, err := snap.Load(ctx)
	switch {
	case errors.Is(err, ErrNoSnapshot):
		store = NewStore(opts...)
		store.Seed(seeds, norm)
		return store, false, nil
	case err != nil:
		return nil, false, fmt.Errorf("load frontier snapshot: %w", err)
	}
	store, err = Restore(records, opts...)
	if err != nil {
		return nil, false, err
	}
	return store, true, nil
}
