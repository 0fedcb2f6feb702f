package local_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FlorianSp2000/tuebingen-search-engine/internal/frontier"
	"github.com/FlorianSp2000/tuebingen-search-engine/internal/storage/local"
)

func sampleRecords() []frontier.Record {
	created := time.Date(2023, 7, 1, 12, 0, 0, 0, time.UTC)
	return []frontier.Record{
		{
			DocID:            "a1",
			URL:              "https://www.tuebingen.de/",
			Domain:           "www.tuebingen.de",
			MainDomain:       "tuebingen.de",
			Priority:         frontier.PriorityHigh,
			Status:           frontier.StatusCompleted,
			Created:          created,
			Updated:          created.Add(time.Minute),
			Root:             "a1",
			RandomSortKey:    0.25,
			FeaturesTubingen: true,
			FeaturesEnglish:  true,
		},
		{
			DocID:         "b2",
			URL:           "https://other.de/x",
			Domain:        "other.de",
			MainDomain:    "other.de",
			Depth:         1,
			Priority:      frontier.PriorityLow,
			Status:        frontier.StatusPending,
			Created:       created,
			Updated:       created,
			Root:          "a1",
			RandomSortKey: 0.75,
		},
	}
}

func TestCSVSnapshotterRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "run.csv")
	snap := local.NewCSVSnapshotter(path)
	assert.Equal(t, path, snap.Path())

	_, err := snap.Load(context.Background())
	require.ErrorIs(t, err, frontier.ErrNoSnapshot)

	require.NoError(t, snap.Save(context.Background(), sampleRecords()))
	require.NoError(t, snap.Save(context.Background(), sampleRecords()[:1]))

	got, err := snap.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sampleRecords()[:1], got)
}

func TestCSVSnapshotterEmptyFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "run.csv")
	require.NoError(t, os.WriteFile(path, []byte("\n"), 0o600))

	_, err := local.NewCSVSnapshotter(path).Load(context.Background())
	require.ErrorIs(t, err, frontier.ErrNoSnapshot)
}

func TestCSVSnapshotterCorruptFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "run.csv")
	require.NoError(t, os.WriteFile(path, []byte("doc_id,url\nx,y\n"), 0o600))

	_, err := local.NewCSVSnapshotter(path).Load(context.Background())
	require.ErrorContains(t, err, "missing column")
	require.NotErrorIs(t, err, frontier.ErrNoSnapshot)
}

func TestCSVSnapshotterSaveErrors(t *testing.T) {
	t.Parallel()

	snap := local.NewCSVSnapshotter(filepath.Join(t.TempDir(), "missing", "run.csv"))
	require.Error(t, snap.Save(context.Background(), sampleRecords()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, local.NewCSVSnapshotter(filepath.Join(t.TempDir(), "run.csv")).Save(ctx, nil), context.Canceled)
}

func TestOpenResumesFromCSV(t *testing.T) {
	t.Parallel()

	snap := local.NewCSVSnapshotter(filepath.Join(t.TempDir(), "run.csv"))
	require.NoError(t, snap.Save(context.Background(), sampleRecords()))

	store, resumed, err := frontier.Open(context.Background(), snap, nil, nil)
	require.NoError(t, err)
	assert.True(t, resumed)
	assert.Equal(t, 2, store.Len())
	assert.Len(t, store.Pending(), 1)
}
