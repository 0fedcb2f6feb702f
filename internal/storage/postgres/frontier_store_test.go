package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/FlorianSp2000/tuebingen-search-engine/internal/frontier"
)

const runID = "20230701120000"

var loadColumns = []string{
	"doc_id", "url", "domain", "main_domain", "depth", "priority", "status", "created", "updated",
	"root", "random_sort_key", "features_tubingen", "features_english",
}

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

func upsertArgs(seq int, rec frontier.Record) []any {
	return []any{
		runID,
		int64(seq),
		rec.DocID,
		rec.URL,
		rec.Domain,
		rec.MainDomain,
		rec.Depth,
		int16(rec.Priority),
		string(rec.Status),
		rec.Created,
		rec.Updated,
		rec.Root,
		rec.RandomSortKey,
		rec.FeaturesTubingen,
		rec.FeaturesEnglish,
	}
}

func expectUpsert(mock pgxmock.PgxPoolIface, seq int, rec frontier.Record) {
	mock.ExpectExec("INSERT INTO frontier").
		WithArgs(upsertArgs(seq, rec)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
}

func newMockStore(t *testing.T) (*FrontierStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	store, err := NewFrontierStoreWithPool(mock, "", runID)
	require.NoError(t, err)
	return store, mock
}

func TestSaveUpsertsOnlyChangedRecords(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	records := sampleRecords()

	mock.ExpectBegin()
	expectUpsert(mock, 0, records[0])
	expectUpsert(mock, 1, records[1])
	mock.ExpectCommit()
	require.NoError(t, store.Save(context.Background(), records))

	records[1].Status = frontier.StatusFailed
	records[1].Updated = records[1].Updated.Add(time.Second)
	mock.ExpectBegin()
	expectUpsert(mock, 1, records[1])
	mock.ExpectCommit()
	require.NoError(t, store.Save(context.Background(), records))

	require.NoError(t, store.Save(context.Background(), records))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRollsBackOnError(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	records := sampleRecords()

	mock.ExpectBegin()
	expectUpsert(mock, 0, records[0])
	mock.ExpectExec("INSERT INTO frontier").
		WithArgs(upsertArgs(1, records[1])...).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := store.Save(context.Background(), records)
	require.ErrorContains(t, err, "upsert frontier row b2: disk full")
	require.NotContains(t, err.Error(), "rollback")
	require.NoError(t, mock.ExpectationsWereMet())

	// Nothing was committed, so the retry writes both rows again.
	mock.ExpectBegin()
	expectUpsert(mock, 0, records[0])
	expectUpsert(mock, 1, records[1])
	mock.ExpectCommit()
	require.NoError(t, store.Save(context.Background(), records))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveReportsRollbackFailure(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	records := sampleRecords()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO frontier").
		WithArgs(upsertArgs(0, records[0])...).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback().WillReturnError(errors.New("conn lost"))

	err := store.Save(context.Background(), records)
	require.ErrorContains(t, err, "upsert frontier row a1: disk full")
	require.ErrorContains(t, err, "rollback: conn lost")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveBeginError(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectBegin().WillReturnError(errors.New("no connection"))

	err := store.Save(context.Background(), sampleRecords())
	require.ErrorContains(t, err, "begin snapshot tx")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadReturnsRowsInOrder(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	want := sampleRecords()
	rows := pgxmock.NewRows(loadColumns)
	for _, rec := range want {
		rows.AddRow(
			rec.DocID, rec.URL, rec.Domain, rec.MainDomain, rec.Depth, int(rec.Priority), string(rec.Status),
			rec.Created, rec.Updated, rec.Root, rec.RandomSortKey, rec.FeaturesTubingen, rec.FeaturesEnglish,
		)
	}
	mock.ExpectQuery("SELECT doc_id, url").WithArgs(runID).WillReturnRows(rows)

	got, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, want, got)

	// Loaded rows count as persisted.
	require.NoError(t, store.Save(context.Background(), got))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadWithoutRows(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT doc_id, url").WithArgs(runID).WillReturnRows(pgxmock.NewRows(loadColumns))

	_, err := store.Load(context.Background())
	require.ErrorIs(t, err, frontier.ErrNoSnapshot)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadRejectsUnknownStatus(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	rec := sampleRecords()[0]
	rows := pgxmock.NewRows(loadColumns).AddRow(
		rec.DocID, rec.URL, rec.Domain, rec.MainDomain, rec.Depth, 1, "exploded",
		rec.Created, rec.Updated, rec.Root, rec.RandomSortKey, true, false,
	)
	mock.ExpectQuery("SELECT doc_id, url").WithArgs(runID).WillReturnRows(rows)

	_, err := store.Load(context.Background())
	require.ErrorContains(t, err, "frontier row a1")
}

func TestEnsureSchema(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS frontier").WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	require.NoError(t, store.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewFrontierStoreWithPoolValidates(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewFrontierStoreWithPool(nil, "frontier", runID)
	require.ErrorContains(t, err, "pool is required")

	_, err = NewFrontierStoreWithPool(mock, "frontier; DROP TABLE x", runID)
	require.ErrorContains(t, err, "invalid table name")

	_, err = NewFrontierStoreWithPool(mock, "frontier", " ")
	require.ErrorContains(t, err, "run id is required")

	_, err = NewFrontierStore(context.Background(), FrontierStoreConfig{})
	require.ErrorContains(t, err, "snapshot.dsn is required")
}
