// Package postgres persists the crawl frontier in Postgres.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/FlorianSp2000/tuebingen-search-engine/internal/frontier"
)

const defaultTable = "frontier"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// FrontierStoreConfig controls the Postgres connection pool used for snapshots.
type FrontierStoreConfig struct {
	DSN             string
	Table           string
	RunID           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	Begin(context.Context) (pgx.Tx, error)
	Close()
}

// FrontierStore implements frontier.Snapshotter on a table keyed by
// (run_id, doc_id). Each Save upserts only the records that changed since the
// previous Save, in one transaction.
type FrontierStore struct {
	pool  pool
	table string
	runID string

	mu    sync.Mutex
	saved map[string]frontier.Record
}

// NewFrontierStore connects to Postgres using cfg.
func NewFrontierStore(ctx context.Context, cfg FrontierStoreConfig) (*FrontierStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("snapshot.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s, err := NewFrontierStoreWithPool(p, cfg.Table, cfg.RunID)
	if err != nil {
		p.Close()
		return nil, err
	}
	return s, nil
}

// NewFrontierStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewFrontierStoreWithPool(p pool, table, runID string) (*FrontierStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	if strings.TrimSpace(runID) == "" {
		return nil, fmt.Errorf("run id is required")
	}
	return &FrontierStore{
		pool:  p,
		table: table,
		runID: runID,
		saved: make(map[string]frontier.Record),
	}, nil
}

// Close releases the underlying pool resources.
func (s *FrontierStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the frontier table if it does not exist.
func (s *FrontierStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	run_id            TEXT             NOT NULL,
	seq               BIGINT           NOT NULL,
	doc_id            TEXT             NOT NULL,
	url               TEXT             NOT NULL,
	domain            TEXT             NOT NULL,
	main_domain       TEXT             NOT NULL,
	depth             INTEGER          NOT NULL,
	priority          SMALLINT         NOT NULL,
	status            TEXT             NOT NULL,
	created           TIMESTAMPTZ      NOT NULL,
	updated           TIMESTAMPTZ      NOT NULL,
	root              TEXT             NOT NULL,
	random_sort_key   DOUBLE PRECISION NOT NULL,
	features_tubingen BOOLEAN          NOT NULL DEFAULT FALSE,
	features_english  BOOLEAN          NOT NULL DEFAULT FALSE,
	PRIMARY KEY (run_id, doc_id)
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create frontier table: %w", err)
	}
	return nil
}

// Load reads the run's frontier in insertion order. A run without rows yields
// frontier.ErrNoSnapshot.
func (s *FrontierStore) Load(ctx context.Context) ([]frontier.Record, error) {
	query := fmt.Sprintf(`
SELECT doc_id, url, domain, main_domain, depth, priority, status, created, updated,
	root, random_sort_key, features_tubingen, features_english
FROM %s
WHERE run_id = $1
ORDER BY seq`, s.table)

	rows, err := s.pool.Query(ctx, query, s.runID)
	if err != nil {
		return nil, fmt.Errorf("query frontier: %w", err)
	}
	defer rows.Close()

	var records []frontier.Record
	for rows.Next() {
		var (
			rec      frontier.Record
			priority int
			status   string
		)
		if err := rows.Scan(
			&rec.DocID,
			&rec.URL,
			&rec.Domain,
			&rec.MainDomain,
			&rec.Depth,
			&priority,
			&status,
			&rec.Created,
			&rec.Updated,
			&rec.Root,
			&rec.RandomSortKey,
			&rec.FeaturesTubingen,
			&rec.FeaturesEnglish,
		); err != nil {
			return nil, fmt.Errorf("scan frontier row: %w", err)
		}
		rec.Priority = frontier.Priority(priority)
		if rec.Status, err = frontier.ParseStatus(status); err != nil {
			return nil, fmt.Errorf("frontier row %s: %w", rec.DocID, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate frontier rows: %w", err)
	}
	if len(records) == 0 {
		return nil, frontier.ErrNoSnapshot
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range records {
		s.saved[rec.DocID] = rec
	}
	return records, nil
}

// Save upserts every record that differs from what was last loaded or saved.
func (s *FrontierStore) Save(ctx context.Context, records []frontier.Record) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	type change struct {
		seq int
		rec frontier.Record
	}
	var changes []change
	for i, rec := range records {
		if prev, ok := s.saved[rec.DocID]; ok && prev == rec {
			continue
		}
		changes = append(changes, change{seq: i, rec: rec})
	}
	if len(changes) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				err = fmt.Errorf("%w (rollback: %v)", err, rbErr)
			}
		}
	}()

	query := s.upsertQuery()
	for _, c := range changes {
		if _, err = tx.Exec(ctx, query, s.upsertArgs(c.seq, c.rec)...); err != nil {
			return fmt.Errorf("upsert frontier row %s: %w", c.rec.DocID, err)
		}
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit snapshot tx: %w", err)
	}
	for _, c := range changes {
		s.saved[c.rec.DocID] = c.rec
	}
	return nil
}

func (s *FrontierStore) upsertQuery() string {
	return fmt.Sprintf(`
INSERT INTO %s (
	run_id, seq, doc_id, url, domain, main_domain, depth, priority, status,
	created, updated, root, random_sort_key, features_tubingen, features_english
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15
)
ON CONFLICT (run_id, doc_id) DO UPDATE SET
	url = EXCLUDED.url,
	domain = EXCLUDED.domain,
	main_domain = EXCLUDED.main_domain,
	depth = EXCLUDED.depth,
	priority = EXCLUDED.priority,
	status = EXCLUDED.status,
	updated = EXCLUDED.updated,
	features_tubingen = EXCLUDED.features_tubingen,
	features_english = EXCLUDED.features_english`, s.table)
}

func (s *FrontierStore) upsertArgs(seq int, rec frontier.Record) []any {
	return []any{
		s.runID,
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
