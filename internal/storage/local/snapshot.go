package local

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/FlorianSp2000/tuebingen-search-engine/internal/frontier"
)

// CSVSnapshotter persists the frontier as a single CSV file, replaced
// atomically on every Save.
type CSVSnapshotter struct {
	path string
}

// NewCSVSnapshotter returns a snapshotter for path. The parent directory must
// exist by the first Save.
func NewCSVSnapshotter(path string) *CSVSnapshotter {
	return &CSVSnapshotter{path: path}
}

// Path returns the snapshot file location.
func (s *CSVSnapshotter) Path() string {
	return s.path
}

// Load reads the snapshot. A missing or empty file yields frontier.ErrNoSnapshot.
func (s *CSVSnapshotter) Load(_ context.Context) ([]frontier.Record, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, frontier.ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, frontier.ErrNoSnapshot
	}
	records, err := frontier.ReadCSV(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse snapshot %s: %w", filepath.Base(s.path), err)
	}
	return records, nil
}

// Save replaces the snapshot with records.
func (s *CSVSnapshotter) Save(ctx context.Context, records []frontier.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return writeFileAtomic(s.path, func(w io.Writer) error {
		return frontier.WriteCSV(w, records)
	})
}
