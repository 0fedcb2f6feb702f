package local

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	runDirPrefix = "mse_"
	pageDirName  = "html"
)

// Layout names the files of one run below a data directory:
//
//	<data_dir>/mse_<run_id>/<run_id>.csv
//	<data_dir>/mse_<run_id>/html/<doc_id>.html
type Layout struct {
	DataDir string
	RunID   string
}

// NewLayout validates that dataDir exists and is a directory. It does not
// create anything; call Prepare for that.
func NewLayout(dataDir, runID string) (Layout, error) {
	dataDir = strings.TrimSpace(dataDir)
	runID = strings.TrimSpace(runID)
	if dataDir == "" {
		return Layout{}, errors.New("data directory is required")
	}
	if runID == "" || strings.ContainsAny(runID, `/\`) || runID == "." || runID == ".." {
		return Layout{}, fmt.Errorf("invalid run id %q", runID)
	}
	info, err := os.Stat(dataDir)
	if err != nil {
		return Layout{}, fmt.Errorf("stat data directory: %w", err)
	}
	if !info.IsDir() {
		return Layout{}, fmt.Errorf("data directory %s is not a directory", dataDir)
	}
	return Layout{DataDir: dataDir, RunID: runID}, nil
}

// RunDir is the directory scoping everything the run writes.
func (l Layout) RunDir() string {
	return filepath.Join(l.DataDir, runDirPrefix+l.RunID)
}

// SnapshotPath is the frontier CSV of the run.
func (l Layout) SnapshotPath() string {
	return filepath.Join(l.RunDir(), l.RunID+".csv")
}

// ManifestPath is the corpus manifest written by the export command.
func (l Layout) ManifestPath() string {
	return filepath.Join(l.RunDir(), l.RunID+"_corpus.csv")
}

// PageDir is the blob path prefix for raw pages, relative to RunDir.
func (Layout) PageDir() string {
	return pageDirName
}

// Prepare creates the run directory and its page directory.
func (l Layout) Prepare() error {
	if err := os.MkdirAll(filepath.Join(l.RunDir(), pageDirName), 0o750); err != nil {
		return fmt.Errorf("create run directory: %w", err)
	}
	return nil
}
