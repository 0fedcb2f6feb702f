package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/FlorianSp2000/tuebingen-search-engine/internal/config"
	"github.com/FlorianSp2000/tuebingen-search-engine/internal/frontier"
	localstorage "github.com/FlorianSp2000/tuebingen-search-engine/internal/storage/local"
)

// ExportResult describes a written corpus manifest.
type ExportResult struct {
	Path    string
	Records int
	Kept    int
}

// Export reads the run's frontier snapshot and writes the corpus manifest:
// completed topical pages, oldest first, one row per final URL.
func Export(ctx context.Context, cfg config.Config, runID string, logger *zap.Logger) (ExportResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Snapshot.Backend == config.SnapshotMemory {
		return ExportResult{}, fmt.Errorf("run %s has no persisted frontier snapshot (snapshot.backend is memory)", runID)
	}
	layout, err := localstorage.NewLayout(cfg.Run.DataDir, runID)
	if err != nil {
		return ExportResult{}, err
	}
	if err := layout.Prepare(); err != nil {
		return ExportResult{}, err
	}

	a := &App{cfg: cfg, runID: runID, logger: logger.With(zap.String("run_id", runID)), layout: layout}
	defer func() {
		if closeErr := a.Close(context.Background()); closeErr != nil {
			a.logger.Warn("close snapshot backend", zap.Error(closeErr))
		}
	}()

	snap, err := a.buildSnapshotter(ctx)
	if err != nil {
		return ExportResult{}, err
	}
	records, err := snap.Load(ctx)
	if errors.Is(err, frontier.ErrNoSnapshot) {
		return ExportResult{}, fmt.Errorf("run %s has no frontier snapshot", runID)
	}
	if err != nil {
		return ExportResult{}, fmt.Errorf("load frontier snapshot: %w", err)
	}

	corpus := frontier.Corpus(records)
	manifest := localstorage.NewCSVSnapshotter(layout.ManifestPath())
	if err := manifest.Save(ctx, corpus); err != nil {
		return ExportResult{}, fmt.Errorf("write corpus manifest: %w", err)
	}
	a.logger.Info("corpus manifest written",
		zap.String("path", manifest.Path()),
		zap.Int("records", len(records)),
		zap.Int("kept", len(corpus)),
	)
	return ExportResult{Path: manifest.Path(), Records: len(records), Kept: len(corpus)}, nil
}
