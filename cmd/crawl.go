package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/FlorianSp2000/tuebingen-search-engine/internal/app"
)

// newCrawlCmd creates the 'crawl' subcommand, which starts a new run or
// resumes the one named by --run-id.
func newCrawlCmd() *cobra.Command {
	var runID string
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Run or resume a crawl",
		Long: `Crawls from the configured seeds until the frontier is exhausted. Passing
--run-id of an earlier run resumes it from its last persisted batch. SIGINT and
SIGTERM stop the run after discarding the in-flight batch.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCrawl(cmd.Context(), runID)
		},
	}
	cmd.Flags().StringVar(&runID, "run-id", "", "run identifier to start or resume (default: run.id or a timestamp)")
	return cmd
}

func runCrawl(ctx context.Context, flagRunID string) error {
	rt, err := resolveRuntime(ctx)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runID := app.RunID(flagRunID, rt.cfg.Run.ID, time.Now())
	a, err := app.New(ctx, rt.cfg, runID, rt.logger)
	if err != nil {
		return fmt.Errorf("initialize run %s: %w", runID, err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if cerr := a.Close(closeCtx); cerr != nil {
			rt.logger.Warn("shutdown incomplete", zap.Error(cerr))
		}
	}()

	rt.logger.Info("crawl starting", zap.String("run_id", runID), zap.Bool("resumed", a.Resumed()))
	err = a.Run(ctx)
	switch {
	case errors.Is(err, context.Canceled):
		rt.logger.Warn("crawl interrupted; resume with --run-id", zap.String("run_id", runID))
		return nil
	case err != nil:
		return fmt.Errorf("run %s: %w", runID, err)
	}

	stats := a.Stats()
	rt.logger.Info("crawl finished",
		zap.String("run_id", runID),
		zap.Int("batches", stats.Batches),
		zap.Int("completed", stats.Counts.Completed),
		zap.Int("failed", stats.Counts.Failed),
		zap.Int("relevant", stats.Counts.Relevant),
	)
	return nil
}
