package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/FlorianSp2000/tuebingen-search-engine/internal/app"
)

func newExportCmd() *cobra.Command {
	var runID string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the corpus manifest of a run",
		Long: `Reads the frontier snapshot of a run and writes <run_id>_corpus.csv next to
it: completed pages that mention Tübingen, oldest first, deduplicated by URL.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runExport(cmd.Context(), cmd, runID)
		},
	}
	cmd.Flags().StringVar(&runID, "run-id", "", "run identifier to export (default: run.id)")
	return cmd
}

func runExport(ctx context.Context, cmd *cobra.Command, flagRunID string) error {
	rt, err := resolveRuntime(ctx)
	if err != nil {
		return err
	}
	runID := flagRunID
	if runID == "" {
		runID = rt.cfg.Run.ID
	}
	if runID == "" {
		return fmt.Errorf("--run-id or run.id is required")
	}

	res, err := app.Export(ctx, rt.cfg, runID, rt.logger)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: kept %d of %d records\n", res.Path, res.Kept, res.Records)
	return nil
}
