package cmd

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/amanread/internal/output"
	"github.com/Aman-CERP/amanread/internal/reconcile"
)

func newSyncCmd() *cobra.Command {
	var (
		syncOnly    bool
		cleanupOnly bool
		rebuild     bool
		jsonOutput  bool
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Reconcile the semantic index with the document store",
		Long: `Reconcile the semantic index with the document store.

Documents without a vector are indexed, and vectors whose document was
deleted are removed. Both steps are safe to repeat. 'amanread serve'
runs the same reconciliation at startup.

--rebuild discards the semantic index and embeds every document again,
for example after changing the embedding model.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := openOptions{rebuild: rebuild}
			return runSync(cmd.Context(), cmd, opts, !cleanupOnly, !syncOnly, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&syncOnly, "sync-only", false, "Only index missing documents")
	cmd.Flags().BoolVar(&cleanupOnly, "cleanup-only", false, "Only remove orphaned vectors")
	cmd.Flags().BoolVar(&rebuild, "rebuild", false, "Discard the semantic index and re-embed every document")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.MarkFlagsMutuallyExclusive("sync-only", "cleanup-only")
	cmd.MarkFlagsMutuallyExclusive("rebuild", "cleanup-only")

	return cmd
}

// syncJSON is the --json form of a reconciliation run.
type syncJSON struct {
	Sync    *reconcile.SyncReport    `json:"sync,omitempty"`
	Cleanup *reconcile.CleanupReport `json:"cleanup,omitempty"`
}

func runSync(ctx context.Context, cmd *cobra.Command, opts openOptions, doSync, doCleanup, jsonOutput bool) error {
	out := output.New(cmd.OutOrStdout())

	return withAppOptions(ctx, opts, func(a *app) error {
		var result syncJSON
		if doSync {
			report, err := a.lib.Sync(ctx)
			if err != nil {
				return err
			}
			result.Sync = report
		}
		if doCleanup {
			report, err := a.lib.CleanupOrphans(ctx)
			if err != nil {
				return err
			}
			result.Cleanup = report
		}

		if jsonOutput {
			return out.JSON(result)
		}
		printSync(out, result)
		return nil
	})
}

func printSync(out *output.Writer, r syncJSON) {
	if s := r.Sync; s != nil {
		if s.Error != "" {
			out.Warningf("Sync skipped: %s", s.Error)
		} else {
			out.Successf("Indexed %d of %d documents (%d already indexed)", s.Added, s.TotalDocuments, s.AlreadySynced)
			if s.Failed > 0 {
				out.Warningf("%d documents failed to index; they will be retried next sync", s.Failed)
			}
		}
	}
	if c := r.Cleanup; c != nil {
		if c.Error != "" {
			out.Warningf("Cleanup skipped: %s", c.Error)
		} else {
			out.Successf("Removed %d of %d orphaned vectors", c.Removed, c.OrphansFound)
			if c.Compacted > 0 {
				out.Statusf("", "Compacted the index, dropping %d stale entries", c.Compacted)
			}
		}
	}
	if s := r.Sync; s != nil && s.Error == "" {
		out.KeyValue("Vectors", strconv.Itoa(s.VectorCount))
	}
}
