package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	amerrors "github.com/Aman-CERP/amanread/internal/errors"
	"github.com/Aman-CERP/amanread/internal/library"
	"github.com/Aman-CERP/amanread/internal/output"
	"github.com/Aman-CERP/amanread/internal/watcher"
)

// watchOptions holds CLI flags for watch.
type watchOptions struct {
	tags     []string
	noScan   bool
	debounce time.Duration
}

func newWatchCmd() *cobra.Command {
	var opts watchOptions

	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Add files dropped into a directory",
		Long: `Watch a directory and add every Markdown, text or HTML file that
appears in it. Files already in the directory are added first unless
--no-scan is given; files already in the library are skipped.

Removing a file from the directory does not delete its document.`,
		Example: `  amanread watch ~/Inbox
  amanread watch ~/Clippings --tag clipped`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context(), cmd, args[0], opts)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.tags, "tag", "t", nil, "Tag every imported document (repeatable)")
	cmd.Flags().BoolVar(&opts.noScan, "no-scan", false, "Skip files already in the directory")
	cmd.Flags().DurationVar(&opts.debounce, "debounce", watcher.DefaultOptions().DebounceWindow, "Wait this long for a file to settle")

	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, dir string, opts watchOptions) error {
	out := output.New(cmd.OutOrStdout())

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return withApp(ctx, func(a *app) error {
		importer := newInboxImporter(a, opts.tags)
		wopts := watcher.DefaultOptions()
		wopts.DebounceWindow = opts.debounce

		if !opts.noScan {
			report, err := importer.Scan(ctx, dir, wopts)
			if err != nil {
				return err
			}
			out.Successf("Scanned %s: %d added, %d already known, %d failed", dir, report.Added, report.Skipped, report.Failed)
		}

		w, err := watcher.NewInboxWatcher(wopts)
		if err != nil {
			return err
		}
		defer func() { _ = w.Stop() }()

		go func() {
			for err := range w.Errors() {
				slog.Warn("inbox_watch_error", amerrors.LogArgs(err)...)
			}
		}()
		go func() { _ = importer.Run(ctx, w.Events()) }()

		out.Successf("Watching %s (%s). Press Ctrl+C to stop.", dir, w.Mode())
		if err := w.Start(ctx, dir); err != nil {
			return amerrors.New(amerrors.ErrCodeFileNotFound, "cannot watch "+dir, err)
		}

		totals := importer.Totals()
		out.Newline()
		out.Successf("Stopped: %d added, %d already known, %d failed", totals.Added, totals.Skipped, totals.Failed)
		return nil
	})
}

// newInboxImporter adds each inbox file through the library, so imported
// files get the same parsing, conflict check and enrichment as 'add'.
func newInboxImporter(a *app, tags []string) *watcher.Importer {
	return watcher.NewImporter(func(ctx context.Context, path string) error {
		_, err := a.lib.Ingest(ctx, library.IngestRequest{URL: path, Tags: tags})
		return err
	})
}
