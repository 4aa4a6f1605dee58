package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	amerrors "github.com/Aman-CERP/amanread/internal/errors"
	"github.com/Aman-CERP/amanread/internal/mcp"
)

func newServeCmd() *cobra.Command {
	var transport string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server",
		Long: `Run the MCP server over stdio for an MCP client.

Enrichment workers run for the life of the server. When reconcile.on_startup
is set the semantic index is reconciled in the background at startup, and
reconcile.interval repeats it periodically.

Stdout carries only JSON-RPC; logs are written to <data_dir>/logs/.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), transport)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "", "Transport (default from config: stdio)")

	return cmd
}

func runServe(ctx context.Context, transport string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if transport != "" {
		cfg.Server.Transport = transport
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, cfg, openOptions{serve: true})
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	srv, err := mcp.NewServer(a.lib)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	var g errgroup.Group
	if cfg.Reconcile.OnStartup {
		g.Go(func() error {
			syncReport, cleanup, err := a.reconciler.Run(ctx)
			if err != nil {
				if ctx.Err() == nil {
					slog.Warn("startup_reconcile_failed", amerrors.LogArgs(err)...)
				}
				return nil
			}
			slog.Info("startup_reconcile_complete",
				slog.Int("added", syncReport.Added),
				slog.Int("failed", syncReport.Failed),
				slog.Int("orphans_removed", cleanup.Removed),
				slog.Int("compacted", cleanup.Compacted))
			return nil
		})
	}
	g.Go(func() error {
		a.reconciler.RunEvery(ctx, cfg.Reconcile.Interval)
		return nil
	})

	serveErr := srv.Serve(ctx, cfg.Server.Transport)
	cancel()
	_ = g.Wait()
	return serveErr
}
