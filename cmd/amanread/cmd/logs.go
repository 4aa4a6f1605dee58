package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"regexp"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/amanread/internal/logging"
	"github.com/Aman-CERP/amanread/internal/output"
)

// logsOptions holds CLI flags for logs.
type logsOptions struct {
	follow  bool
	lines   int
	level   string
	filter  string
	noColor bool
	logFile string
}

func newLogsCmd() *cobra.Command {
	var opts logsOptions

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "View amanread logs",
		Long: `View and tail the amanread log in <data_dir>/logs/amanread.log.

By default the last 50 lines are shown. Use -f to follow new entries.`,
		Example: `  amanread logs
  amanread logs -f
  amanread logs --level warn
  amanread logs --filter enrichment`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLogs(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.follow, "follow", "f", false, "Follow log output (like tail -f)")
	cmd.Flags().IntVarP(&opts.lines, "lines", "n", 50, "Number of lines to show")
	cmd.Flags().StringVar(&opts.level, "level", "", "Minimum level (debug|info|warn|error)")
	cmd.Flags().StringVar(&opts.filter, "filter", "", "Only lines matching this pattern (regex)")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")
	cmd.Flags().StringVar(&opts.logFile, "file", "", "Path to a log file")

	return cmd
}

func runLogs(ctx context.Context, cmd *cobra.Command, opts logsOptions) error {
	var dataDir string
	if opts.logFile == "" {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		dataDir = cfg.Storage.DataDir
	}

	path, err := logging.FindLogFile(opts.logFile, dataDir)
	if err != nil {
		return err
	}

	var pattern *regexp.Regexp
	if opts.filter != "" {
		pattern, err = regexp.Compile(opts.filter)
		if err != nil {
			return fmt.Errorf("invalid filter pattern: %w", err)
		}
	}

	w := cmd.OutOrStdout()
	viewer := logging.NewViewer(logging.ViewerConfig{
		Level:   opts.level,
		Pattern: pattern,
		NoColor: opts.noColor || !output.IsTTY(w) || output.DetectNoColor(),
	}, w)

	fmt.Fprintf(cmd.ErrOrStderr(), "Log file: %s\n", path)

	entries, err := viewer.Tail(path, opts.lines)
	if err != nil {
		return err
	}
	viewer.Print(entries)

	if !opts.follow {
		return nil
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	stream := make(chan logging.Entry)
	errc := make(chan error, 1)
	go func() {
		errc <- viewer.Follow(ctx, path, stream)
	}()
	for {
		select {
		case entry := <-stream:
			viewer.Print([]logging.Entry{entry})
		case err := <-errc:
			return err
		}
	}
}
