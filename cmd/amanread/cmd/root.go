// Package cmd provides the CLI commands for amanread.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/amanread/internal/config"
	amerrors "github.com/Aman-CERP/amanread/internal/errors"
	"github.com/Aman-CERP/amanread/internal/profiling"
	"github.com/Aman-CERP/amanread/pkg/version"
)

// Global flags
var (
	debugMode   bool
	dataDirFlag string

	profileOpts    profiling.Options
	profileSession *profiling.Session
)

// NewRootCmd creates the root command for the amanread CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "amanread",
		Short: "Personal reading list with lexical and semantic search",
		Long: `amanread keeps a local reading list of articles, videos, feeds and notes.

Documents are searchable immediately by keyword. Summaries and semantic
search vectors are filled in by background workers using a local Ollama
when one is available.

Run 'amanread serve' to expose the library to an MCP client.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("amanread version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "", "Data directory (default ~/.amanread)")
	cmd.PersistentFlags().StringVar(&profileOpts.CPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&profileOpts.Heap, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&profileOpts.Trace, "profile-trace", "", "Write execution trace to file")

	cmd.PersistentPreRunE = startProfiling
	cmd.PersistentPostRunE = stopProfiling

	// Documents
	cmd.AddCommand(newAddCmd())
	cmd.AddCommand(newShowCmd())
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newUpdateCmd())
	cmd.AddCommand(newDeleteCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newTagsCmd())

	// Maintenance
	cmd.AddCommand(newSyncCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	err := NewRootCmd().Execute()
	// PersistentPostRunE does not run after a failed command.
	if stopErr := stopProfiling(nil, nil); err == nil {
		err = stopErr
	}
	return err
}

// loadConfig resolves the effective configuration for the working directory
// and applies the global flags on top of it.
func loadConfig() (*config.Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}

	cfg, err := config.Load(wd)
	if err != nil {
		return nil, amerrors.ConfigError("failed to load configuration", err).
			WithSuggestion("Check ~/.config/amanread/config.yaml, .amanread.yaml and AMANREAD_* variables")
	}

	if dataDirFlag != "" {
		cfg.Storage.DataDir = dataDirFlag
	}
	if debugMode {
		cfg.Server.LogLevel = "debug"
	}
	return cfg, nil
}

// startProfiling begins the profiles requested by the --profile-* flags.
func startProfiling(_ *cobra.Command, _ []string) error {
	if !profileOpts.Enabled() {
		return nil
	}
	s, err := profiling.Start(profileOpts)
	if err != nil {
		return fmt.Errorf("failed to start profiling: %w", err)
	}
	profileSession = s
	return nil
}

// stopProfiling flushes the running profiles. Safe to call when none are
// running.
func stopProfiling(_ *cobra.Command, _ []string) error {
	if profileSession == nil {
		return nil
	}
	err := profileSession.Stop()
	profileSession = nil
	return err
}
