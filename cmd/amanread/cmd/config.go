package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/amanread/internal/config"
	"github.com/Aman-CERP/amanread/internal/output"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Manage the amanread configuration.

Configuration precedence (lowest to highest):
  1. Built-in defaults
  2. User config (~/.config/amanread/config.yaml)
  3. Project config (.amanread.yaml in the working directory)
  4. .env in the working directory (never overrides the environment)
  5. Environment variables (AMANREAD_*)`,
		Example: `  # Write the defaults to the user config file
  amanread config init

  # Show the effective configuration
  amanread config show

  # Print the user config file path
  amanread config path`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the user configuration file",
		Long: `Write the default configuration to ~/.config/amanread/config.yaml
(or $XDG_CONFIG_HOME/amanread/config.yaml).

With --force an existing file is backed up next to itself before it is
replaced; the three newest backups are kept.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigInit(cmd, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing configuration")

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	var (
		jsonOutput bool
		source     string
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigShow(cmd, jsonOutput, source)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().StringVar(&source, "source", "merged", "Config source: merged, defaults")

	return cmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the user config file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), config.GetUserConfigPath())
			return err
		},
	}
}

func runConfigInit(cmd *cobra.Command, force bool) error {
	out := output.New(cmd.OutOrStdout())
	path := config.GetUserConfigPath()

	if config.UserConfigExists() {
		if !force {
			out.Warning("User configuration already exists")
			out.Statusf("", "Location: %s", path)
			out.Status("", "Use --force to replace it with the defaults (a backup is kept)")
			return nil
		}

		backup, err := config.BackupFile(path)
		if err != nil {
			return err
		}
		if backup != "" {
			out.Statusf("", "Backed up to %s", backup)
		}
	}

	if err := config.NewConfig().WriteYAML(path); err != nil {
		return err
	}

	out.Success("Wrote user configuration")
	out.Statusf("", "Location: %s", path)
	out.Status("", "Edit it, then check the result with 'amanread config show'")
	return nil
}

func runConfigShow(cmd *cobra.Command, jsonOutput bool, source string) error {
	var cfg *config.Config
	switch source {
	case "merged", "":
		loaded, err := loadConfig()
		if err != nil {
			return err
		}
		cfg = loaded
	case "defaults":
		cfg = config.NewConfig()
	default:
		return fmt.Errorf("unknown config source %q (valid: merged, defaults)", source)
	}

	out := output.New(cmd.OutOrStdout())
	if jsonOutput {
		return out.JSON(cfg)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}
