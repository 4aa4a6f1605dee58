package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/amanread/internal/fetch"
	"github.com/Aman-CERP/amanread/pkg/version"
)

// versionReport is the --json payload: build info plus the identity the
// fetcher presents to the sites it downloads from.
type versionReport struct {
	version.BuildInfo
	UserAgent string `json:"user_agent"`
}

// newVersionCmd creates the version command.
func newVersionCmd() *cobra.Command {
	var jsonOutput bool
	var shortOutput bool
	var agentOutput bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version and fetcher identity",
		Long: `Print version information including git commit, build date, and Go version,
followed by the User-Agent amanread sends when fetching articles and feeds.

Site operators who see amanread in their logs can match the agent string
against this output.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()

			// --short wins over every other flag so scripts can rely on it.
			if shortOutput {
				_, err := fmt.Fprintln(out, version.Short())
				return err
			}

			if agentOutput {
				_, err := fmt.Fprintln(out, fetch.DefaultUserAgent)
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(versionReport{
					BuildInfo: version.GetInfo(),
					UserAgent: fetch.DefaultUserAgent,
				})
			}

			// Human form: build line, then the fetch identity.
			_, err := fmt.Fprintf(out, "%s\nfetch user-agent: %s\n", version.String(), fetch.DefaultUserAgent)
			return err
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")
	cmd.Flags().BoolVar(&shortOutput, "short", false, "Output only the version number")
	cmd.Flags().BoolVar(&agentOutput, "user-agent", false, "Output only the User-Agent used for fetching")

	return cmd
}
