package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/amanread/internal/output"
	"github.com/Aman-CERP/amanread/internal/store"
)

func newTagsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "tags",
		Short: "List tags with their document counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTags(cmd.Context(), cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runTags(ctx context.Context, cmd *cobra.Command, jsonOutput bool) error {
	out := output.New(cmd.OutOrStdout())

	return withApp(ctx, func(a *app) error {
		tags, err := a.lib.Tags(ctx)
		if err != nil {
			return err
		}
		if jsonOutput {
			if tags == nil {
				tags = []store.TagCount{}
			}
			return out.JSON(tags)
		}
		if len(tags) == 0 {
			out.Status("", "No tags yet. Tag a document with 'amanread update <id> --tag <name>'.")
			return nil
		}
		out.Header("Tags")
		for _, t := range tags {
			out.KeyValue(t.Name, fmt.Sprintf("%d", t.Count))
		}
		return nil
	})
}
