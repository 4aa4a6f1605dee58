package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/amanread/internal/output"
)

func newShowCmd() *cobra.Command {
	var (
		content    bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(cmd.Context(), cmd, args[0], content, jsonOutput)
		},
	}

	cmd.Flags().BoolVarP(&content, "content", "c", false, "Include the full text")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runShow(ctx context.Context, cmd *cobra.Command, id string, content, jsonOutput bool) error {
	out := output.New(cmd.OutOrStdout())

	return withApp(ctx, func(a *app) error {
		doc, err := a.lib.Get(ctx, id)
		if err != nil {
			return err
		}
		if jsonOutput {
			return out.JSON(toDocumentJSON(doc, content))
		}
		printDocument(out, doc, content)
		return nil
	})
}
