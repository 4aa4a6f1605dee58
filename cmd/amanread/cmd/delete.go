package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/amanread/internal/output"
)

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a document",
		Long: `Delete a document from the reading list.

The document and its tag associations are removed at once. Its vector is
removed from the semantic index as well; a vector that cannot be removed
now is cleaned up by the next 'amanread sync'.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(cmd.Context(), cmd, args[0])
		},
	}
}

func runDelete(ctx context.Context, cmd *cobra.Command, id string) error {
	out := output.New(cmd.OutOrStdout())

	return withApp(ctx, func(a *app) error {
		if err := a.lib.Delete(ctx, id); err != nil {
			return err
		}
		out.Successf("Deleted %s", id)
		return nil
	})
}
