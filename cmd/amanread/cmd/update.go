package cmd

import (
	"context"

	"github.com/spf13/cobra"

	amerrors "github.com/Aman-CERP/amanread/internal/errors"
	"github.com/Aman-CERP/amanread/internal/output"
	"github.com/Aman-CERP/amanread/internal/store"
)

func newUpdateCmd() *cobra.Command {
	var (
		title     string
		tags      []string
		clearTags bool
		read      bool
		unread    bool
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change a document's title, tags or read status",
		Long: `Change a document's title, tags or read status.

Only the flags given are applied. --tag replaces the whole tag set;
--clear-tags removes every tag. Content, summary and the semantic index
entry are never changed by an update.`,
		Example: `  amanread update 3f2c... --read
  amanread update 3f2c... --tag go --tag concurrency
  amanread update 3f2c... --title "Go memory model"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch store.DocumentPatch
			if cmd.Flags().Changed("title") {
				patch.Title = &title
			}
			if cmd.Flags().Changed("tag") {
				patch.Tags = &tags
			}
			if clearTags {
				none := []string{}
				patch.Tags = &none
			}
			switch {
			case read:
				v := true
				patch.ReadStatus = &v
			case unread:
				v := false
				patch.ReadStatus = &v
			}
			return runUpdate(cmd.Context(), cmd, args[0], patch)
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "New title")
	cmd.Flags().StringSliceVarP(&tags, "tag", "t", nil, "Replace the tags (repeatable)")
	cmd.Flags().BoolVar(&clearTags, "clear-tags", false, "Remove every tag")
	cmd.Flags().BoolVar(&read, "read", false, "Mark as read")
	cmd.Flags().BoolVar(&unread, "unread", false, "Mark as unread")
	cmd.MarkFlagsMutuallyExclusive("read", "unread")
	cmd.MarkFlagsMutuallyExclusive("tag", "clear-tags")

	return cmd
}

func runUpdate(ctx context.Context, cmd *cobra.Command, id string, patch store.DocumentPatch) error {
	if patch.Empty() {
		return amerrors.ValidationError("nothing to update", nil).
			WithSuggestion("Pass --title, --tag, --clear-tags, --read or --unread")
	}
	out := output.New(cmd.OutOrStdout())

	return withApp(ctx, func(a *app) error {
		doc, err := a.lib.Update(ctx, id, patch)
		if err != nil {
			return err
		}
		out.Successf("Updated %s", doc.ID)
		printDocument(out, doc, false)
		return nil
	})
}
