package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/amanread/internal/output"
	"github.com/Aman-CERP/amanread/internal/store"
)

// listOptions holds CLI flags for list.
type listOptions struct {
	tags       []string
	read       bool
	unread     bool
	limit      int
	offset     int
	jsonOutput bool
}

func newListCmd() *cobra.Command {
	var opts listOptions

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List documents, newest first",
		Long: `List documents, newest first.

--tag may be repeated; a document matches when it has any of the tags.
Filters combine: 'list --tag go --unread' shows unread documents tagged go.`,
		Example: `  amanread list
  amanread list --tag go --tag rust --unread
  amanread list --limit 50 --offset 50`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runList(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.tags, "tag", "t", nil, "Only documents with any of these tags")
	cmd.Flags().BoolVar(&opts.read, "read", false, "Only read documents")
	cmd.Flags().BoolVar(&opts.unread, "unread", false, "Only unread documents")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 20, "Maximum number of documents")
	cmd.Flags().IntVar(&opts.offset, "offset", 0, "Skip this many documents")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output as JSON")
	cmd.MarkFlagsMutuallyExclusive("read", "unread")

	return cmd
}

// listJSON is the --json form of a page of documents.
type listJSON struct {
	Total     int            `json:"total"`
	Offset    int            `json:"offset"`
	Documents []documentJSON `json:"documents"`
}

func runList(ctx context.Context, cmd *cobra.Command, opts listOptions) error {
	out := output.New(cmd.OutOrStdout())

	listOpts := store.ListOptions{Limit: opts.limit, Offset: opts.offset, Tags: opts.tags}
	switch {
	case opts.read:
		read := true
		listOpts.ReadStatus = &read
	case opts.unread:
		read := false
		listOpts.ReadStatus = &read
	}

	return withApp(ctx, func(a *app) error {
		res, err := a.lib.List(ctx, listOpts)
		if err != nil {
			return err
		}

		if opts.jsonOutput {
			page := listJSON{Total: res.Total, Offset: opts.offset, Documents: make([]documentJSON, 0, len(res.Documents))}
			for _, doc := range res.Documents {
				page.Documents = append(page.Documents, toDocumentJSON(doc, false))
			}
			return out.JSON(page)
		}

		if len(res.Documents) == 0 {
			out.Status("", "No documents. Add one with 'amanread add <url>'.")
			return nil
		}
		out.Header("Reading list")
		for i, doc := range res.Documents {
			printDocumentItem(out, opts.offset+i+1, doc)
		}
		if shown := opts.offset + len(res.Documents); res.Total > shown {
			out.Newline()
			out.Statusf("", "Showing %d-%d of %d. Use --offset to page.", opts.offset+1, shown, res.Total)
		}
		return nil
	})
}
