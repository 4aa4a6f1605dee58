package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/amanread/internal/library"
	"github.com/Aman-CERP/amanread/internal/output"
	"github.com/Aman-CERP/amanread/internal/store"
)

// addOptions holds CLI flags for add.
type addOptions struct {
	tags        []string
	title       string
	contentType string
	sourceType  string
	wait        bool
	waitTimeout time.Duration
	jsonOutput  bool
}

func newAddCmd() *cobra.Command {
	var opts addOptions

	cmd := &cobra.Command{
		Use:   "add <url|path>",
		Short: "Add a document to the reading list",
		Long: `Fetch, parse and store a document.

Web articles, YouTube videos, RSS/Atom feeds, Markdown and plain text are
recognised. Local files can be given as a path.

The document is searchable by keyword as soon as it is stored. By default
add then waits for the summary and the semantic index to be filled in;
use --wait=false to return immediately and let 'amanread sync' catch up.`,
		Example: `  amanread add https://go.dev/blog/loopvar-preview --tag go --tag language
  amanread add ./notes/raft.md --title "Raft notes"
  amanread add https://example.com/export --type text/markdown`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdd(cmd.Context(), cmd, args[0], opts)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.tags, "tag", "t", nil, "Tag the document (repeatable)")
	cmd.Flags().StringVar(&opts.title, "title", "", "Override the parsed title")
	cmd.Flags().StringVar(&opts.contentType, "type", "", "Content type hint, e.g. text/html or text/markdown")
	cmd.Flags().StringVar(&opts.sourceType, "source", "", "Record a source type such as pdf or docx")
	cmd.Flags().BoolVar(&opts.wait, "wait", true, "Wait for the summary and semantic index")
	cmd.Flags().DurationVar(&opts.waitTimeout, "wait-timeout", 5*time.Minute, "Give up waiting after this long")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runAdd(ctx context.Context, cmd *cobra.Command, target string, opts addOptions) error {
	out := output.New(cmd.OutOrStdout())

	return withApp(ctx, func(a *app) error {
		res, err := a.lib.Ingest(ctx, library.IngestRequest{
			URL:         target,
			ContentType: opts.contentType,
			Title:       opts.title,
			Tags:        opts.tags,
			SourceType:  store.SourceType(opts.sourceType),
		})
		if err != nil {
			return err
		}

		doc := res.Document
		if opts.wait && res.Queued {
			if !opts.jsonOutput {
				out.Status("…", "Summarizing and indexing")
			}
			if err := a.drain(ctx, opts.waitTimeout); err != nil {
				return err
			}
			if enriched, err := a.lib.Get(ctx, doc.ID); err == nil {
				doc = enriched
			}
		}

		if opts.jsonOutput {
			return out.JSON(toDocumentJSON(doc, false))
		}

		out.Successf("Added %s (%s parser)", doc.Title, res.Parser)
		printDocument(out, doc, false)
		if !res.Queued {
			out.Newline()
			out.Warning("Enrichment queue was full; run 'amanread sync' to index this document")
		}
		return nil
	})
}
