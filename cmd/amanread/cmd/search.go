package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/amanread/internal/output"
	"github.com/Aman-CERP/amanread/internal/search"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	semantic   bool
	lexical    bool
	limit      int
	offset     int
	jsonOutput bool
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the reading list",
		Long: `Search the reading list.

Lexical search (the default) matches words in titles, summaries and full
text, ranked by BM25. Semantic search (--semantic) finds documents about
the same thing even when the words differ; it needs the semantic index,
which is filled in after documents are summarized.`,
		Example: `  amanread search raft consensus
  amanread search "how do garbage collectors pause" --semantic
  amanread search kubernetes --limit 5 --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.semantic, "semantic", "s", false, "Search by meaning instead of keywords")
	cmd.Flags().BoolVar(&opts.lexical, "lexical", false, "Search by keywords even when semantic is the configured default")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results (default from config)")
	cmd.Flags().IntVar(&opts.offset, "offset", 0, "Skip this many results")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output as JSON")
	cmd.MarkFlagsMutuallyExclusive("semantic", "lexical")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	out := output.New(cmd.OutOrStdout())

	req := search.Request{Query: query, Limit: opts.limit, Offset: opts.offset}
	switch {
	case opts.semantic:
		req.Mode = search.ModeSemantic
	case opts.lexical:
		req.Mode = search.ModeLexical
	}

	return withApp(ctx, func(a *app) error {
		slog.Info("search_started",
			slog.String("query", query),
			slog.String("mode", string(req.Mode)),
			slog.Int("limit", opts.limit))

		resp, err := a.lib.Search(ctx, req)
		if err != nil {
			return err
		}

		slog.Info("search_complete",
			slog.String("mode", string(resp.Mode)),
			slog.Int("results", len(resp.Results)),
			slog.Bool("degraded", resp.Degraded))

		if opts.jsonOutput {
			return out.JSON(toSearchJSON(resp))
		}
		printSearchResults(out, resp)
		return nil
	})
}
