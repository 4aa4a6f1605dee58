package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/amanread/internal/config"
	"github.com/Aman-CERP/amanread/internal/library"
	"github.com/Aman-CERP/amanread/internal/lifecycle"
	"github.com/Aman-CERP/amanread/internal/output"
	"github.com/Aman-CERP/amanread/internal/reconcile"
)

func newStatusCmd() *cobra.Command {
	var (
		jsonOutput bool
		offline    bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show library health and index consistency",
		Long: `Show library health: document and vector counts, whether semantic
search and summaries are available, enrichment progress, drift between
the document store and the semantic index, and the state of Ollama.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd.Context(), cmd, jsonOutput, offline)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&offline, "offline", false, "Skip the Ollama check")

	return cmd
}

// statusJSON is the --json form of status.
type statusJSON struct {
	DataDir     string                  `json:"data_dir"`
	Health      *library.Health         `json:"health"`
	Consistency *reconcile.CheckResult  `json:"consistency"`
	Ollama      *lifecycle.OllamaStatus `json:"ollama,omitempty"`
}

func runStatus(ctx context.Context, cmd *cobra.Command, jsonOutput, offline bool) error {
	out := output.New(cmd.OutOrStdout())

	return withApp(ctx, func(a *app) error {
		health, err := a.lib.Health(ctx)
		if err != nil {
			return err
		}
		check, err := a.lib.Check(ctx)
		if err != nil {
			return err
		}

		status := statusJSON{DataDir: a.cfg.Storage.DataDir, Health: health, Consistency: check}
		if !offline {
			if models := ollamaModels(a.cfg); len(models) > 0 {
				probe := lifecycle.NewOllamaProbe(a.cfg.Embeddings.OllamaHost)
				status.Ollama = probe.Status(ctx, models...)
			}
		}

		if jsonOutput {
			return out.JSON(status)
		}
		printStatus(out, status)
		return nil
	})
}

// ollamaModels lists the models the configuration expects Ollama to serve.
func ollamaModels(cfg *config.Config) []string {
	var models []string
	if cfg.Embeddings.Provider != "static" && cfg.Embeddings.Model != "" {
		models = append(models, cfg.Embeddings.Model)
	}
	if cfg.Summarizer.Enabled && cfg.Summarizer.Model != "" {
		models = append(models, cfg.Summarizer.Model)
	}
	return models
}

func printStatus(out *output.Writer, s statusJSON) {
	h := s.Health

	out.Header("amanread status")
	out.KeyValue("Status", h.Status)
	out.KeyValue("Data dir", s.DataDir)
	out.KeyValue("Documents", fmt.Sprintf("%d", h.DocumentCount))
	out.KeyValue("Vectors", fmt.Sprintf("%d", h.VectorCount))
	out.Newline()

	out.Header("Search")
	out.KeyValue("Lexical", "available")
	if h.Semantic {
		out.KeyValue("Semantic", "available ("+h.EmbeddingModel+")")
	} else {
		out.KeyValue("Semantic", "unavailable: "+h.SemanticNote)
	}
	out.KeyValue("Summaries", h.Summarizer)
	out.Newline()

	e := h.Enrichment
	out.Header("Enrichment")
	out.KeyValue("Workers", fmt.Sprintf("%d (queue %d)", e.Workers, e.Capacity))
	out.KeyValue("Completed", fmt.Sprintf("%d", e.Completed))
	if e.Failed > 0 {
		out.KeyValue("Failed", fmt.Sprintf("%d", e.Failed))
	}
	if e.LastError != "" {
		out.KeyValue("Last error", output.Truncate(e.LastError, detailWidth))
	}
	out.Newline()

	c := s.Consistency
	out.Header("Consistency")
	switch {
	case !c.Available:
		out.Warning("Semantic index unavailable; consistency not checked")
	case c.Consistent():
		out.Successf("Store and semantic index agree (%d documents)", c.Checked)
	default:
		out.Warningf("%d documents without a vector, %d orphaned vectors", len(c.Missing), len(c.Orphans))
		out.Status("", "Run 'amanread sync' to reconcile")
	}

	if o := s.Ollama; o != nil {
		out.Newline()
		out.Header("Ollama")
		out.KeyValue("Host", o.Host)
		switch {
		case !o.Running:
			out.Warning("Not running")
			if !o.Installed {
				out.Text(lifecycle.InstallInstructions())
			}
		case len(o.Missing) > 0:
			out.Warningf("Missing models: %s", strings.Join(o.Missing, ", "))
			for _, m := range o.Missing {
				out.Statusf("", "ollama pull %s", m)
			}
		default:
			out.Success("Running with every configured model")
		}
	}
}
