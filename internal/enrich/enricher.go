package enrich

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amerrors "github.com/Aman-CERP/amanread/internal/errors"
	"github.com/Aman-CERP/amanread/internal/similarity"
	"github.com/Aman-CERP/amanread/internal/store"
	"github.com/Aman-CERP/amanread/internal/summarize"
)

// Documents is the slice of the document store enrichment needs.
type Documents interface {
	Get(ctx context.Context, id string) (*store.Document, error)
	UpdateSummary(ctx context.Context, id, summary string) error
}

// VectorIndex is the slice of the similarity index enrichment needs.
type VectorIndex interface {
	UpsertRecord(ctx context.Context, r similarity.Record) error
}

// EnricherConfig bounds the two slow steps.
type EnricherConfig struct {
	SummaryTimeout time.Duration
	EmbedTimeout   time.Duration
}

// Enricher summarizes a document and indexes it. It implements Processor.
type Enricher struct {
	docs       Documents
	index      VectorIndex
	summarizer summarize.Summarizer
	config     EnricherConfig
}

var _ Processor = (*Enricher)(nil)

// NewEnricher wires an Enricher. Zero timeouts use the summarizer and
// embedder defaults.
func NewEnricher(docs Documents, index VectorIndex, s summarize.Summarizer, cfg EnricherConfig) *Enricher {
	if cfg.SummaryTimeout <= 0 {
		cfg.SummaryTimeout = summarize.DefaultTimeout
	}
	if cfg.EmbedTimeout <= 0 {
		cfg.EmbedTimeout = 30 * time.Second
	}
	return &Enricher{docs: docs, index: index, summarizer: s, config: cfg}
}

// Process runs one job:
//
//  1. load the document; a deleted document ends the job quietly
//  2. summarize it, storing a placeholder when the model fails
//  3. write the summary
//  4. upsert the document into the similarity index
//
// A failed upsert is returned but leaves the summary in place; the
// document is picked up again by the next sync.
func (e *Enricher) Process(ctx context.Context, job Job) error {
	doc, err := e.docs.Get(ctx, job.DocumentID)
	if err != nil {
		if amerrors.IsNotFound(err) {
			slog.Debug("enrichment_skipped_deleted", slog.String("document_id", job.DocumentID))
			return nil
		}
		return fmt.Errorf("load document: %w", err)
	}

	summary := e.summarize(ctx, doc)
	if err := e.docs.UpdateSummary(ctx, doc.ID, summary); err != nil {
		if amerrors.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("store summary: %w", err)
	}

	indexCtx, cancel := context.WithTimeout(ctx, e.config.EmbedTimeout)
	defer cancel()
	if err := e.index.UpsertRecord(indexCtx, similarity.RecordFor(doc)); err != nil {
		if errors.Is(err, similarity.ErrUnavailable) {
			return nil
		}
		return fmt.Errorf("index document: %w", err)
	}
	return nil
}

func (e *Enricher) summarize(ctx context.Context, doc *store.Document) string {
	sumCtx, cancel := context.WithTimeout(ctx, e.config.SummaryTimeout)
	defer cancel()

	summary, err := e.summarizer.Summarize(sumCtx, doc.Content, doc.Title)
	if err != nil {
		slog.Warn("summary_unavailable",
			append([]any{slog.String("document_id", doc.ID)}, amerrors.LogArgs(err)...)...)
		return summarize.Unavailable(err)
	}
	return summary
}
