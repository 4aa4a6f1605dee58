// Package library is the reading list as the CLI and the MCP server see
// it: ingestion, document edits, search, tags, reconciliation and health,
// each composed from the store, the similarity index and the background
// enrichment queue.
package library

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/Aman-CERP/amanread/internal/enrich"
	amerrors "github.com/Aman-CERP/amanread/internal/errors"
	"github.com/Aman-CERP/amanread/internal/fetch"
	"github.com/Aman-CERP/amanread/internal/parser"
	"github.com/Aman-CERP/amanread/internal/reconcile"
	"github.com/Aman-CERP/amanread/internal/search"
	"github.com/Aman-CERP/amanread/internal/similarity"
	"github.com/Aman-CERP/amanread/internal/store"
	"github.com/Aman-CERP/amanread/internal/summarize"
)

// Fetcher downloads a source.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*fetch.Result, error)
}

// Queue accepts enrichment jobs.
type Queue interface {
	Submit(job enrich.Job) error
	Stats() enrich.StatsSnapshot
}

// Deps are the collaborators of a Service. Fetcher may be nil, in which
// case ingestion requires inline content.
type Deps struct {
	Store      store.DocumentStore
	Index      *similarity.Index
	Parsers    *parser.Chain
	Fetcher    Fetcher
	Queue      Queue
	Summarizer summarize.Summarizer
	Router     *search.Router
	Reconciler *reconcile.Service
}

// Service implements the reading-list operations.
type Service struct {
	store      store.DocumentStore
	index      *similarity.Index
	parsers    *parser.Chain
	fetcher    Fetcher
	queue      Queue
	summarizer summarize.Summarizer
	router     *search.Router
	reconciler *reconcile.Service
}

// New creates a Service.
func New(d Deps) *Service {
	return &Service{
		store:      d.Store,
		index:      d.Index,
		parsers:    d.Parsers,
		fetcher:    d.Fetcher,
		queue:      d.Queue,
		summarizer: d.Summarizer,
		router:     d.Router,
		reconciler: d.Reconciler,
	}
}

// IngestRequest describes a document to add.
type IngestRequest struct {
	// URL identifies the document. A local path is turned into a file URL.
	URL string
	// Content, when set, is parsed instead of fetching URL.
	Content []byte
	// ContentType is a format hint such as "text/html".
	ContentType string
	// Title overrides the parsed title.
	Title      string
	Tags       []string
	SourceType store.SourceType
}

// IngestResult is the outcome of Ingest.
type IngestResult struct {
	Document *store.Document
	Parser   string
	// Queued reports whether enrichment was accepted. When false the
	// document keeps its placeholder summary until the next sync.
	Queued bool
}

// Ingest fetches (unless content is given), parses and stores a document,
// then hands it to enrichment without waiting for it. A URL that is
// already stored fails with a conflict before anything is fetched.
func (s *Service) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	rawURL, err := normalizeURL(req.URL)
	if err != nil {
		return nil, err
	}
	if req.SourceType != "" && !req.SourceType.Valid() {
		return nil, amerrors.ValidationError(fmt.Sprintf("unknown source type %q", req.SourceType), nil)
	}

	if _, err := s.store.GetByURL(ctx, rawURL); err == nil {
		return nil, amerrors.ConflictError(rawURL)
	} else if !amerrors.IsNotFound(err) {
		return nil, err
	}

	content, contentType := req.Content, req.ContentType
	if len(content) == 0 {
		if s.fetcher == nil {
			return nil, amerrors.ValidationError("content is required when fetching is disabled", nil)
		}
		res, err := s.fetcher.Fetch(ctx, rawURL)
		if err != nil {
			return nil, err
		}
		content = res.Body
		if contentType == "" {
			contentType = res.ContentType
		}
	}

	parsed, err := s.parsers.Parse(ctx, content, parser.Source{URL: rawURL, ContentType: contentType})
	if err != nil {
		return nil, err
	}

	doc := &store.Document{
		URL:           rawURL,
		Title:         parsed.Title,
		Author:        parsed.Author,
		PublishedDate: parseDate(parsed.PublishedDate),
		SourceType:    parsed.SourceType,
		Content:       parsed.Content,
		Tags:          req.Tags,
	}
	if t := strings.TrimSpace(req.Title); t != "" {
		doc.Title = t
	}
	if req.SourceType != "" {
		doc.SourceType = req.SourceType
	}

	created, err := s.store.Create(ctx, doc)
	if err != nil {
		return nil, err
	}

	result := &IngestResult{Document: created, Parser: parsed.Parser}
	if err := s.queue.Submit(enrich.Job{DocumentID: created.ID, Submitted: time.Now()}); err != nil {
		slog.Warn("enrichment_rejected",
			slog.String("document_id", created.ID),
			slog.String("error", err.Error()))
	} else {
		result.Queued = true
	}

	slog.Info("document_added",
		slog.String("document_id", created.ID),
		slog.String("url", rawURL),
		slog.String("parser", parsed.Parser),
		slog.Int("chars", len(created.Content)),
		slog.Bool("queued", result.Queued))
	return result, nil
}

// Get returns a document by id.
func (s *Service) Get(ctx context.Context, id string) (*store.Document, error) {
	return s.store.Get(ctx, id)
}

// List returns one page of documents.
func (s *Service) List(ctx context.Context, opts store.ListOptions) (*store.ListResult, error) {
	if opts.Limit < 0 || opts.Offset < 0 {
		return nil, amerrors.ValidationError("limit and offset must not be negative", nil)
	}
	return s.store.List(ctx, opts)
}

// Update applies a patch. Content and vectors are never touched.
func (s *Service) Update(ctx context.Context, id string, patch store.DocumentPatch) (*store.Document, error) {
	return s.store.Update(ctx, id, patch)
}

// Delete removes a document and then its vector. The vector delete is
// best effort; a leftover is removed by the next orphan cleanup.
func (s *Service) Delete(ctx context.Context, id string) error {
	deleted, err := s.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return amerrors.NotFoundError(id)
	}

	if err := s.index.Delete(ctx, id); err != nil && !errors.Is(err, similarity.ErrUnavailable) {
		slog.Warn("vector_delete_failed",
			slog.String("document_id", id),
			slog.String("error", err.Error()))
	}
	slog.Info("document_deleted", slog.String("document_id", id))
	return nil
}

// Search runs a lexical or semantic query.
func (s *Service) Search(ctx context.Context, req search.Request) (*search.Response, error) {
	return s.router.Search(ctx, req)
}

// Tags returns every tag with its document count.
func (s *Service) Tags(ctx context.Context) ([]store.TagCount, error) {
	return s.store.AllTags(ctx)
}

// Sync indexes documents that have no vector yet.
func (s *Service) Sync(ctx context.Context) (*reconcile.SyncReport, error) {
	return s.reconciler.Sync(ctx)
}

// CleanupOrphans removes vectors of deleted documents.
func (s *Service) CleanupOrphans(ctx context.Context) (*reconcile.CleanupReport, error) {
	return s.reconciler.CleanupOrphans(ctx)
}

// Check reports drift between the store and the index.
func (s *Service) Check(ctx context.Context) (*reconcile.CheckResult, error) {
	return s.reconciler.Check(ctx)
}

// Health describes which parts of the library are working.
type Health struct {
	Status         string               `json:"status"`
	Lexical        bool                 `json:"lexical"`
	Semantic       bool                 `json:"semantic"`
	SemanticNote   string               `json:"semantic_note,omitempty"`
	EmbeddingModel string               `json:"embedding_model,omitempty"`
	Summarizer     string               `json:"summarizer"`
	DocumentCount  int                  `json:"document_count"`
	VectorCount    int                  `json:"vector_count"`
	Enrichment     enrich.StatsSnapshot `json:"enrichment"`
}

// Health probes the summarizer and reports counts. Lexical search is
// always available; semantic search depends on the index.
func (s *Service) Health(ctx context.Context) (*Health, error) {
	count, err := s.store.Count(ctx)
	if err != nil {
		return nil, err
	}

	h := &Health{
		Status:         "healthy",
		Lexical:        true,
		Semantic:       s.index.Available(),
		EmbeddingModel: s.index.ModelName(),
		Summarizer:     "unavailable",
		DocumentCount:  count,
		VectorCount:    s.index.Count(),
		Enrichment:     s.queue.Stats(),
	}
	if !h.Semantic {
		h.SemanticNote = s.index.Reason()
		h.Status = "degraded"
	}
	if s.summarizer != nil && s.summarizer.Available(ctx) {
		h.Summarizer = "connected"
	}
	return h, nil
}

// normalizeURL validates a document URL, turning bare local paths into
// file URLs.
func normalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", amerrors.ValidationError("url is required", nil)
	}

	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		fileURL, ferr := fetch.FileURL(raw)
		if ferr != nil {
			return "", amerrors.ValidationError(fmt.Sprintf("invalid url: %s", raw), ferr)
		}
		return fileURL, nil
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		if u.Host == "" {
			return "", amerrors.ValidationError(fmt.Sprintf("invalid url: %s", raw), nil)
		}
	}
	return raw, nil
}

// parseDate reads the dates parsers emit. Anything else is dropped.
func parseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, time.RFC1123Z, time.RFC1123, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
