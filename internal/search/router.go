package search

import (
	"context"
	"log/slog"
	"strings"
	"time"

	amerrors "github.com/Aman-CERP/amanread/internal/errors"
)

// Router runs requests against the lexical or semantic index.
type Router struct {
	lexical  Lexical
	semantic Semantic
	config   Config
}

// NewRouter creates a router. A nil semantic index behaves as unavailable.
func NewRouter(lexical Lexical, semantic Semantic, cfg Config) *Router {
	def := DefaultConfig()
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = def.MaxLimit
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = min(def.DefaultLimit, cfg.MaxLimit)
	}
	if cfg.DefaultMode == "" {
		cfg.DefaultMode = def.DefaultMode
	}
	return &Router{lexical: lexical, semantic: semantic, config: cfg}
}

// Search validates req and dispatches it by mode. Both modes fetch
// limit+offset ranked hits and then skip offset of them.
func (r *Router) Search(ctx context.Context, req Request) (*Response, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, amerrors.New(amerrors.ErrCodeQueryEmpty, "search query is empty", nil)
	}
	if req.Offset < 0 {
		return nil, amerrors.ValidationError("offset must not be negative", nil)
	}

	mode := req.Mode
	if mode == "" {
		mode = r.config.DefaultMode
	}
	if _, err := ParseMode(string(mode)); err != nil {
		return nil, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = r.config.DefaultLimit
	}
	limit = min(limit, r.config.MaxLimit)

	start := time.Now()
	resp := &Response{Query: query, Mode: mode, Results: []Result{}}

	var err error
	switch mode {
	case ModeSemantic:
		err = r.semanticSearch(ctx, resp, limit, req.Offset)
	default:
		err = r.lexicalSearch(ctx, resp, limit, req.Offset)
	}
	if err != nil {
		return nil, err
	}
	resp.Total = len(resp.Results)

	slog.Debug("search_complete",
		slog.String("mode", string(mode)),
		slog.Int("results", resp.Total),
		slog.Bool("degraded", resp.Degraded),
		slog.Duration("duration", time.Since(start)))
	return resp, nil
}

func (r *Router) lexicalSearch(ctx context.Context, resp *Response, limit, offset int) error {
	docs, err := r.lexical.SearchLexical(ctx, resp.Query, limit+offset)
	if err != nil {
		return amerrors.New(amerrors.ErrCodeSearchFailed, "lexical search failed", err)
	}
	if offset >= len(docs) {
		return nil
	}
	for _, doc := range docs[offset:] {
		resp.Results = append(resp.Results, Result{Document: doc})
	}
	return nil
}

func (r *Router) semanticSearch(ctx context.Context, resp *Response, limit, offset int) error {
	if r.semantic == nil || !r.semantic.Available() {
		resp.Degraded = true
		return nil
	}

	matches, err := r.semantic.Query(ctx, resp.Query, limit+offset)
	if err != nil {
		// The embedding backend went away after startup: answer like an
		// unavailable index rather than failing the search.
		if amerrors.GetCode(err) == amerrors.ErrCodeEmbeddingFailed {
			slog.Warn("semantic_search_degraded", amerrors.LogArgs(err)...)
			resp.Degraded = true
			return nil
		}
		return err
	}
	if offset >= len(matches) {
		return nil
	}

	for _, m := range matches[offset:] {
		doc, err := r.lexical.Get(ctx, m.ID)
		if err != nil {
			// The index lags the store; a deleted document is not an error.
			if amerrors.IsNotFound(err) {
				slog.Debug("search_skipped_stale_vector", slog.String("document_id", m.ID))
				continue
			}
			return err
		}
		score := m.Score
		resp.Results = append(resp.Results, Result{Document: doc, Score: &score, Preview: m.Preview})
	}
	return nil
}
