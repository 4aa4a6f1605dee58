// Package search dispatches a query to the lexical index in the document
// store or to the similarity index, and returns both kinds of hit in one
// envelope.
package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/Aman-CERP/amanread/internal/config"
	amerrors "github.com/Aman-CERP/amanread/internal/errors"
	"github.com/Aman-CERP/amanread/internal/similarity"
	"github.com/Aman-CERP/amanread/internal/store"
)

// Mode selects the index a query runs against.
type Mode string

const (
	// ModeLexical ranks documents by BM25 over title, content and summary.
	ModeLexical Mode = "lexical"
	// ModeSemantic ranks documents by embedding similarity.
	ModeSemantic Mode = "semantic"
)

// ParseMode parses a mode name. Empty means lexical.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeLexical:
		return ModeLexical, nil
	case ModeSemantic:
		return ModeSemantic, nil
	default:
		return "", amerrors.ValidationError(fmt.Sprintf("unknown search mode %q", s), nil).
			WithSuggestion("Use lexical or semantic")
	}
}

// Request is one search.
type Request struct {
	Query string
	Mode  Mode // empty uses the configured default
	Limit int  // <= 0 uses the configured default
	// Offset skips that many ranked hits.
	Offset int
}

// Result is one ranked document. Score is set for semantic hits only.
type Result struct {
	Document *store.Document
	Score    *float32
	Preview  string
}

// Response is the uniform envelope for both modes.
type Response struct {
	Results []Result
	Total   int
	Query   string
	Mode    Mode

	// Degraded is set when semantic search was asked for but the index is
	// unavailable or cannot embed the query; Results is then empty.
	Degraded bool
}

// Lexical is the part of the document store the router reads.
type Lexical interface {
	SearchLexical(ctx context.Context, query string, limit int) ([]*store.Document, error)
	Get(ctx context.Context, id string) (*store.Document, error)
}

// Semantic is the part of the similarity index the router reads.
type Semantic interface {
	Available() bool
	Query(ctx context.Context, text string, limit int) ([]similarity.Match, error)
}

// Config bounds result counts.
type Config struct {
	DefaultLimit int
	MaxLimit     int
	DefaultMode  Mode
}

// DefaultConfig returns the stock limits.
func DefaultConfig() Config {
	return Config{DefaultLimit: 20, MaxLimit: 100, DefaultMode: ModeLexical}
}

// ConfigFrom maps the search section of the configuration.
func ConfigFrom(cfg config.SearchConfig) Config {
	mode, err := ParseMode(cfg.DefaultMode)
	if err != nil {
		mode = ModeLexical
	}
	return Config{DefaultLimit: cfg.DefaultLimit, MaxLimit: cfg.MaxLimit, DefaultMode: mode}
}
