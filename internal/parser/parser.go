// Package parser turns fetched bytes into normalized document text.
//
// A Chain holds parsers in a declared order and the first whose CanParse
// accepts the source wins. Each parser works through its own ladder of
// extraction strategies, so a parse that has been selected always yields
// something readable.
package parser

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	amerrors "github.com/Aman-CERP/amanread/internal/errors"
	"github.com/Aman-CERP/amanread/internal/store"
)

// Source identifies what is being parsed.
type Source struct {
	// URL is the document URL or a file:// path.
	URL string
	// ContentType is the format hint, usually a MIME type. May be empty.
	ContentType string
}

// ParsedContent is the output of a parser. It is not persisted as such.
type ParsedContent struct {
	Title         string
	Content       string
	Author        string
	PublishedDate string
	Excerpt       string

	SourceType store.SourceType
	Parser     string
}

// Parser extracts text from one family of formats.
type Parser interface {
	Name() string
	CanParse(src Source) bool
	Parse(ctx context.Context, content []byte, src Source) (*ParsedContent, error)
}

// Chain selects the first parser that accepts a source.
type Chain struct {
	parsers []Parser
}

// NewChain returns a chain that tries parsers in the given order.
func NewChain(parsers ...Parser) *Chain {
	return &Chain{parsers: append([]Parser(nil), parsers...)}
}

// Options configures DefaultChain.
type Options struct {
	// Transcripts fetches YouTube captions. Nil disables transcripts.
	Transcripts TranscriptFetcher
}

// DefaultChain returns YouTube, Feed, HTML then Text. YouTube precedes
// HTML because watch pages are HTML too; Feed precedes HTML because feeds
// are usually served from http URLs.
func DefaultChain(opts Options) *Chain {
	return NewChain(
		NewYouTubeParser(opts.Transcripts),
		NewFeedParser(),
		NewHTMLParser(),
		NewTextParser(),
	)
}

// Names lists the parsers in order.
func (c *Chain) Names() []string {
	names := make([]string, len(c.parsers))
	for i, p := range c.parsers {
		names[i] = p.Name()
	}
	return names
}

// Select returns the parser that would handle src, or nil.
func (c *Chain) Select(src Source) Parser {
	for _, p := range c.parsers {
		if p.CanParse(src) {
			return p
		}
	}
	return nil
}

// Parse runs the selected parser. With no match it returns a no-parser
// error naming the source and hint.
func (c *Chain) Parse(ctx context.Context, content []byte, src Source) (*ParsedContent, error) {
	p := c.Select(src)
	if p == nil {
		return nil, amerrors.NoParserError(src.URL, src.ContentType)
	}

	slog.Debug("parser_selected",
		slog.String("parser", p.Name()),
		slog.String("url", src.URL),
		slog.String("content_type", src.ContentType),
		slog.Int("bytes", len(content)))

	parsed, err := p.Parse(ctx, content, src)
	if err != nil {
		var ae *amerrors.AmanError
		if errors.As(err, &ae) {
			return nil, err
		}
		return nil, amerrors.InternalError("parser "+p.Name()+" failed", err).
			WithDetail("url", src.URL)
	}

	if strings.TrimSpace(parsed.Title) == "" {
		parsed.Title = "Untitled"
	}
	if parsed.Excerpt == "" {
		parsed.Excerpt = excerpt(parsed.Content)
	}
	if parsed.Parser == "" {
		parsed.Parser = p.Name()
	}
	return parsed, nil
}
