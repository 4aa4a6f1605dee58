package parser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	amerrors "github.com/Aman-CERP/amanread/internal/errors"
)

const (
	// MaxFallbackContent caps the text produced by last-resort rungs.
	MaxFallbackContent = 10000

	// ExcerptLength is the length of ParsedContent.Excerpt.
	ExcerptLength = 500
)

// rung is one extraction strategy.
type rung struct {
	name string
	run  func(ctx context.Context, content []byte, src Source) (*ParsedContent, error)
}

// ladder tries rungs in order. A rung that errors, panics or produces no
// text hands over to the next. The last rung must not fail on any input.
type ladder struct {
	parser string
	rungs  []rung
}

func (l ladder) run(ctx context.Context, content []byte, src Source) (*ParsedContent, error) {
	var failures []string
	for i, r := range l.rungs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		parsed, err := safeRun(ctx, r, content, src)
		if err == nil && (parsed == nil || strings.TrimSpace(parsed.Content) == "") {
			err = errors.New("no content extracted")
		}
		if err == nil {
			if parsed.Parser == "" {
				parsed.Parser = l.parser
			}
			if i > 0 {
				slog.Debug("parser_fallback_used",
					slog.String("parser", l.parser),
					slog.String("rung", r.name),
					slog.String("url", src.URL))
			}
			return parsed, nil
		}

		slog.Debug("parser_rung_failed",
			slog.String("parser", l.parser),
			slog.String("rung", r.name),
			slog.String("error", err.Error()))
		failures = append(failures, r.name+": "+err.Error())
	}

	return nil, amerrors.InternalError(
		fmt.Sprintf("%s parser: every extraction strategy failed", l.parser), nil).
		WithDetail("url", src.URL).
		WithDetail("failures", strings.Join(failures, "; "))
}

func safeRun(ctx context.Context, r rung, content []byte, src Source) (parsed *ParsedContent, err error) {
	defer func() {
		if p := recover(); p != nil {
			parsed = nil
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return r.run(ctx, content, src)
}

var (
	scriptRegex = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleRegex  = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	tagRegex    = regexp.MustCompile(`<[^>]+>`)
	spaceRegex  = regexp.MustCompile(`\s+`)
)

// stripTags removes scripts, styles and markup and collapses whitespace.
func stripTags(s string) string {
	s = scriptRegex.ReplaceAllString(s, "")
	s = styleRegex.ReplaceAllString(s, "")
	s = tagRegex.ReplaceAllString(s, " ")
	return collapseSpace(s)
}

func collapseSpace(s string) string {
	return strings.TrimSpace(spaceRegex.ReplaceAllString(s, " "))
}

// truncateRunes cuts s to at most n characters.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func excerpt(content string) string {
	return truncateRunes(strings.TrimSpace(content), ExcerptLength)
}

// toUTF8 drops invalid byte sequences.
func toUTF8(b []byte) string {
	return strings.ToValidUTF8(string(b), "")
}
