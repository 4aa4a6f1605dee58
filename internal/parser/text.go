package parser

import (
	"context"
	"path"
	"regexp"
	"strings"

	"github.com/Aman-CERP/amanread/internal/store"
)

// TextParser handles plain text and markdown.
type TextParser struct {
	ladder ladder
}

var _ Parser = (*TextParser)(nil)

var (
	headingRegex    = regexp.MustCompile(`(?m)^#{1,6}\s+(.+?)\s*#*\s*$`)
	blankLinesRegex = regexp.MustCompile(`\n{3,}`)
)

// NewTextParser returns the text parser.
func NewTextParser() *TextParser {
	p := &TextParser{}
	p.ladder = ladder{parser: p.Name(), rungs: []rung{
		{name: "normalized", run: parseNormalizedText},
		{name: "raw", run: parseRawText},
	}}
	return p
}

func (p *TextParser) Name() string { return "text" }

// CanParse accepts text/plain and text/markdown, .md, .markdown and .txt
// URLs, and any file:// path.
func (p *TextParser) CanParse(src Source) bool {
	ct := strings.ToLower(src.ContentType)
	if strings.HasPrefix(ct, "text/plain") || strings.HasPrefix(ct, "text/markdown") {
		return true
	}
	if strings.HasPrefix(strings.ToLower(src.URL), "file://") {
		return true
	}
	switch strings.ToLower(path.Ext(pathOf(src.URL))) {
	case ".md", ".markdown", ".txt":
		return true
	}
	return false
}

func (p *TextParser) Parse(ctx context.Context, content []byte, src Source) (*ParsedContent, error) {
	parsed, err := p.ladder.run(ctx, content, src)
	if err != nil {
		return nil, err
	}
	parsed.Title = textTitle(parsed.Content, src.URL)
	parsed.SourceType = textSourceType(src)
	return parsed, nil
}

func parseNormalizedText(_ context.Context, content []byte, _ Source) (*ParsedContent, error) {
	text := strings.ReplaceAll(toUTF8(content), "\r\n", "\n")
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t")
	}
	text = blankLinesRegex.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return &ParsedContent{Content: strings.TrimSpace(text)}, nil
}

// parseRawText is the last rung: it cannot fail on any input.
func parseRawText(_ context.Context, content []byte, _ Source) (*ParsedContent, error) {
	text := truncateRunes(strings.TrimSpace(toUTF8(content)), MaxFallbackContent)
	if text == "" {
		text = "[Empty document]"
	}
	return &ParsedContent{Content: text}, nil
}

// textTitle returns the first markdown heading, else the first non-blank
// line, else the file name.
func textTitle(content, rawURL string) string {
	if m := headingRegex.FindStringSubmatch(content); m != nil {
		return m[1]
	}
	for _, line := range strings.Split(content, "\n") {
		if t := strings.TrimSpace(line); t != "" && !strings.HasPrefix(t, "[") {
			return truncateRunes(t, 200)
		}
	}
	if name := path.Base(pathOf(rawURL)); name != "." && name != "/" {
		return name
	}
	return "Untitled"
}

func textSourceType(src Source) store.SourceType {
	if strings.HasPrefix(strings.ToLower(src.ContentType), "text/markdown") {
		return store.SourceMarkdown
	}
	switch strings.ToLower(path.Ext(pathOf(src.URL))) {
	case ".md", ".markdown":
		return store.SourceMarkdown
	}
	return store.SourceUpload
}
