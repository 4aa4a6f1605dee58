package parser

import (
	"bytes"
	"context"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"github.com/Aman-CERP/amanread/internal/store"
)

// HTMLParser extracts article text from web pages.
type HTMLParser struct {
	ladder ladder
}

var _ Parser = (*HTMLParser)(nil)

var (
	htmlExtRegex = regexp.MustCompile(`(?i)\.html?$`)
	titleRegex   = regexp.MustCompile(`(?is)<title[^>]*>([^<]+)</title>`)
	h1Regex      = regexp.MustCompile(`(?is)<h1[^>]*>([^<]+)</h1>`)
	paraRegex    = regexp.MustCompile(`\n\s*\n`)
)

// NewHTMLParser returns the HTML parser. Extraction tries readability,
// then a goquery walk of the main content, then plain tag stripping.
func NewHTMLParser() *HTMLParser {
	p := &HTMLParser{}
	p.ladder = ladder{parser: p.Name(), rungs: []rung{
		{name: "readability", run: parseReadability},
		{name: "goquery", run: parseGoquery},
		{name: "strip_tags", run: parseStripped},
	}}
	return p
}

func (p *HTMLParser) Name() string { return "html" }

// CanParse accepts text/html, any http(s) URL, and .html/.htm paths.
func (p *HTMLParser) CanParse(src Source) bool {
	if strings.HasPrefix(strings.ToLower(src.ContentType), "text/html") {
		return true
	}
	lower := strings.ToLower(src.URL)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return true
	}
	return htmlExtRegex.MatchString(pathOf(src.URL))
}

func (p *HTMLParser) Parse(ctx context.Context, content []byte, src Source) (*ParsedContent, error) {
	parsed, err := p.ladder.run(ctx, content, src)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(parsed.Title) == "" {
		parsed.Title = htmlTitle(toUTF8(content))
	}
	parsed.SourceType = store.SourceWebArticle
	return parsed, nil
}

func parseReadability(_ context.Context, content []byte, src Source) (*ParsedContent, error) {
	pageURL, err := url.Parse(src.URL)
	if err != nil || pageURL.Scheme == "" {
		pageURL = &url.URL{Scheme: "http", Host: "localhost", Path: "/"}
	}

	article, err := readability.FromReader(bytes.NewReader(content), pageURL)
	if err != nil {
		return nil, err
	}

	text := normalizeParagraphs(article.TextContent)
	parsed := &ParsedContent{
		Title:   strings.TrimSpace(article.Title),
		Content: text,
		Author:  strings.TrimSpace(article.Byline),
		Excerpt: truncateRunes(strings.TrimSpace(article.Excerpt), ExcerptLength),
	}
	if article.PublishedTime != nil {
		parsed.PublishedDate = article.PublishedTime.UTC().Format(time.RFC3339)
	}
	return parsed, nil
}

// parseGoquery takes the text of main, article or body with page chrome removed.
func parseGoquery(_ context.Context, content []byte, _ Source) (*ParsedContent, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	doc.Find("script, style, noscript, nav, header, footer, aside, form, iframe").Remove()

	root := doc.Find("main").First()
	if root.Length() == 0 {
		root = doc.Find("article").First()
	}
	if root.Length() == 0 {
		root = doc.Find("body")
	}

	var blocks []string
	root.Find("h1, h2, h3, h4, p, li, pre, blockquote").Each(func(_ int, s *goquery.Selection) {
		if t := collapseSpace(s.Text()); t != "" {
			blocks = append(blocks, t)
		}
	})
	text := strings.Join(blocks, "\n\n")
	if text == "" {
		text = collapseSpace(root.Text())
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find("h1").First().Text())
	}
	author, _ := doc.Find(`meta[name="author"]`).Attr("content")

	return &ParsedContent{
		Title:   title,
		Content: text,
		Author:  strings.TrimSpace(author),
	}, nil
}

// parseStripped is the last rung: it cannot fail on any input.
func parseStripped(_ context.Context, content []byte, _ Source) (*ParsedContent, error) {
	raw := toUTF8(content)
	text := truncateRunes(stripTags(raw), MaxFallbackContent)
	if text == "" {
		text = "[No readable content]"
	}
	return &ParsedContent{Title: htmlTitle(raw), Content: text}, nil
}

// htmlTitle returns <title>, else the first <h1>, else "Untitled".
func htmlTitle(html string) string {
	if m := titleRegex.FindStringSubmatch(html); m != nil {
		if t := collapseSpace(m[1]); t != "" {
			return t
		}
	}
	if m := h1Regex.FindStringSubmatch(html); m != nil {
		if t := collapseSpace(m[1]); t != "" {
			return t
		}
	}
	return "Untitled"
}

// normalizeParagraphs collapses runs of spaces within lines and keeps
// blank-line paragraph breaks.
func normalizeParagraphs(s string) string {
	var paras []string
	for _, block := range paraRegex.Split(s, -1) {
		if t := collapseSpace(block); t != "" {
			paras = append(paras, t)
		}
	}
	return strings.Join(paras, "\n\n")
}

// pathOf returns the path part of a URL, or s itself when it is a plain path.
func pathOf(s string) string {
	if u, err := url.Parse(s); err == nil && u.Path != "" {
		return u.Path
	}
	return s
}
