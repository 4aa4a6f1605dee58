package parser

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/Aman-CERP/amanread/internal/store"
)

// MaxFeedItems bounds how many entries of a feed are rendered.
const MaxFeedItems = 50

// FeedParser renders RSS, Atom and JSON feeds as a readable digest.
type FeedParser struct {
	ladder ladder
}

var _ Parser = (*FeedParser)(nil)

// NewFeedParser returns the feed parser.
func NewFeedParser() *FeedParser {
	p := &FeedParser{}
	p.ladder = ladder{parser: p.Name(), rungs: []rung{
		{name: "gofeed", run: parseGofeed},
		{name: "strip_tags", run: parseStripped},
	}}
	return p
}

func (p *FeedParser) Name() string { return "feed" }

// CanParse accepts feed content types and URLs ending in .rss, .atom or /feed.
func (p *FeedParser) CanParse(src Source) bool {
	ct := strings.ToLower(src.ContentType)
	for _, t := range []string{"application/rss+xml", "application/atom+xml", "application/feed+json", "application/xml", "text/xml"} {
		if strings.HasPrefix(ct, t) {
			return true
		}
	}

	path := strings.ToLower(strings.TrimRight(pathOf(src.URL), "/"))
	return strings.HasSuffix(path, ".rss") ||
		strings.HasSuffix(path, ".atom") ||
		strings.HasSuffix(path, "/feed")
}

func (p *FeedParser) Parse(ctx context.Context, content []byte, src Source) (*ParsedContent, error) {
	parsed, err := p.ladder.run(ctx, content, src)
	if err != nil {
		return nil, err
	}
	parsed.SourceType = store.SourceFeed
	return parsed, nil
}

func parseGofeed(_ context.Context, content []byte, _ Source) (*ParsedContent, error) {
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	if d := collapseSpace(stripTags(feed.Description)); d != "" {
		sb.WriteString(d)
		sb.WriteString("\n\n")
	}

	for i, item := range feed.Items {
		if i == MaxFeedItems {
			fmt.Fprintf(&sb, "... and %d more entries\n", len(feed.Items)-MaxFeedItems)
			break
		}
		fmt.Fprintf(&sb, "## %s\n", collapseSpace(item.Title))
		if item.PublishedParsed != nil {
			fmt.Fprintf(&sb, "Published: %s\n", item.PublishedParsed.UTC().Format("2006-01-02"))
		}
		if item.Link != "" {
			fmt.Fprintf(&sb, "Link: %s\n", item.Link)
		}
		body := item.Description
		if body == "" {
			body = item.Content
		}
		if text := truncateRunes(stripTags(body), ExcerptLength); text != "" {
			sb.WriteString(text)
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	parsed := &ParsedContent{
		Title:   collapseSpace(feed.Title),
		Content: strings.TrimSpace(sb.String()),
		Excerpt: truncateRunes(collapseSpace(stripTags(feed.Description)), ExcerptLength),
	}
	if len(feed.Authors) > 0 && feed.Authors[0] != nil {
		parsed.Author = feed.Authors[0].Name
	}
	if t := feed.PublishedParsed; t != nil {
		parsed.PublishedDate = t.UTC().Format(time.RFC3339)
	} else if t := feed.UpdatedParsed; t != nil {
		parsed.PublishedDate = t.UTC().Format(time.RFC3339)
	}
	return parsed, nil
}
