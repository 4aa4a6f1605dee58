package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Aman-CERP/amanread/internal/store"
)

// YouTubeParser turns a video page into its transcript. Parsing succeeds
// even without a transcript: the content then explains why none is present.
type YouTubeParser struct {
	transcripts TranscriptFetcher
}

var _ Parser = (*YouTubeParser)(nil)

var (
	// videoPathPatterns match the path of a youtube.com URL.
	videoPathPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^/(?:embed|v|shorts|live)/([a-zA-Z0-9_-]{11})(?:/|$)`),
	}
	shortPathRegex = regexp.MustCompile(`^/([a-zA-Z0-9_-]{11})(?:/|$)`)
	channelPatterns = []*regexp.Regexp{
		regexp.MustCompile(`"author":"([^"]+)"`),
		regexp.MustCompile(`"ownerChannelName":"([^"]+)"`),
	}
	youtubeSuffixRegex = regexp.MustCompile(`(?i)\s*[-|]\s*YouTube\s*$`)
	bracketCueRegex    = regexp.MustCompile(`\[.*?\]`)
	sentenceEndRegex   = regexp.MustCompile(`[.!?]+`)
)

// ErrNoTranscript means the video has no caption track.
var ErrNoTranscript = errors.New("no transcript available")

// NewYouTubeParser returns the YouTube parser. A nil fetcher disables
// transcripts.
func NewYouTubeParser(transcripts TranscriptFetcher) *YouTubeParser {
	return &YouTubeParser{transcripts: transcripts}
}

func (p *YouTubeParser) Name() string { return "youtube" }

// CanParse accepts URLs that carry a video id.
func (p *YouTubeParser) CanParse(src Source) bool {
	return ExtractVideoID(src.URL) != ""
}

// ExtractVideoID returns the video id in a YouTube URL, or "". Only
// youtube.com and youtu.be hosts are considered, so a YouTube link buried
// in another site's query string is not a video.
func ExtractVideoID(rawURL string) string {
	raw := strings.TrimSpace(rawURL)
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}

	switch host := strings.ToLower(u.Hostname()); {
	case host == "youtu.be":
		if m := shortPathRegex.FindStringSubmatch(u.Path); m != nil {
			return m[1]
		}
	case host == "youtube.com" || strings.HasSuffix(host, ".youtube.com"):
		if u.Path == "/watch" {
			return u.Query().Get("v")
		}
		for _, re := range videoPathPatterns {
			if m := re.FindStringSubmatch(u.Path); m != nil {
				return m[1]
			}
		}
	}
	return ""
}

func (p *YouTubeParser) Parse(ctx context.Context, content []byte, src Source) (*ParsedContent, error) {
	id := ExtractVideoID(src.URL)
	page := toUTF8(content)

	title, author := youtubeMetadata(content, page)
	if title == "" {
		if id != "" {
			title = fmt.Sprintf("YouTube Video (%s)", id)
		} else {
			title = "YouTube Video"
		}
	}

	reason := errors.New("transcript extraction did not run")
	l := ladder{parser: p.Name(), rungs: []rung{
		{name: "transcript", run: func(ctx context.Context, _ []byte, _ Source) (*ParsedContent, error) {
			parsed, err := p.transcript(ctx, id)
			reason = err
			return parsed, err
		}},
		{name: "explanation", run: func(context.Context, []byte, Source) (*ParsedContent, error) {
			return explainMissingTranscript(id, reason), nil
		}},
	}}

	parsed, err := l.run(ctx, content, src)
	if err != nil {
		return nil, err
	}
	parsed.Title = title
	parsed.Author = author
	parsed.SourceType = store.SourceYouTube
	return parsed, nil
}

var errTranscriptsDisabled = errors.New("transcript extraction disabled")

func (p *YouTubeParser) transcript(ctx context.Context, id string) (*ParsedContent, error) {
	if id == "" {
		return nil, errors.New("no video id in url")
	}
	if p.transcripts == nil {
		return nil, errTranscriptsDisabled
	}

	segments, err := p.transcripts.Transcript(ctx, id)
	if err != nil {
		return nil, err
	}
	formatted := FormatTranscript(segments)
	if formatted == "" {
		return nil, ErrNoTranscript
	}
	return &ParsedContent{
		Content: "[YouTube Video Transcript]\n\n" + formatted,
		Excerpt: truncateRunes(formatted, ExcerptLength),
	}, nil
}

func explainMissingTranscript(id string, reason error) *ParsedContent {
	if id == "" {
		return &ParsedContent{
			Content: "[YouTube Video]\n\nUnable to extract transcript from this video.",
			Excerpt: "Transcript not available",
		}
	}

	header := fmt.Sprintf("[YouTube Video: %s]\n\n", id)
	switch {
	case errors.Is(reason, errTranscriptsDisabled):
		return &ParsedContent{
			Content: header + "Transcript extraction is not available. Enable parsing.transcripts to fetch captions.",
			Excerpt: "Transcript not available",
		}
	case reason == nil || errors.Is(reason, ErrNoTranscript):
		return &ParsedContent{
			Content: header + "No transcript available for this video. The video may not have captions enabled.",
			Excerpt: "No transcript available",
		}
	default:
		return &ParsedContent{
			Content: header + "Failed to extract transcript: " + reason.Error(),
			Excerpt: "Transcript extraction failed: " + truncateRunes(reason.Error(), 100),
		}
	}
}

// youtubeMetadata reads the title and channel from a watch page.
func youtubeMetadata(content []byte, page string) (title, author string) {
	for _, re := range channelPatterns {
		if m := re.FindStringSubmatch(page); m != nil {
			author = strings.TrimSpace(m[1])
			break
		}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return "", author
	}

	if og, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok && strings.TrimSpace(og) != "" {
		title = strings.TrimSpace(og)
	} else if t := collapseSpace(doc.Find("title").First().Text()); t != "" {
		title = youtubeSuffixRegex.ReplaceAllString(t, "")
	}

	if author == "" {
		if name, ok := doc.Find(`link[itemprop="name"]`).Attr("content"); ok {
			author = strings.TrimSpace(name)
		}
	}
	return title, author
}

// FormatTranscript joins caption segments into paragraphs. Bracketed cues
// such as [Music] are dropped, and a paragraph ends after five sentences
// or once it passes 500 characters.
func FormatTranscript(segments []TranscriptSegment) string {
	var paragraphs []string
	var current []string

	for _, seg := range segments {
		text := strings.ReplaceAll(seg.Text, "\n", " ")
		text = strings.TrimSpace(bracketCueRegex.ReplaceAllString(text, ""))
		if text == "" {
			continue
		}
		current = append(current, text)

		joined := strings.Join(current, " ")
		if len(sentenceEndRegex.FindAllString(joined, -1)) >= 5 || len(joined) > 500 {
			paragraphs = append(paragraphs, joined)
			current = nil
		}
	}
	if len(current) > 0 {
		paragraphs = append(paragraphs, strings.Join(current, " "))
	}
	return strings.Join(paragraphs, "\n\n")
}
