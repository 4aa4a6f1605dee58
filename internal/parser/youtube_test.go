package parser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/amanread/internal/store"
)

const watchPage = `<html><head>
<title>Fallback Title - YouTube</title>
<meta property="og:title" content="Designing Data Systems">
</head><body>
<script>var ytInitialPlayerResponse = {"videoDetails":{"author":"Systems Channel"},
"captions":{"playerCaptionsTracklistRenderer":{"captionTracks":[
{"baseUrl":"https://www.youtube.com/api/timedtext?v=abcdefghijk&lang=de","name":{"runs":[{"text":"German"}]},"languageCode":"de"},
{"baseUrl":"https://www.youtube.com/api/timedtext?v=abcdefghijk&lang=en","name":{"runs":[{"text":"English"}]},"languageCode":"en","kind":"asr"}
]}}};</script>
</body></html>`

const timedTextXML = `<?xml version="1.0" encoding="utf-8" ?><transcript>
<text start="0.0" dur="1.5">[Music]</text>
<text start="1.5" dur="2.0">Welcome back.</text>
<text start="3.5" dur="2.0">Today we talk about logs &amp;amp; indexes.</text>
</transcript>`

// fakeTranscripts returns fixed segments or an error.
type fakeTranscripts struct {
	segments []TranscriptSegment
	err      error
	calls    []string
}

func (f *fakeTranscripts) Transcript(_ context.Context, id string) ([]TranscriptSegment, error) {
	f.calls = append(f.calls, id)
	return f.segments, f.err
}

// mapGetter serves fixed bodies by URL.
type mapGetter map[string]string

func (m mapGetter) Get(_ context.Context, rawURL string) ([]byte, error) {
	body, ok := m[rawURL]
	if !ok {
		return nil, fmt.Errorf("unexpected url %s", rawURL)
	}
	return []byte(body), nil
}

func TestExtractVideoID(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://youtube.com/embed/dQw4w9WgXcQ?start=3", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/v/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/shorts/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/watch?feature=share&v=abc", "abc"},
		{"https://www.youtube.com/channel/UC123", ""},
		{"https://vimeo.com/12345", ""},
		{"youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://m.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://example.com/?ref=youtu.be/abcdefghijk", ""},
		{"https://example.com/mirror/youtube.com/watch?v=abcdefghijk", ""},
		{"https://notyoutube.com/watch?v=abcdefghijk", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtractVideoID(tt.url), tt.url)
	}
}

func TestYouTubeParser_CanParseOnlyYouTubeHosts(t *testing.T) {
	p := NewYouTubeParser(nil)

	assert.True(t, p.CanParse(Source{URL: "https://youtu.be/abcdefghijk"}))
	assert.False(t, p.CanParse(Source{URL: "https://example.com/?ref=youtu.be/abcdefghijk"}))
}

func TestYouTubeParser_WithTranscript(t *testing.T) {
	// Given: a fetcher returning cues including a bracketed cue
	fetcher := &fakeTranscripts{segments: []TranscriptSegment{
		{Text: "[Applause]"},
		{Text: "Hello and welcome."},
		{Text: "Let's begin."},
	}}
	p := NewYouTubeParser(fetcher)

	// When: parsing the watch page
	got, err := p.Parse(context.Background(), []byte(watchPage), Source{URL: "https://youtu.be/abcdefghijk"})

	// Then: metadata comes from the page and the transcript is the content
	require.NoError(t, err)
	assert.Equal(t, []string{"abcdefghijk"}, fetcher.calls)
	assert.Equal(t, "Designing Data Systems", got.Title)
	assert.Equal(t, "Systems Channel", got.Author)
	assert.Equal(t, "[YouTube Video Transcript]\n\nHello and welcome. Let's begin.", got.Content)
	assert.Equal(t, "Hello and welcome. Let's begin.", got.Excerpt)
	assert.Equal(t, store.SourceYouTube, got.SourceType)
}

func TestYouTubeParser_DegradesWithoutTranscript(t *testing.T) {
	url := "https://www.youtube.com/watch?v=abcdefghijk"
	tests := []struct {
		name    string
		fetcher TranscriptFetcher
		content string
		excerpt string
	}{
		{
			"no fetcher", nil,
			"[YouTube Video: abcdefghijk]\n\nTranscript extraction is not available. Enable parsing.transcripts to fetch captions.",
			"Transcript not available",
		},
		{
			"no captions", &fakeTranscripts{err: ErrNoTranscript},
			"[YouTube Video: abcdefghijk]\n\nNo transcript available for this video. The video may not have captions enabled.",
			"No transcript available",
		},
		{
			"only cues", &fakeTranscripts{segments: []TranscriptSegment{{Text: "[Music]"}}},
			"[YouTube Video: abcdefghijk]\n\nNo transcript available for this video. The video may not have captions enabled.",
			"No transcript available",
		},
		{
			"fetch error", &fakeTranscripts{err: errors.New("connection reset")},
			"[YouTube Video: abcdefghijk]\n\nFailed to extract transcript: connection reset",
			"Transcript extraction failed: connection reset",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewYouTubeParser(tt.fetcher).Parse(context.Background(), nil, Source{URL: url})
			require.NoError(t, err)
			assert.Equal(t, tt.content, got.Content)
			assert.Equal(t, tt.excerpt, got.Excerpt)
			assert.Equal(t, "YouTube Video (abcdefghijk)", got.Title)
		})
	}
}

func TestYouTubeParser_TitleFallsBackToTitleTag(t *testing.T) {
	page := `<html><head><title>Plain Talk - YouTube</title></head><body>
<link itemprop="name" content="Talk Channel"></body></html>`

	got, err := NewYouTubeParser(nil).Parse(context.Background(), []byte(page), Source{URL: "https://youtu.be/abcdefghijk"})
	require.NoError(t, err)
	assert.Equal(t, "Plain Talk", got.Title)
	assert.Equal(t, "Talk Channel", got.Author)
}

func TestFormatTranscript_Paragraphs(t *testing.T) {
	var segs []TranscriptSegment
	for i := 1; i <= 7; i++ {
		segs = append(segs, TranscriptSegment{Text: fmt.Sprintf("Sentence %d.", i)})
	}

	got := FormatTranscript(segs)
	assert.Equal(t, "Sentence 1. Sentence 2. Sentence 3. Sentence 4. Sentence 5.\n\nSentence 6. Sentence 7.", got)

	long := []TranscriptSegment{{Text: strings.Repeat("word ", 120)}, {Text: "tail"}}
	assert.Equal(t, 2, len(strings.Split(FormatTranscript(long), "\n\n")))

	assert.Empty(t, FormatTranscript(nil))
}

func TestTimedTextFetcher(t *testing.T) {
	// Given: a watch page listing German then English tracks
	getter := mapGetter{
		"https://www.youtube.com/watch?v=abcdefghijk":                 watchPage,
		"https://www.youtube.com/api/timedtext?v=abcdefghijk&lang=en": timedTextXML,
	}
	f := NewTimedTextFetcher(getter, 0)

	// When: fetching the transcript
	segs, err := f.Transcript(context.Background(), "abcdefghijk")

	// Then: the English track is decoded with entities resolved
	require.NoError(t, err)
	require.Len(t, segs, 3)
	assert.Equal(t, "[Music]", segs[0].Text)
	assert.Equal(t, 1.5, segs[1].Start)
	assert.Equal(t, "Today we talk about logs & indexes.", segs[2].Text)
}

func TestTimedTextFetcher_NoTracks(t *testing.T) {
	getter := mapGetter{"https://www.youtube.com/watch?v=abcdefghijk": "<html>no captions</html>"}

	_, err := NewTimedTextFetcher(getter, 0).Transcript(context.Background(), "abcdefghijk")
	assert.ErrorIs(t, err, ErrNoTranscript)
}
