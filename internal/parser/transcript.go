package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"html"
	"strings"
	"time"
)

// DefaultTranscriptTimeout bounds a whole transcript fetch.
const DefaultTranscriptTimeout = 20 * time.Second

// TranscriptSegment is one caption cue.
type TranscriptSegment struct {
	Text     string
	Start    float64
	Duration float64
}

// TranscriptFetcher returns the captions of a video.
// ErrNoTranscript means the video has none.
type TranscriptFetcher interface {
	Transcript(ctx context.Context, videoID string) ([]TranscriptSegment, error)
}

// Getter downloads a URL. fetch.Fetcher satisfies it.
type Getter interface {
	Get(ctx context.Context, rawURL string) ([]byte, error)
}

// TimedTextFetcher reads captions through YouTube's timedtext endpoint:
// the watch page lists caption tracks, and each track is an XML document
// of timed cues.
type TimedTextFetcher struct {
	getter  Getter
	timeout time.Duration
	baseURL string
}

var _ TranscriptFetcher = (*TimedTextFetcher)(nil)

// NewTimedTextFetcher returns a fetcher using g for HTTP. A non-positive
// timeout uses DefaultTranscriptTimeout.
func NewTimedTextFetcher(g Getter, timeout time.Duration) *TimedTextFetcher {
	if timeout <= 0 {
		timeout = DefaultTranscriptTimeout
	}
	return &TimedTextFetcher{getter: g, timeout: timeout, baseURL: "https://www.youtube.com"}
}

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"`
}

type timedText struct {
	Texts []struct {
		Start string `xml:"start,attr"`
		Dur   string `xml:"dur,attr"`
		Body  string `xml:",chardata"`
	} `xml:"text"`
}

// Transcript fetches the English track if there is one, else the first.
func (f *TimedTextFetcher) Transcript(ctx context.Context, videoID string) ([]TranscriptSegment, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	page, err := f.getter.Get(ctx, f.baseURL+"/watch?v="+videoID)
	if err != nil {
		return nil, fmt.Errorf("fetch watch page: %w", err)
	}

	tracks, err := captionTracks(page)
	if err != nil {
		return nil, err
	}
	track := pickTrack(tracks)
	if track == nil {
		return nil, ErrNoTranscript
	}

	body, err := f.getter.Get(ctx, track.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("fetch caption track: %w", err)
	}
	return decodeTimedText(body)
}

// captionTracks decodes the captionTracks array embedded in the player
// response of a watch page.
func captionTracks(page []byte) ([]captionTrack, error) {
	const marker = `"captionTracks":`
	i := bytes.Index(page, []byte(marker))
	if i < 0 {
		return nil, ErrNoTranscript
	}

	var tracks []captionTrack
	if err := json.NewDecoder(bytes.NewReader(page[i+len(marker):])).Decode(&tracks); err != nil {
		return nil, fmt.Errorf("decode caption tracks: %w", err)
	}
	return tracks, nil
}

func pickTrack(tracks []captionTrack) *captionTrack {
	for i, t := range tracks {
		if t.BaseURL != "" && (t.LanguageCode == "en" || strings.HasPrefix(t.LanguageCode, "en-")) {
			return &tracks[i]
		}
	}
	for i, t := range tracks {
		if t.BaseURL != "" {
			return &tracks[i]
		}
	}
	return nil
}

func decodeTimedText(body []byte) ([]TranscriptSegment, error) {
	var doc timedText
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode caption track: %w", err)
	}

	segments := make([]TranscriptSegment, 0, len(doc.Texts))
	for _, t := range doc.Texts {
		var start, dur float64
		_, _ = fmt.Sscanf(t.Start, "%g", &start)
		_, _ = fmt.Sscanf(t.Dur, "%g", &dur)
		// Cue text is HTML-escaped inside the XML.
		text := strings.TrimSpace(html.UnescapeString(t.Body))
		if text == "" {
			continue
		}
		segments = append(segments, TranscriptSegment{Text: text, Start: start, Duration: dur})
	}
	if len(segments) == 0 {
		return nil, ErrNoTranscript
	}
	return segments, nil
}
