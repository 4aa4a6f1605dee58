package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/Aman-CERP/amanread/internal/output"
	"github.com/Aman-CERP/amanread/internal/search"
	"github.com/Aman-CERP/amanread/internal/store"
)

// detailWidth is the width of the one-line previews under list items.
const detailWidth = 100

// documentJSON is the --json form of a document.
type documentJSON struct {
	ID            string   `json:"id"`
	URL           string   `json:"url"`
	Title         string   `json:"title"`
	Author        string   `json:"author,omitempty"`
	PublishedDate string   `json:"published_date,omitempty"`
	SourceType    string   `json:"source_type"`
	Summary       string   `json:"summary"`
	Content       string   `json:"content,omitempty"`
	ReadStatus    bool     `json:"read_status"`
	Tags          []string `json:"tags"`
	CreatedAt     string   `json:"created_at"`
	UpdatedAt     string   `json:"updated_at"`
}

func toDocumentJSON(doc *store.Document, withContent bool) documentJSON {
	out := documentJSON{
		ID:         doc.ID,
		URL:        doc.URL,
		Title:      doc.Title,
		Author:     doc.Author,
		SourceType: string(doc.SourceType),
		Summary:    doc.Summary,
		ReadStatus: doc.ReadStatus,
		Tags:       doc.Tags,
		CreatedAt:  doc.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:  doc.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if out.Tags == nil {
		out.Tags = []string{}
	}
	if doc.PublishedDate != nil {
		out.PublishedDate = doc.PublishedDate.UTC().Format("2006-01-02")
	}
	if withContent {
		out.Content = doc.Content
	}
	return out
}

// searchJSON is the --json form of a search response.
type searchJSON struct {
	Query    string          `json:"query"`
	Mode     string          `json:"mode"`
	Total    int             `json:"total"`
	Degraded bool            `json:"degraded,omitempty"`
	Results  []searchHitJSON `json:"results"`
}

type searchHitJSON struct {
	documentJSON
	Score   *float32 `json:"score,omitempty"`
	Preview string   `json:"preview,omitempty"`
}

func toSearchJSON(resp *search.Response) searchJSON {
	out := searchJSON{
		Query:    resp.Query,
		Mode:     string(resp.Mode),
		Total:    resp.Total,
		Degraded: resp.Degraded,
		Results:  make([]searchHitJSON, 0, len(resp.Results)),
	}
	for _, r := range resp.Results {
		out.Results = append(out.Results, searchHitJSON{
			documentJSON: toDocumentJSON(r.Document, false),
			Score:        r.Score,
			Preview:      r.Preview,
		})
	}
	return out
}

// printDocument writes the full view of one document.
func printDocument(out *output.Writer, doc *store.Document, withContent bool) {
	out.Header(doc.Title)
	out.KeyValue("ID", doc.ID)
	out.KeyValue("URL", doc.URL)
	out.KeyValue("Type", string(doc.SourceType))
	if doc.Author != "" {
		out.KeyValue("Author", doc.Author)
	}
	if doc.PublishedDate != nil {
		out.KeyValue("Published", doc.PublishedDate.Format("2006-01-02"))
	}
	out.KeyValue("Status", readLabel(doc.ReadStatus))
	if len(doc.Tags) > 0 {
		out.KeyValue("Tags", strings.Join(doc.Tags, ", "))
	}
	out.KeyValue("Added", doc.CreatedAt.Local().Format("2006-01-02 15:04"))
	out.Newline()
	out.Text(doc.Summary)
	if withContent {
		out.Newline()
		out.Text(doc.Content)
	}
}

// printDocumentItem writes one numbered list entry.
func printDocumentItem(out *output.Writer, n int, doc *store.Document) {
	out.Item(n, doc.Title, documentDetail(doc))
}

// documentDetail is the dim line under a list item.
func documentDetail(doc *store.Document) string {
	parts := []string{doc.ID, string(doc.SourceType), readLabel(doc.ReadStatus)}
	if len(doc.Tags) > 0 {
		parts = append(parts, "#"+strings.Join(doc.Tags, " #"))
	}
	return output.Truncate(strings.Join(parts, " · "), detailWidth)
}

// printSearchResults writes a search response in the terminal layout.
func printSearchResults(out *output.Writer, resp *search.Response) {
	if resp.Degraded {
		out.Warning("Semantic search is unavailable; run 'amanread status' for details")
	}
	if len(resp.Results) == 0 {
		out.Statusf("", "No results for %q", resp.Query)
		return
	}

	out.Header(fmt.Sprintf("%s results for %q", resp.Mode, resp.Query))
	for i, r := range resp.Results {
		title := r.Document.Title
		if r.Score != nil {
			title = fmt.Sprintf("%s (%.2f)", title, *r.Score)
		}
		out.Item(i+1, title, documentDetail(r.Document))
		if r.Preview != "" {
			out.Text("   " + output.Truncate(r.Preview, detailWidth))
		}
	}
	if shown := len(resp.Results); resp.Total > shown {
		out.Newline()
		out.Statusf("", "Showing %d of %d. Use --offset to page.", shown, resp.Total)
	}
}

func readLabel(read bool) string {
	if read {
		return "read"
	}
	return "unread"
}
