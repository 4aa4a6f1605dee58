package mcp

import (
	"time"

	"github.com/Aman-CERP/amanread/internal/reconcile"
	"github.com/Aman-CERP/amanread/internal/store"
)

// SearchInput defines the input schema for the search tool.
type SearchInput struct {
	Query  string `json:"query" jsonschema:"the search query"`
	Mode   string `json:"mode,omitempty" jsonschema:"lexical (exact words, default) or semantic (meaning)"`
	Limit  int    `json:"limit,omitempty" jsonschema:"maximum number of results, default 20"`
	Offset int    `json:"offset,omitempty" jsonschema:"number of results to skip"`
}

// SearchOutput defines the output schema for the search tool.
type SearchOutput struct {
	Results  []SearchHit `json:"results"`
	Total    int         `json:"total"`
	Query    string      `json:"query"`
	Mode     string      `json:"mode"`
	Degraded bool        `json:"degraded" jsonschema:"true when semantic search was requested but the index is unavailable"`
}

// SearchHit is one search result.
type SearchHit struct {
	ID         string   `json:"id"`
	URL        string   `json:"url"`
	Title      string   `json:"title"`
	Summary    string   `json:"summary"`
	Tags       []string `json:"tags"`
	ReadStatus bool     `json:"read_status"`
	Score      *float32 `json:"score,omitempty" jsonschema:"similarity between 0 and 1, semantic mode only"`
	Preview    string   `json:"preview,omitempty"`
}

// DocumentOutput is a document as returned by the tools.
type DocumentOutput struct {
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

// AddDocumentInput defines the input schema for the add_document tool.
type AddDocumentInput struct {
	URL         string   `json:"url" jsonschema:"web URL, YouTube link, feed URL or local file path"`
	Content     string   `json:"content,omitempty" jsonschema:"raw content to parse instead of fetching the URL"`
	ContentType string   `json:"content_type,omitempty" jsonschema:"format hint for content, e.g. text/html or text/markdown"`
	Title       string   `json:"title,omitempty" jsonschema:"overrides the parsed title"`
	Tags        []string `json:"tags,omitempty"`
	SourceType  string   `json:"source_type,omitempty" jsonschema:"web_article, youtube, feed, markdown, pdf, docx or upload"`
}

// AddDocumentOutput defines the output schema for the add_document tool.
type AddDocumentOutput struct {
	Document         DocumentOutput `json:"document"`
	Parser           string         `json:"parser"`
	EnrichmentQueued bool           `json:"enrichment_queued" jsonschema:"false when the summary and vector will be filled in by the next sync"`
}

// GetDocumentInput defines the input schema for the get_document tool.
type GetDocumentInput struct {
	ID string `json:"id" jsonschema:"document id"`
}

// ListDocumentsInput defines the input schema for the list_documents tool.
type ListDocumentsInput struct {
	Limit      int      `json:"limit,omitempty" jsonschema:"page size, default 20"`
	Offset     int      `json:"offset,omitempty"`
	Tags       []string `json:"tags,omitempty" jsonschema:"documents with any of these tags"`
	ReadStatus *bool    `json:"read_status,omitempty"`
}

// ListDocumentsOutput defines the output schema for the list_documents tool.
type ListDocumentsOutput struct {
	Documents []DocumentOutput `json:"documents"`
	Total     int              `json:"total"`
	Limit     int              `json:"limit"`
	Offset    int              `json:"offset"`
}

// UpdateDocumentInput defines the input schema for the update_document tool.
// Omitted fields are left unchanged; tags, when given, replace the set.
type UpdateDocumentInput struct {
	ID         string   `json:"id"`
	Title      *string  `json:"title,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	ReadStatus *bool    `json:"read_status,omitempty"`
}

// DeleteDocumentInput defines the input schema for the delete_document tool.
type DeleteDocumentInput struct {
	ID string `json:"id"`
}

// DeleteDocumentOutput defines the output schema for the delete_document tool.
type DeleteDocumentOutput struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

// ListTagsInput has no parameters.
type ListTagsInput struct{}

// ListTagsOutput defines the output schema for the list_tags tool.
type ListTagsOutput struct {
	Tags []store.TagCount `json:"tags"`
}

// SyncIndexInput defines the input schema for the sync_index tool.
type SyncIndexInput struct {
	SyncOnly    bool `json:"sync_only,omitempty" jsonschema:"only index missing documents"`
	CleanupOnly bool `json:"cleanup_only,omitempty" jsonschema:"only remove vectors of deleted documents"`
}

// SyncIndexOutput defines the output schema for the sync_index tool.
type SyncIndexOutput struct {
	Sync    *reconcile.SyncReport    `json:"sync,omitempty"`
	Cleanup *reconcile.CleanupReport `json:"cleanup,omitempty"`
}

// StatusInput has no parameters.
type StatusInput struct{}

// toDocumentOutput converts a document. Content is included on request.
func toDocumentOutput(doc *store.Document, withContent bool) DocumentOutput {
	out := DocumentOutput{
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
		out.PublishedDate = doc.PublishedDate.UTC().Format(time.RFC3339)
	}
	if withContent {
		out.Content = doc.Content
	}
	return out
}
