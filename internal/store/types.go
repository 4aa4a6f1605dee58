// Package store is the persistence layer: the authoritative SQLite document
// store with its synchronous FTS5 index, and the HNSW vector store that backs
// the derived similarity index.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PendingSummary is the summary of a document that has not been enriched yet.
const PendingSummary = "Generating summary..."

// SourceType identifies the format a document was ingested from.
type SourceType string

const (
	SourceWebArticle SourceType = "web_article"
	SourceYouTube    SourceType = "youtube"
	SourceFeed       SourceType = "feed"
	SourceMarkdown   SourceType = "markdown"
	SourcePDF        SourceType = "pdf"
	SourceDocx       SourceType = "docx"
	SourceUpload     SourceType = "upload"
)

// Valid reports whether s is a known source type.
func (s SourceType) Valid() bool {
	switch s {
	case SourceWebArticle, SourceYouTube, SourceFeed, SourceMarkdown,
		SourcePDF, SourceDocx, SourceUpload:
		return true
	}
	return false
}

// Document is a stored document.
type Document struct {
	ID            string
	URL           string
	Title         string
	Author        string
	PublishedDate *time.Time
	SourceType    SourceType
	Content       string
	Summary       string
	ReadStatus    bool
	Tags          []string // deduplicated, sorted
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewID returns a fresh document id.
func NewID() string {
	return uuid.NewString()
}

// DocumentPatch carries the fields of an update. Nil fields are left alone;
// a non-nil Tags replaces the whole tag set.
type DocumentPatch struct {
	Title      *string
	Tags       *[]string
	ReadStatus *bool
}

// Empty reports whether the patch changes nothing.
func (p DocumentPatch) Empty() bool {
	return p.Title == nil && p.Tags == nil && p.ReadStatus == nil
}

// ListOptions filters and paginates List. Filters combine with AND; a
// document matches the tag filter when it carries any of Tags.
type ListOptions struct {
	Limit      int
	Offset     int
	Tags       []string
	ReadStatus *bool
}

// ListResult is one page of documents plus the filtered total.
type ListResult struct {
	Documents []*Document
	Total     int
}

// TagCount is a tag with the number of documents carrying it.
type TagCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// DocumentStore is the authoritative store of documents and tags.
type DocumentStore interface {
	Create(ctx context.Context, doc *Document) (*Document, error)
	Get(ctx context.Context, id string) (*Document, error)
	GetByURL(ctx context.Context, url string) (*Document, error)
	List(ctx context.Context, opts ListOptions) (*ListResult, error)
	Update(ctx context.Context, id string, patch DocumentPatch) (*Document, error)
	UpdateSummary(ctx context.Context, id, summary string) error
	Delete(ctx context.Context, id string) (bool, error)

	// SearchLexical ranks documents by BM25 over title, content and summary.
	SearchLexical(ctx context.Context, query string, limit int) ([]*Document, error)
	AllTags(ctx context.Context) ([]TagCount, error)

	// Bulk enumeration for reconciliation.
	AllIDs(ctx context.Context) ([]string, error)
	AllDocuments(ctx context.Context) ([]*Document, error)
	Count(ctx context.Context) (int, error)

	Close() error
}

// VectorResult is a single nearest-neighbour hit.
type VectorResult struct {
	ID       string
	Distance float32 // cosine distance, 0 is identical
	Score    float32 // max(0, 1-distance), within [0,1]
}

// VectorStoreConfig configures the vector store.
type VectorStoreConfig struct {
	// Dimensions is the vector length; 0 adopts the first vector's length.
	Dimensions int
	// M is HNSW max connections per layer (default: 16).
	M int
	// EfSearch is HNSW query-time search width (default: 64).
	EfSearch int
}

// DefaultVectorStoreConfig returns defaults for a store of the given dimension.
func DefaultVectorStoreConfig(dimensions int) VectorStoreConfig {
	return VectorStoreConfig{
		Dimensions: dimensions,
		M:          16,
		EfSearch:   64,
	}
}

// VectorStore is a cosine nearest-neighbour index keyed by string id.
type VectorStore interface {
	// Add inserts vectors. An existing id is replaced.
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	// Search returns up to k nearest live vectors, closest first.
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)
	// Delete removes ids; unknown ids are ignored.
	Delete(ctx context.Context, ids []string) error
	AllIDs() []string
	Contains(id string) bool
	Count() int
	Dimensions() int

	Save(path string) error
	Load(path string) error
	Close() error
}

// ErrDimensionMismatch reports a vector whose length differs from the store's.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d (delete the vectors directory and run 'amanread sync')", e.Expected, e.Got)
}
