package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	amerrors "github.com/Aman-CERP/amanread/internal/errors"
)

// newTestStore opens a file-backed store with a clock that advances one
// second per call, so created_at ordering is deterministic.
func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "amanread.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return s
}

func mustCreate(t *testing.T, s *SQLiteStore, url, title, content string, tags ...string) *Document {
	t.Helper()
	doc, err := s.Create(context.Background(), &Document{
		URL: url, Title: title, Content: content, Tags: tags,
	})
	require.NoError(t, err)
	return doc
}

func TestCreate_DistinctURLsAreIndependentlyRetrievable(t *testing.T) {
	// Given: a store
	s := newTestStore(t)
	ctx := context.Background()

	// When: creating two documents with distinct URLs
	a := mustCreate(t, s, "https://example.com/a", "A", "alpha")
	b := mustCreate(t, s, "https://example.com/b", "B", "beta")

	// Then: both are retrievable by id
	gotA, err := s.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "A", gotA.Title)

	gotB, err := s.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "B", gotB.Title)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestCreate_DuplicateURLConflictsAndLeavesStoreUnchanged(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustCreate(t, s, "https://example.com/a", "A", "alpha", "go")

	before, err := s.Count(ctx)
	require.NoError(t, err)

	_, err = s.Create(ctx, &Document{URL: "https://example.com/a", Title: "Other", Tags: []string{"new"}})
	require.Error(t, err)
	assert.True(t, amerrors.IsConflict(err))

	after, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	// The rolled-back tag was never created.
	tags, err := s.AllTags(ctx)
	require.NoError(t, err)
	assert.Equal(t, []TagCount{{Name: "go", Count: 1}}, tags)
}

func TestCreate_RoundTrip(t *testing.T) {
	// Given: a fully populated document
	s := newTestStore(t)
	ctx := context.Background()
	published := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	in := &Document{
		URL:           "https://example.com/post",
		Title:         "Post",
		Author:        "Ada",
		PublishedDate: &published,
		SourceType:    SourceFeed,
		Content:       "body text",
		Tags:          []string{"b", "a", "a", " "},
	}

	// When: creating and reading it back
	created, err := s.Create(ctx, in)
	require.NoError(t, err)
	got, err := s.Get(ctx, created.ID)
	require.NoError(t, err)

	// Then: caller fields survive, summary is pending, unread
	assert.Equal(t, in.URL, got.URL)
	assert.Equal(t, in.Title, got.Title)
	assert.Equal(t, in.Author, got.Author)
	require.NotNil(t, got.PublishedDate)
	assert.True(t, published.Equal(*got.PublishedDate))
	assert.Equal(t, SourceFeed, got.SourceType)
	assert.Equal(t, in.Content, got.Content)
	assert.Equal(t, []string{"a", "b"}, got.Tags)
	assert.Equal(t, PendingSummary, got.Summary)
	assert.False(t, got.ReadStatus)
	assert.False(t, got.CreatedAt.IsZero())
	assert.Equal(t, got.CreatedAt, got.UpdatedAt)

	byURL, err := s.GetByURL(ctx, in.URL)
	require.NoError(t, err)
	assert.Equal(t, got.ID, byURL.ID)
}

func TestCreate_RequiresURL(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Create(context.Background(), &Document{Title: "no url"})
	assert.Equal(t, amerrors.ErrCodeInvalidInput, amerrors.GetCode(err))
}

func TestGet_UnknownIsNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get(context.Background(), "missing")
	assert.True(t, amerrors.IsNotFound(err))

	_, err = s.GetByURL(context.Background(), "https://nowhere")
	assert.True(t, amerrors.IsNotFound(err))
}

func TestUpdate_TagsOnlyReplacesTagSet(t *testing.T) {
	// Given: a document with tags a, b
	s := newTestStore(t)
	ctx := context.Background()
	doc := mustCreate(t, s, "https://example.com/a", "Title", "content", "a", "b")

	// When: patching only the tags
	tags := []string{"x", "y"}
	updated, err := s.Update(ctx, doc.ID, DocumentPatch{Tags: &tags})
	require.NoError(t, err)

	// Then: tags are replaced, everything else untouched
	assert.Equal(t, []string{"x", "y"}, updated.Tags)
	assert.Equal(t, doc.Title, updated.Title)
	assert.Equal(t, doc.Content, updated.Content)
	assert.Equal(t, doc.ReadStatus, updated.ReadStatus)
	assert.True(t, updated.UpdatedAt.After(doc.UpdatedAt))
	assert.Equal(t, doc.CreatedAt, updated.CreatedAt)

	// Old tags remain defined with zero usage.
	all, err := s.AllTags(ctx)
	require.NoError(t, err)
	assert.Equal(t, []TagCount{{"x", 1}, {"y", 1}, {"a", 0}, {"b", 0}}, all)
}

func TestUpdate_TitleAndReadStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	doc := mustCreate(t, s, "https://example.com/a", "Old", "content", "keep")

	title := "New"
	read := true
	updated, err := s.Update(ctx, doc.ID, DocumentPatch{Title: &title, ReadStatus: &read})
	require.NoError(t, err)

	assert.Equal(t, "New", updated.Title)
	assert.True(t, updated.ReadStatus)
	assert.Equal(t, []string{"keep"}, updated.Tags)

	// The FTS index follows the title change.
	hits, err := s.SearchLexical(ctx, "new", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	hits, err = s.SearchLexical(ctx, "old", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestUpdate_EmptyPatchLeavesTimestamp(t *testing.T) {
	s := newTestStore(t)
	doc := mustCreate(t, s, "https://example.com/a", "T", "c")

	got, err := s.Update(context.Background(), doc.ID, DocumentPatch{})
	require.NoError(t, err)
	assert.Equal(t, doc.UpdatedAt, got.UpdatedAt)
}

func TestUpdate_UnknownIsNotFound(t *testing.T) {
	s := newTestStore(t)
	title := "x"

	_, err := s.Update(context.Background(), "missing", DocumentPatch{Title: &title})
	assert.True(t, amerrors.IsNotFound(err))
}

func TestUpdate_EmptyTitleRollsBackWholePatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	doc := mustCreate(t, s, "https://example.com/a", "T", "c", "a")

	blank := "  "
	tags := []string{"z"}
	_, err := s.Update(ctx, doc.ID, DocumentPatch{Title: &blank, Tags: &tags})
	require.Error(t, err)

	got, err := s.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, got.Tags)
	assert.Equal(t, "T", got.Title)
}

func TestUpdateSummary(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	doc := mustCreate(t, s, "https://example.com/a", "T", "c")

	require.NoError(t, s.UpdateSummary(ctx, doc.ID, "a concise digest"))

	got, err := s.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "a concise digest", got.Summary)
	assert.Equal(t, doc.UpdatedAt, got.UpdatedAt)

	hits, err := s.SearchLexical(ctx, "digest", 5)
	require.NoError(t, err)
	assert.Len(t, hits, 1)

	assert.True(t, amerrors.IsNotFound(s.UpdateSummary(ctx, "missing", "x")))
}

func TestDelete_TwiceReportsNoOp(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	doc := mustCreate(t, s, "https://example.com/a", "T", "unique", "t1")

	removed, err := s.Delete(ctx, doc.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = s.Delete(ctx, doc.ID)
	require.NoError(t, err)
	assert.False(t, removed)

	// Associations cascade; the tag definition survives.
	tags, err := s.AllTags(ctx)
	require.NoError(t, err)
	assert.Equal(t, []TagCount{{"t1", 0}}, tags)

	hits, err := s.SearchLexical(ctx, "unique", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestList_FiltersAndPagination(t *testing.T) {
	// Given: four documents, newest last
	s := newTestStore(t)
	ctx := context.Background()
	d1 := mustCreate(t, s, "u1", "one", "c", "go")
	d2 := mustCreate(t, s, "u2", "two", "c", "rust")
	d3 := mustCreate(t, s, "u3", "three", "c", "go", "db")
	d4 := mustCreate(t, s, "u4", "four", "c")
	read := true
	_, err := s.Update(ctx, d3.ID, DocumentPatch{ReadStatus: &read})
	require.NoError(t, err)

	// When/Then: no filter lists newest first
	res, err := s.List(ctx, ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Total)
	assert.Equal(t, []string{d4.ID, d3.ID, d2.ID, d1.ID}, ids(res.Documents))

	// Pagination keeps the total
	res, err = s.List(ctx, ListOptions{Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Total)
	assert.Equal(t, []string{d3.ID, d2.ID}, ids(res.Documents))

	// Any-of tag filter
	res, err = s.List(ctx, ListOptions{Tags: []string{"go", "rust"}})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)

	// Tag AND read status
	unread := false
	res, err = s.List(ctx, ListOptions{Tags: []string{"go"}, ReadStatus: &unread})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)
	assert.Equal(t, []string{d1.ID}, ids(res.Documents))

	// Offset past the end
	res, err = s.List(ctx, ListOptions{Offset: 10})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Total)
	assert.Empty(t, res.Documents)
}

func TestAllTags_OrderedByCountThenName(t *testing.T) {
	s := newTestStore(t)
	mustCreate(t, s, "u1", "one", "c", "b", "a")
	mustCreate(t, s, "u2", "two", "c", "b", "c")
	mustCreate(t, s, "u3", "three", "c", "b", "a")

	tags, err := s.AllTags(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []TagCount{{"b", 3}, {"a", 2}, {"c", 1}}, tags)
}

func TestAllIDsAndDocuments(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := mustCreate(t, s, "u1", "one", "c", "x")
	b := mustCreate(t, s, "u2", "two", "c")

	got, err := s.AllIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID, b.ID}, got)

	docs, err := s.AllDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, []string{"x"}, docs[0].Tags)
	assert.Equal(t, []string{}, docs[1].Tags)
}

func TestThreeDocumentScenario(t *testing.T) {
	// Given: three documents with one unique token each
	s := newTestStore(t)
	ctx := context.Background()
	a := mustCreate(t, s, "url1", "A", "shared words and aardvark")
	b := mustCreate(t, s, "url2", "B", "shared words and bumblebee")
	mustCreate(t, s, "url3", "C", "shared words and chameleon")

	// When: searching B's token
	hits, err := s.SearchLexical(ctx, "bumblebee", 10)
	require.NoError(t, err)

	// Then: exactly B
	require.Len(t, hits, 1)
	assert.Equal(t, b.ID, hits[0].ID)

	// When: deleting A and listing
	removed, err := s.Delete(ctx, a.ID)
	require.NoError(t, err)
	require.True(t, removed)

	res, err := s.List(ctx, ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)
}

func TestThreeDocumentScenario_MultiHitOrderIsRepeatable(t *testing.T) {
	// Given: three documents that all contain the query terms
	s := newTestStore(t)
	ctx := context.Background()
	a := mustCreate(t, s, "url1", "A", "shared words and aardvark")
	b := mustCreate(t, s, "url2", "B", "shared words and bumblebee")
	c := mustCreate(t, s, "url3", "C", "shared words and chameleon")

	// When: running the same query several times
	first, err := s.SearchLexical(ctx, "shared words", 10)
	require.NoError(t, err)

	// Then: every run returns all three in the same order, equal scores
	// falling back to insertion order
	require.Len(t, first, 3)
	assert.Equal(t, []string{a.ID, b.ID, c.ID}, ids(first))
	for range 5 {
		again, err := s.SearchLexical(ctx, "shared words", 10)
		require.NoError(t, err)
		assert.Equal(t, ids(first), ids(again))
	}
}

func TestReopenPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "amanread.db")
	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	doc, err := s.Create(context.Background(), &Document{URL: "u", Title: "persisted", Content: "kept"})
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err = s.Get(context.Background(), doc.ID)
	assert.Error(t, err)

	s2, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.Get(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "persisted", got.Title)

	hits, err := s2.SearchLexical(context.Background(), "kept", 5)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func ids(docs []*Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID
	}
	return out
}
