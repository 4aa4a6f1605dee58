package similarity

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/amanread/internal/embed"
	amerrors "github.com/Aman-CERP/amanread/internal/errors"
	"github.com/Aman-CERP/amanread/internal/store"
)

// failingEmbedder always errors.
type failingEmbedder struct{ embed.Embedder }

func (failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("model crashed")
}

func (failingEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("model crashed")
}

func newTestIndex(t *testing.T) (*Index, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "vectors")
	idx, err := Open(dir, embed.NewStaticEmbedder(128))
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx, dir
}

func seed(t *testing.T, idx *Index) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, "go", "goroutines channels and the go scheduler", map[string]string{"url": "u1", "title": "Go"}))
	require.NoError(t, idx.Upsert(ctx, "sql", "sqlite indexes query planner and transactions", map[string]string{"url": "u2"}))
	require.NoError(t, idx.Upsert(ctx, "bread", "sourdough starter flour water and salt", map[string]string{"url": "u3"}))
}

func TestQuery_ScoresBoundedAndOrdered(t *testing.T) {
	// Given: three indexed records
	idx, _ := newTestIndex(t)
	seed(t, idx)

	// When: querying with text close to one of them
	matches, err := idx.Query(context.Background(), "go scheduler goroutines", 10)
	require.NoError(t, err)

	// Then: the limit is capped at the count, scores are in [0,1] and non-increasing
	require.Len(t, matches, 3)
	assert.Equal(t, "go", matches[0].ID)
	assert.Equal(t, "Go", matches[0].Metadata["title"])
	assert.Equal(t, "goroutines channels and the go scheduler", matches[0].Preview)
	for i, m := range matches {
		assert.GreaterOrEqual(t, m.Score, float32(0))
		assert.LessOrEqual(t, m.Score, float32(1))
		if i > 0 {
			assert.LessOrEqual(t, m.Score, matches[i-1].Score)
		}
	}
}

func TestQuery_EdgeCases(t *testing.T) {
	idx, _ := newTestIndex(t)
	ctx := context.Background()

	matches, err := idx.Query(ctx, "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, matches)

	seed(t, idx)
	matches, err = idx.Query(ctx, "   ", 5)
	require.NoError(t, err)
	assert.Empty(t, matches)

	matches, err = idx.Query(ctx, "flour", 0)
	require.NoError(t, err)
	assert.Empty(t, matches)

	matches, err = idx.Query(ctx, "flour", 1)
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestUpsert_IsIdempotentAndReplaces(t *testing.T) {
	idx, _ := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, "d1", "first version about gardening", nil))
	require.NoError(t, idx.Upsert(ctx, "d1", "second version about astronomy telescopes", nil))
	require.NoError(t, idx.Upsert(ctx, "d1", "second version about astronomy telescopes", nil))

	assert.Equal(t, 1, idx.Count())
	matches, err := idx.Query(ctx, "astronomy telescopes", 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "second version about astronomy telescopes", matches[0].Preview)
}

func TestUpsert_TruncatesAndRejectsBlank(t *testing.T) {
	idx, _ := newTestIndex(t)
	ctx := context.Background()

	long := strings.Repeat("word ", MaxTextLength)
	require.NoError(t, idx.Upsert(ctx, "long", long, nil))
	matches, err := idx.Query(ctx, "word", 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, PreviewLength, len([]rune(matches[0].Preview)))

	err = idx.Upsert(ctx, "blank", "  \n ", nil)
	assert.Equal(t, amerrors.ErrCodeInvalidInput, amerrors.GetCode(err))
}

func TestUpsert_EmbedderFailure(t *testing.T) {
	idx, err := Open(t.TempDir(), failingEmbedder{embed.NewStaticEmbedder(8)})
	require.NoError(t, err)

	err = idx.Upsert(context.Background(), "d1", "text", nil)
	assert.Equal(t, amerrors.ErrCodeEmbeddingFailed, amerrors.GetCode(err))
	assert.Zero(t, idx.Count())
}

func TestDelete(t *testing.T) {
	idx, _ := newTestIndex(t)
	seed(t, idx)
	ctx := context.Background()

	require.NoError(t, idx.Delete(ctx, "sql"))
	require.NoError(t, idx.Delete(ctx, "sql"))
	require.NoError(t, idx.Delete(ctx, "never-indexed"))

	assert.Equal(t, []string{"bread", "go"}, idx.ListIDs())
	assert.False(t, idx.Contains("sql"))

	removed, err := idx.Compact()
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 2, idx.Count())
}

func TestUnavailable(t *testing.T) {
	idx := Unavailable("")
	ctx := context.Background()

	assert.False(t, idx.Available())
	assert.Equal(t, "semantic search disabled", idx.Reason())
	assert.ErrorIs(t, idx.Upsert(ctx, "d1", "text", nil), ErrUnavailable)
	assert.ErrorIs(t, idx.Delete(ctx, "d1"), ErrUnavailable)

	matches, err := idx.Query(ctx, "text", 5)
	require.NoError(t, err)
	assert.Empty(t, matches)
	assert.Zero(t, idx.Count())
	assert.Nil(t, idx.ListIDs())
	assert.NoError(t, idx.Save())
	assert.NoError(t, idx.Close())
}

func TestSaveAndReopen(t *testing.T) {
	// Given: a saved index
	dir := filepath.Join(t.TempDir(), "vectors")
	idx, err := Open(dir, embed.NewStaticEmbedder(128))
	require.NoError(t, err)
	seed(t, idx)
	require.NoError(t, idx.Close())
	assert.False(t, idx.Available())

	// When: reopening with the same embedder dimension
	reopened, err := Open(dir, embed.NewStaticEmbedder(128))
	require.NoError(t, err)
	defer reopened.Close()

	// Then: records and metadata survive
	assert.Equal(t, []string{"bread", "go", "sql"}, reopened.ListIDs())
	matches, err := reopened.Query(context.Background(), "sqlite transactions", 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "sql", matches[0].ID)
	assert.Equal(t, "u2", matches[0].Metadata["url"])
}

// namedEmbedder reports a different model name with the same vectors.
type namedEmbedder struct {
	*embed.StaticEmbedder
	name string
}

func (e namedEmbedder) ModelName() string { return e.name }

func TestOpen_ModelChangeLeavesSavedIndexAlone(t *testing.T) {
	tests := []struct {
		name  string
		other embed.Embedder
	}{
		{"different dimension", embed.NewStaticEmbedder(64)},
		{"same dimension, different model", namedEmbedder{embed.NewStaticEmbedder(128), "nomic-embed-text"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Given: an index saved with one model
			dir := filepath.Join(t.TempDir(), "vectors")
			idx, err := Open(dir, embed.NewStaticEmbedder(128))
			require.NoError(t, err)
			seed(t, idx)
			require.NoError(t, idx.Close())
			assert.Equal(t, "static-128", SavedModel(dir))

			// When: opening it with another model
			_, err = Open(dir, tt.other)

			// Then: it is refused with a suggestion, and the saved vectors survive
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrModelChanged)
			assert.Equal(t, amerrors.ErrCodeDimensionMismatch, amerrors.GetCode(err))
			assert.Contains(t, err.Error(), "static-128")

			back, err := Open(dir, embed.NewStaticEmbedder(128))
			require.NoError(t, err)
			defer back.Close()
			assert.Equal(t, 3, back.Count())
		})
	}
}

func TestOpen_IndexWithoutManifestComparesDimensions(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "vectors")
	idx, err := Open(dir, embed.NewStaticEmbedder(128))
	require.NoError(t, err)
	seed(t, idx)
	require.NoError(t, idx.Close())
	require.NoError(t, os.Remove(filepath.Join(dir, manifestFile)))

	_, err = Open(dir, embed.NewStaticEmbedder(64))
	assert.ErrorIs(t, err, ErrModelChanged)

	same, err := Open(dir, namedEmbedder{embed.NewStaticEmbedder(128), "renamed"})
	require.NoError(t, err)
	defer same.Close()
	assert.Equal(t, 3, same.Count())
}

func TestRemove_ThenOpenStartsFresh(t *testing.T) {
	// Given: a saved index
	dir := filepath.Join(t.TempDir(), "vectors")
	idx, err := Open(dir, embed.NewStaticEmbedder(128))
	require.NoError(t, err)
	seed(t, idx)
	require.NoError(t, idx.Close())

	// When: removing it and opening with another model
	require.NoError(t, Remove(dir))
	require.NoError(t, Remove(dir))
	fresh, err := Open(dir, embed.NewStaticEmbedder(64))
	require.NoError(t, err)
	defer fresh.Close()

	// Then: the new index is empty and usable
	assert.Zero(t, fresh.Count())
	assert.Empty(t, SavedModel(dir))
	require.NoError(t, fresh.Upsert(context.Background(), "x", "new text", nil))
	assert.Equal(t, 1, fresh.Count())
}

func TestUpsertBatch_IsAllOrNothing(t *testing.T) {
	idx, _ := newTestIndex(t)
	ctx := context.Background()

	// A blank record fails the whole batch.
	err := idx.UpsertBatch(ctx, []Record{
		{ID: "a", Text: "alpha text"},
		{ID: "b", Text: "   "},
	})
	assert.Equal(t, amerrors.ErrCodeInvalidInput, amerrors.GetCode(err))
	assert.Zero(t, idx.Count())

	// A good batch stores every record with its preview and metadata.
	require.NoError(t, idx.UpsertBatch(ctx, []Record{
		{ID: "a", Text: "alpha text", Metadata: map[string]string{"url": "ua"}},
		{ID: "b", Text: "beta text"},
	}))
	assert.Equal(t, []string{"a", "b"}, idx.ListIDs())
	matches, err := idx.Query(ctx, "alpha text", 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "ua", matches[0].Metadata["url"])
	assert.Equal(t, "alpha text", matches[0].Preview)

	require.NoError(t, idx.UpsertBatch(ctx, nil))
	assert.ErrorIs(t, Unavailable("").UpsertBatch(ctx, []Record{{ID: "a", Text: "x"}}), ErrUnavailable)
}

func TestUpsertBatch_EmbedderFailure(t *testing.T) {
	idx, err := Open(filepath.Join(t.TempDir(), "vectors"), failingEmbedder{embed.NewStaticEmbedder(32)})
	require.NoError(t, err)
	defer idx.Close()

	err = idx.UpsertBatch(context.Background(), []Record{{ID: "a", Text: "alpha"}})
	assert.Equal(t, amerrors.ErrCodeEmbeddingFailed, amerrors.GetCode(err))
}

func TestRecordFor(t *testing.T) {
	doc := &store.Document{ID: "d1", URL: "https://x.test/a", Title: "A", Content: "body"}
	assert.Equal(t, Record{
		ID:       "d1",
		Text:     "body",
		Metadata: map[string]string{"url": "https://x.test/a", "title": "A"},
	}, RecordFor(doc))

	doc.Title = ""
	assert.Equal(t, map[string]string{"url": "https://x.test/a"}, RecordFor(doc).Metadata)
}
