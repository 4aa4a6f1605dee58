package library

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/amanread/internal/embed"
	"github.com/Aman-CERP/amanread/internal/enrich"
	amerrors "github.com/Aman-CERP/amanread/internal/errors"
	"github.com/Aman-CERP/amanread/internal/fetch"
	"github.com/Aman-CERP/amanread/internal/parser"
	"github.com/Aman-CERP/amanread/internal/reconcile"
	"github.com/Aman-CERP/amanread/internal/search"
	"github.com/Aman-CERP/amanread/internal/similarity"
	"github.com/Aman-CERP/amanread/internal/store"
)

const articlePage = `<html><head><title>Channels in Practice</title></head><body>
<article><h1>Channels in Practice</h1>
<p>Channels let goroutines communicate by sharing memory through messages instead of locks.</p>
<p>Buffered channels decouple producers from consumers and smooth out bursts of work.</p>
<p>Closing a channel signals that no more values will be sent to its receivers.</p>
</article></body></html>`

type fakeSummarizer struct{ available bool }

func (f fakeSummarizer) Summarize(_ context.Context, _ string, title string) (string, error) {
	return "Summary of " + title, nil
}

func (f fakeSummarizer) Available(context.Context) bool { return f.available }

// countingFetcher counts fetches before delegating.
type countingFetcher struct {
	inner Fetcher
	calls atomic.Int32
}

func (c *countingFetcher) Fetch(ctx context.Context, rawURL string) (*fetch.Result, error) {
	c.calls.Add(1)
	return c.inner.Fetch(ctx, rawURL)
}

type harness struct {
	svc     *Service
	store   *store.SQLiteStore
	index   *similarity.Index
	queue   *enrich.Queue
	fetcher *countingFetcher
}

func newHarness(t *testing.T, queueSize int, startQueue bool) *harness {
	t.Helper()
	dir := t.TempDir()

	s, err := store.NewSQLiteStore(filepath.Join(dir, "amanread.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	idx, err := similarity.Open(filepath.Join(dir, "vectors"), embed.NewStaticEmbedder(128))
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	sum := fakeSummarizer{available: true}
	q := enrich.NewQueue(enrich.NewEnricher(s, idx, sum, enrich.EnricherConfig{}),
		enrich.QueueConfig{Workers: 1, QueueSize: queueSize})
	if startQueue {
		q.Start(context.Background())
	}
	t.Cleanup(func() { _ = q.Stop(context.Background()) })

	f := &countingFetcher{inner: fetch.New(fetch.Config{})}
	svc := New(Deps{
		Store:      s,
		Index:      idx,
		Parsers:    parser.DefaultChain(parser.Options{}),
		Fetcher:    f,
		Queue:      q,
		Summarizer: sum,
		Router:     search.NewRouter(s, idx, search.DefaultConfig()),
		Reconciler: reconcile.NewService(s, idx),
	})
	return &harness{svc: svc, store: s, index: idx, queue: q, fetcher: f}
}

func (h *harness) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.queue.Drain(ctx))
}

func TestIngest_InlineContentIsEnrichedInBackground(t *testing.T) {
	// Given: a library with a running enrichment queue
	h := newHarness(t, 8, true)
	ctx := context.Background()

	// When: adding an article with inline HTML
	res, err := h.svc.Ingest(ctx, IngestRequest{
		URL:         "https://blog.example.com/channels",
		Content:     []byte(articlePage),
		ContentType: "text/html",
		Tags:        []string{"go", "concurrency"},
	})

	// Then: it is stored immediately with a placeholder summary
	require.NoError(t, err)
	assert.True(t, res.Queued)
	assert.Equal(t, "html", res.Parser)
	assert.Equal(t, store.PendingSummary, res.Document.Summary)
	assert.Equal(t, []string{"concurrency", "go"}, res.Document.Tags)
	assert.Contains(t, res.Document.Content, "Buffered channels")
	assert.Zero(t, h.fetcher.calls.Load())

	// And: after enrichment it has a summary and is semantically searchable
	h.drain(t)
	got, err := h.svc.Get(ctx, res.Document.ID)
	require.NoError(t, err)
	assert.Equal(t, "Summary of Channels in Practice", got.Summary)

	resp, err := h.svc.Search(ctx, search.Request{Query: "buffered channels goroutines", Mode: search.ModeSemantic})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, res.Document.ID, resp.Results[0].Document.ID)
}

func TestIngest_FetchesAndRejectsDuplicatesBeforeFetching(t *testing.T) {
	// Given: a server hosting a plain text page
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("Notes on Raft\n\nLeaders replicate log entries to followers."))
	}))
	defer srv.Close()
	h := newHarness(t, 8, false)
	ctx := context.Background()

	// When: adding the URL twice
	first, err := h.svc.Ingest(ctx, IngestRequest{URL: srv.URL + "/raft.txt"})
	require.NoError(t, err)
	_, err = h.svc.Ingest(ctx, IngestRequest{URL: srv.URL + "/raft.txt"})

	// Then: the duplicate conflicts without a second fetch
	assert.True(t, amerrors.IsConflict(err))
	assert.Equal(t, int32(1), h.fetcher.calls.Load())
	assert.Equal(t, "text", first.Parser)
	assert.Equal(t, "Notes on Raft", first.Document.Title)

	count, err := h.store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestIngest_LocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ideas.md")
	require.NoError(t, os.WriteFile(path, []byte("# Reading ideas\n\nTry the Feynman technique."), 0o644))
	h := newHarness(t, 8, false)

	res, err := h.svc.Ingest(context.Background(), IngestRequest{URL: path, Title: "My ideas"})

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.Document.URL, "file://"))
	assert.Equal(t, "My ideas", res.Document.Title)
	assert.Equal(t, store.SourceMarkdown, res.Document.SourceType)
}

func TestIngest_QueueFullStillStores(t *testing.T) {
	// Given: a stopped queue with room for one job
	h := newHarness(t, 1, false)
	ctx := context.Background()
	_, err := h.svc.Ingest(ctx, IngestRequest{URL: "https://a.test/1", Content: []byte("one"), ContentType: "text/plain"})
	require.NoError(t, err)

	// When: adding a second document
	res, err := h.svc.Ingest(ctx, IngestRequest{URL: "https://a.test/2", Content: []byte("two"), ContentType: "text/plain"})

	// Then: it is stored but not queued, and sync indexes it later
	require.NoError(t, err)
	assert.False(t, res.Queued)

	report, err := h.svc.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Added)
}

func TestIngest_Validation(t *testing.T) {
	h := newHarness(t, 8, false)
	ctx := context.Background()

	tests := []struct {
		name string
		req  IngestRequest
		code string
	}{
		{"missing url", IngestRequest{Content: []byte("x")}, amerrors.ErrCodeInvalidInput},
		{"bad source type", IngestRequest{URL: "https://a.test", Content: []byte("x"), SourceType: "vinyl"}, amerrors.ErrCodeInvalidInput},
		{"no parser", IngestRequest{URL: "ftp://a.test/blob", Content: []byte("x"), ContentType: "application/octet-stream"}, amerrors.ErrCodeNoParser},
		{"host missing", IngestRequest{URL: "https://", Content: []byte("x")}, amerrors.ErrCodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.svc.Ingest(ctx, tt.req)
			assert.Equal(t, tt.code, amerrors.GetCode(err))
		})
	}
}

func TestDelete_RemovesVectorAndReportsMissing(t *testing.T) {
	h := newHarness(t, 8, true)
	ctx := context.Background()
	res, err := h.svc.Ingest(ctx, IngestRequest{URL: "https://a.test/doc", Content: []byte("vector clocks"), ContentType: "text/plain"})
	require.NoError(t, err)
	h.drain(t)
	require.True(t, h.index.Contains(res.Document.ID))

	require.NoError(t, h.svc.Delete(ctx, res.Document.ID))
	assert.False(t, h.index.Contains(res.Document.ID))

	err = h.svc.Delete(ctx, res.Document.ID)
	assert.True(t, amerrors.IsNotFound(err))
}

func TestUpdateListAndTags(t *testing.T) {
	h := newHarness(t, 8, false)
	ctx := context.Background()
	res, err := h.svc.Ingest(ctx, IngestRequest{URL: "https://a.test/x", Content: []byte("x body"), ContentType: "text/plain", Tags: []string{"a"}})
	require.NoError(t, err)

	read := true
	tags := []string{"b"}
	updated, err := h.svc.Update(ctx, res.Document.ID, store.DocumentPatch{ReadStatus: &read, Tags: &tags})
	require.NoError(t, err)
	assert.True(t, updated.ReadStatus)
	assert.Equal(t, []string{"b"}, updated.Tags)

	list, err := h.svc.List(ctx, store.ListOptions{Limit: 10, ReadStatus: &read})
	require.NoError(t, err)
	assert.Equal(t, 1, list.Total)

	_, err = h.svc.List(ctx, store.ListOptions{Offset: -1})
	assert.Equal(t, amerrors.ErrCodeInvalidInput, amerrors.GetCode(err))

	allTags, err := h.svc.Tags(ctx)
	require.NoError(t, err)
	assert.Equal(t, []store.TagCount{{Name: "b", Count: 1}, {Name: "a", Count: 0}}, allTags)
}

func TestHealth(t *testing.T) {
	h := newHarness(t, 8, true)
	ctx := context.Background()
	_, err := h.svc.Ingest(ctx, IngestRequest{URL: "https://a.test/h", Content: []byte("health check body"), ContentType: "text/plain"})
	require.NoError(t, err)
	h.drain(t)

	health, err := h.svc.Health(ctx)

	require.NoError(t, err)
	assert.Equal(t, "healthy", health.Status)
	assert.True(t, health.Lexical)
	assert.True(t, health.Semantic)
	assert.Equal(t, "connected", health.Summarizer)
	assert.Equal(t, 1, health.DocumentCount)
	assert.Equal(t, 1, health.VectorCount)
	assert.Equal(t, "static-128", health.EmbeddingModel)
	assert.Equal(t, int64(1), health.Enrichment.Completed)

	check, err := h.svc.Check(ctx)
	require.NoError(t, err)
	assert.True(t, check.Consistent())
}

func TestNormalizeURL(t *testing.T) {
	abs, err := normalizeURL("/tmp/notes.md")
	require.NoError(t, err)
	assert.Equal(t, "file:///tmp/notes.md", abs)

	u, err := normalizeURL("  https://example.com/a  ")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/a", u)

	_, err = normalizeURL("")
	assert.Error(t, err)
}

func TestParseDate(t *testing.T) {
	want := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, want, *parseDate("2024-03-01T12:00:00Z"))
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), *parseDate("2024-03-01"))
	assert.Nil(t, parseDate(""))
	assert.Nil(t, parseDate("last tuesday"))
}
