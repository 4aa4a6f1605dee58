// Package similarity maintains the semantic index: one embedding per
// document, searchable by cosine similarity.
//
// The index is derived from the document store and may lag it. Writes land
// when enrichment finishes or when reconciliation catches up, and a lost or
// corrupt index is rebuilt rather than repaired.
package similarity

import (
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/Aman-CERP/amanread/internal/embed"
	amerrors "github.com/Aman-CERP/amanread/internal/errors"
	"github.com/Aman-CERP/amanread/internal/store"
)

const (
	// MaxTextLength bounds the text embedded per record, in characters.
	MaxTextLength = 8000

	// PreviewLength is the length of the text preview kept per record.
	PreviewLength = 200

	graphFile    = "index.hnsw"
	recordsFile  = "records.gob"
	manifestFile = "manifest.gob"
)

// ErrUnavailable is returned by writes while semantic search is switched
// off. Callers treat it as a degraded condition, not a failure.
var ErrUnavailable = errors.New("similarity index unavailable")

// ErrModelChanged means the saved index was built by a different embedding
// model than the one it is being opened with. The saved files are left
// alone; Remove discards them.
var ErrModelChanged = errors.New("embedding model changed")

// Record is what gets indexed for one document.
type Record struct {
	ID       string
	Text     string
	Metadata map[string]string
}

// Match is a single query hit.
type Match struct {
	ID       string            `json:"id"`
	Score    float32           `json:"score"`    // within [0,1], higher is closer
	Distance float32           `json:"distance"` // cosine distance
	Metadata map[string]string `json:"metadata,omitempty"`
	Preview  string            `json:"preview,omitempty"`
}

// manifest records which embedding model built the saved graph.
type manifest struct {
	Model      string
	Dimensions int
}

// recordInfo is kept beside each vector and persisted in records.gob.
type recordInfo struct {
	Metadata map[string]string
	Preview  string
}

// Index pairs an embedder with a vector store. Safe for concurrent use.
type Index struct {
	embedder embed.Embedder
	vectors  store.VectorStore
	dir      string
	reason   string // non-empty when unavailable

	mu      sync.RWMutex
	records map[string]recordInfo
	dirty   bool
	closed  bool
}

// Open loads the index saved under dir, or starts an empty one.
//
// An index saved by another embedding model, or with another dimension,
// is not loaded and not touched: Open returns an error wrapping
// ErrModelChanged. A saved index that cannot be read is discarded with a
// warning; the next sync rebuilds it.
func Open(dir string, embedder embed.Embedder) (*Index, error) {
	if embedder == nil {
		return nil, fmt.Errorf("similarity index requires an embedder")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, amerrors.New(amerrors.ErrCodeDataDir, "failed to create vector directory", err).
			WithDetail("path", dir)
	}

	idx := &Index{
		embedder: embedder,
		vectors:  store.NewHNSWStore(store.DefaultVectorStoreConfig(embedder.Dimensions())),
		dir:      dir,
		records:  make(map[string]recordInfo),
	}

	graphPath := filepath.Join(dir, graphFile)
	savedDims, err := store.ReadHNSWStoreDimensions(graphPath)
	if err != nil {
		slog.Warn("similarity_index_unreadable", slog.String("path", graphPath), slog.String("error", err.Error()))
		idx.dirty = true
		return idx, nil
	}
	if savedDims == 0 {
		return idx, nil
	}

	saved, err := readManifest(filepath.Join(dir, manifestFile))
	if err != nil {
		slog.Warn("similarity_manifest_unreadable", slog.String("error", err.Error()))
	}
	if saved == nil {
		// Indexes saved before the manifest existed only know their dimension.
		saved = &manifest{}
	}
	saved.Dimensions = savedDims
	if changed(saved, embedder) {
		return nil, modelChangedError(saved, embedder)
	}

	if err := idx.vectors.Load(graphPath); err != nil {
		slog.Warn("similarity_index_load_failed", slog.String("path", graphPath), slog.String("error", err.Error()))
		idx.vectors = store.NewHNSWStore(store.DefaultVectorStoreConfig(embedder.Dimensions()))
		idx.dirty = true
		return idx, nil
	}

	records, err := readRecords(filepath.Join(dir, recordsFile))
	if err != nil {
		slog.Warn("similarity_records_load_failed", slog.String("error", err.Error()))
	}
	idx.records = records

	slog.Debug("similarity_index_loaded",
		slog.Int("vectors", idx.vectors.Count()),
		slog.Int("dimensions", savedDims))
	return idx, nil
}

// Unavailable returns an index that answers every query with nothing and
// rejects every write with ErrUnavailable.
func Unavailable(reason string) *Index {
	if reason == "" {
		reason = "semantic search disabled"
	}
	return &Index{reason: reason, records: make(map[string]recordInfo)}
}

// Available reports whether semantic search can be served.
func (x *Index) Available() bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.reason == "" && !x.closed
}

// Reason explains why the index is unavailable; empty when available.
func (x *Index) Reason() string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.closed {
		return "similarity index closed"
	}
	return x.reason
}

// ModelName names the embedding model, or "" when unavailable.
func (x *Index) ModelName() string {
	if x.embedder == nil {
		return ""
	}
	return x.embedder.ModelName()
}

// Upsert embeds text and stores it under id, replacing any earlier vector.
// Text beyond MaxTextLength characters is ignored.
func (x *Index) Upsert(ctx context.Context, id, text string, metadata map[string]string) error {
	if !x.Available() {
		return ErrUnavailable
	}
	text = truncate(text, MaxTextLength)
	if strings.TrimSpace(text) == "" {
		return amerrors.ValidationError(fmt.Sprintf("no text to index for %s", id), nil)
	}

	vec, err := x.embedder.Embed(ctx, text)
	if err != nil {
		return amerrors.New(amerrors.ErrCodeEmbeddingFailed, "failed to embed document", err).
			WithDetail("id", id)
	}

	if err := x.vectors.Add(ctx, []string{id}, [][]float32{vec}); err != nil {
		var mismatch store.ErrDimensionMismatch
		if errors.As(err, &mismatch) {
			return amerrors.New(amerrors.ErrCodeDimensionMismatch, mismatch.Error(), err)
		}
		return amerrors.New(amerrors.ErrCodeIndexFailed, "failed to add vector", err).
			WithDetail("id", id)
	}

	x.mu.Lock()
	x.records[id] = recordInfo{Metadata: copyMetadata(metadata), Preview: preview(text)}
	x.dirty = true
	x.mu.Unlock()
	return nil
}

// UpsertRecord is Upsert for a Record.
func (x *Index) UpsertRecord(ctx context.Context, r Record) error {
	return x.Upsert(ctx, r.ID, r.Text, r.Metadata)
}

// UpsertBatch indexes records with one embedding call. Either every record
// is stored or none is, so callers can retry the records one by one.
func (x *Index) UpsertBatch(ctx context.Context, records []Record) error {
	if !x.Available() {
		return ErrUnavailable
	}
	if len(records) == 0 {
		return nil
	}

	ids := make([]string, len(records))
	texts := make([]string, len(records))
	for i, r := range records {
		texts[i] = truncate(r.Text, MaxTextLength)
		if strings.TrimSpace(texts[i]) == "" {
			return amerrors.ValidationError(fmt.Sprintf("no text to index for %s", r.ID), nil)
		}
		ids[i] = r.ID
	}

	vecs, err := x.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return amerrors.New(amerrors.ErrCodeEmbeddingFailed, "failed to embed documents", err).
			WithDetail("count", strconv.Itoa(len(records)))
	}
	if len(vecs) != len(records) {
		return amerrors.New(amerrors.ErrCodeEmbeddingFailed,
			fmt.Sprintf("embedder returned %d vectors for %d texts", len(vecs), len(records)), nil)
	}

	if err := x.vectors.Add(ctx, ids, vecs); err != nil {
		var mismatch store.ErrDimensionMismatch
		if errors.As(err, &mismatch) {
			return amerrors.New(amerrors.ErrCodeDimensionMismatch, mismatch.Error(), err)
		}
		return amerrors.New(amerrors.ErrCodeIndexFailed, "failed to add vectors", err)
	}

	x.mu.Lock()
	for i, r := range records {
		x.records[r.ID] = recordInfo{Metadata: copyMetadata(r.Metadata), Preview: preview(texts[i])}
	}
	x.dirty = true
	x.mu.Unlock()
	return nil
}

// RecordFor builds the record indexed for a stored document: its content,
// keyed by id, with the url and title as metadata.
func RecordFor(doc *store.Document) Record {
	meta := map[string]string{"url": doc.URL}
	if doc.Title != "" {
		meta["title"] = doc.Title
	}
	return Record{ID: doc.ID, Text: doc.Content, Metadata: meta}
}

// Query returns the records nearest to text, best first. The limit is
// capped at Count. Unavailable indexes and blank queries return no matches.
func (x *Index) Query(ctx context.Context, text string, limit int) ([]Match, error) {
	if !x.Available() || limit <= 0 || strings.TrimSpace(text) == "" {
		return []Match{}, nil
	}
	limit = min(limit, x.vectors.Count())
	if limit == 0 {
		return []Match{}, nil
	}

	vec, err := x.embedder.Embed(ctx, truncate(text, MaxTextLength))
	if err != nil {
		return nil, amerrors.New(amerrors.ErrCodeEmbeddingFailed, "failed to embed query", err)
	}

	hits, err := x.vectors.Search(ctx, vec, limit)
	if err != nil {
		return nil, amerrors.New(amerrors.ErrCodeSearchFailed, "vector search failed", err)
	}

	x.mu.RLock()
	defer x.mu.RUnlock()
	matches := make([]Match, 0, len(hits))
	for _, h := range hits {
		info := x.records[h.ID]
		matches = append(matches, Match{
			ID:       h.ID,
			Score:    h.Score,
			Distance: h.Distance,
			Metadata: copyMetadata(info.Metadata),
			Preview:  info.Preview,
		})
	}
	return matches, nil
}

// Delete removes id. Unknown ids are not an error.
func (x *Index) Delete(ctx context.Context, id string) error {
	if !x.Available() {
		return ErrUnavailable
	}
	if err := x.vectors.Delete(ctx, []string{id}); err != nil {
		return amerrors.New(amerrors.ErrCodeIndexFailed, "failed to delete vector", err).
			WithDetail("id", id)
	}

	x.mu.Lock()
	delete(x.records, id)
	x.dirty = true
	x.mu.Unlock()
	return nil
}

// Count returns the number of indexed records, 0 when unavailable.
func (x *Index) Count() int {
	if !x.Available() {
		return 0
	}
	return x.vectors.Count()
}

// ListIDs returns the indexed ids in sorted order, nil when unavailable.
func (x *Index) ListIDs() []string {
	if !x.Available() {
		return nil
	}
	return x.vectors.AllIDs()
}

// Contains reports whether id is indexed.
func (x *Index) Contains(id string) bool {
	return x.Available() && x.vectors.Contains(id)
}

// Garbage returns the number of replaced or deleted vectors still held by
// the graph. They cost query time until Compact.
func (x *Index) Garbage() int {
	if !x.Available() {
		return 0
	}
	if hs, ok := x.vectors.(*store.HNSWStore); ok {
		return hs.Stats().Orphans
	}
	return 0
}

// Compact drops deleted vectors still held by the graph.
// Returns the number removed.
func (x *Index) Compact() (int, error) {
	if !x.Available() {
		return 0, ErrUnavailable
	}
	hs, ok := x.vectors.(*store.HNSWStore)
	if !ok {
		return 0, nil
	}
	removed, err := hs.Compact()
	if err != nil {
		return 0, amerrors.New(amerrors.ErrCodeIndexFailed, "failed to compact index", err)
	}
	if removed > 0 {
		x.mu.Lock()
		x.dirty = true
		x.mu.Unlock()
	}
	return removed, nil
}

// Save writes the graph and records if anything changed since the last save.
func (x *Index) Save() error {
	if !x.Available() {
		return nil
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	if !x.dirty {
		return nil
	}

	if err := x.vectors.Save(filepath.Join(x.dir, graphFile)); err != nil {
		return amerrors.New(amerrors.ErrCodeIndexFailed, "failed to save vector index", err).
			WithDetail("path", x.dir)
	}
	if err := writeRecords(filepath.Join(x.dir, recordsFile), x.records); err != nil {
		return amerrors.New(amerrors.ErrCodeIndexFailed, "failed to save index records", err).
			WithDetail("path", x.dir)
	}
	m := manifest{Model: x.embedder.ModelName(), Dimensions: x.embedder.Dimensions()}
	if err := writeGob(filepath.Join(x.dir, manifestFile), m); err != nil {
		return amerrors.New(amerrors.ErrCodeIndexFailed, "failed to save index manifest", err).
			WithDetail("path", x.dir)
	}
	x.dirty = false
	return nil
}

// Close saves and releases the vector store. The embedder belongs to the
// caller. Safe to call twice.
func (x *Index) Close() error {
	if !x.Available() {
		return nil
	}
	err := x.Save()

	x.mu.Lock()
	x.closed = true
	x.mu.Unlock()

	if cerr := x.vectors.Close(); err == nil {
		err = cerr
	}
	return err
}

func readRecords(path string) (map[string]recordInfo, error) {
	records := make(map[string]recordInfo)
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return records, nil
	}
	if err != nil {
		return records, err
	}
	defer f.Close()

	if err := gob.NewDecoder(f).Decode(&records); err != nil {
		return make(map[string]recordInfo), fmt.Errorf("decode records: %w", err)
	}
	return records, nil
}

func writeRecords(path string, records map[string]recordInfo) error {
	return writeGob(path, records)
}

// writeGob encodes v to path via a temp file and rename.
func writeGob(path string, v any) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := gob.NewEncoder(f).Encode(v); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// readManifest returns nil without error when no manifest was saved.
func readManifest(path string) (*manifest, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var m manifest
	if err := gob.NewDecoder(f).Decode(&m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return &m, nil
}

// changed reports whether saved was built by something other than e. An
// unrecorded model name only compares dimensions.
func changed(saved *manifest, e embed.Embedder) bool {
	if e.Dimensions() != 0 && saved.Dimensions != e.Dimensions() {
		return true
	}
	return saved.Model != "" && saved.Model != e.ModelName()
}

func modelChangedError(saved *manifest, e embed.Embedder) error {
	model := saved.Model
	if model == "" {
		model = "unknown model"
	}
	msg := fmt.Sprintf("semantic index was built with %s (%d dims), current embedder is %s (%d dims)",
		model, saved.Dimensions, e.ModelName(), e.Dimensions())
	return amerrors.New(amerrors.ErrCodeDimensionMismatch, msg, ErrModelChanged).
		WithDetail("saved_model", saved.Model).
		WithDetail("model", e.ModelName()).
		WithSuggestion("Run 'amanread sync --rebuild' to re-embed every document with the current model")
}

// SavedModel returns the embedding model recorded for the index under dir,
// or "" when none is recorded.
func SavedModel(dir string) string {
	m, err := readManifest(filepath.Join(dir, manifestFile))
	if err != nil || m == nil {
		return ""
	}
	return m.Model
}

// Remove deletes the index saved under dir. Missing files are ignored.
// The index must not be open.
func Remove(dir string) error {
	var errs []error
	for _, name := range []string{graphFile, graphFile + ".meta", recordsFile, manifestFile} {
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return amerrors.New(amerrors.ErrCodeIndexFailed, "failed to remove semantic index", err).
			WithDetail("path", dir)
	}
	return nil
}

// truncate cuts s to at most n characters.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func preview(text string) string {
	return truncate(strings.Join(strings.Fields(text), " "), PreviewLength)
}

func copyMetadata(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
