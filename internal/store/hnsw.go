package store

import (
	"bufio"
	"context"
	"encoding/gob"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/coder/hnsw"
)

// HNSWStore implements VectorStore on the pure Go coder/hnsw graph with
// cosine distance.
//
// Deletes are lazy: the id mapping is dropped and the node stays in the
// graph until Compact. coder/hnsw misbehaves when its last node is deleted.
type HNSWStore struct {
	mu     sync.RWMutex
	graph  *hnsw.Graph[uint64]
	config VectorStoreConfig

	idMap   map[string]uint64 // string ID -> internal key
	keyMap  map[uint64]string // internal key -> string ID
	nextKey uint64

	closed bool
}

// hnswMetadata is the gob sidecar (<path>.meta) holding the id mappings.
type hnswMetadata struct {
	IDMap   map[string]uint64
	NextKey uint64
	Config  VectorStoreConfig
}

var _ VectorStore = (*HNSWStore)(nil)

// NewHNSWStore creates an empty store.
func NewHNSWStore(cfg VectorStoreConfig) *HNSWStore {
	if cfg.M == 0 {
		cfg.M = 16
	}
	if cfg.EfSearch == 0 {
		cfg.EfSearch = 64
	}

	return &HNSWStore{
		graph:  newGraph(cfg),
		config: cfg,
		idMap:  make(map[string]uint64),
		keyMap: make(map[uint64]string),
	}
}

func newGraph(cfg VectorStoreConfig) *hnsw.Graph[uint64] {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = cfg.M
	graph.EfSearch = cfg.EfSearch
	graph.Ml = 0.25
	return graph
}

// Add inserts vectors; an existing id is re-pointed at a new node.
// Zero vectors are rejected because their cosine distance is undefined.
func (s *HNSWStore) Add(ctx context.Context, ids []string, vectors [][]float32) error {
	if len(ids) == 0 {
		return nil
	}
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch: %d vs %d", len(ids), len(vectors))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	if s.config.Dimensions == 0 {
		s.config.Dimensions = len(vectors[0])
	}
	for i, v := range vectors {
		if len(v) != s.config.Dimensions {
			return ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(v)}
		}
		if isZeroVector(v) {
			return fmt.Errorf("vector for %s has zero magnitude", ids[i])
		}
	}

	for i, id := range ids {
		if existingKey, exists := s.idMap[id]; exists {
			delete(s.keyMap, existingKey)
			delete(s.idMap, id)
		}

		key := s.nextKey
		s.nextKey++

		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		normalizeVectorInPlace(vec)

		s.graph.Add(hnsw.MakeNode(key, vec))
		s.idMap[id] = key
		s.keyMap[key] = id
	}

	return nil
}

// Search returns up to k live vectors nearest to query, closest first.
// Orphaned nodes can occupy result slots, so the graph is asked for k plus
// the orphan count.
func (s *HNSWStore) Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}
	if k <= 0 || len(s.idMap) == 0 {
		return []*VectorResult{}, nil
	}
	if len(query) != s.config.Dimensions {
		return nil, ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(query)}
	}
	if isZeroVector(query) {
		return []*VectorResult{}, nil
	}

	normalized := make([]float32, len(query))
	copy(normalized, query)
	normalizeVectorInPlace(normalized)

	want := min(k+s.graph.Len()-len(s.idMap), s.graph.Len())
	nodes := s.graph.Search(normalized, want)

	results := make([]*VectorResult, 0, min(k, len(nodes)))
	for _, node := range nodes {
		id, live := s.keyMap[node.Key]
		if !live {
			continue
		}
		distance := s.graph.Distance(normalized, node.Value)
		results = append(results, &VectorResult{
			ID:       id,
			Distance: distance,
			Score:    DistanceToScore(distance),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Delete drops the id mappings; unknown ids are ignored.
func (s *HNSWStore) Delete(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	for _, id := range ids {
		if key, exists := s.idMap[id]; exists {
			delete(s.keyMap, key)
			delete(s.idMap, id)
		}
	}
	return nil
}

// AllIDs returns all live ids in sorted order.
func (s *HNSWStore) AllIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil
	}

	ids := make([]string, 0, len(s.idMap))
	for id := range s.idMap {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Contains checks if id is live.
func (s *HNSWStore) Contains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false
	}
	_, exists := s.idMap[id]
	return exists
}

// Count returns the number of live vectors.
func (s *HNSWStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0
	}
	return len(s.idMap)
}

// Dimensions returns the vector length, 0 until the first Add or Load.
func (s *HNSWStore) Dimensions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config.Dimensions
}

// HNSWStats reports live vectors against graph nodes.
type HNSWStats struct {
	ValidIDs   int
	GraphNodes int
	Orphans    int // lazily deleted nodes still in the graph
}

// Stats returns the store statistics.
func (s *HNSWStore) Stats() HNSWStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return HNSWStats{}
	}
	return HNSWStats{
		ValidIDs:   len(s.idMap),
		GraphNodes: s.graph.Len(),
		Orphans:    s.graph.Len() - len(s.idMap),
	}
}

// Compact rebuilds the graph from the live vectors, dropping orphaned nodes.
// Returns the number of nodes removed.
func (s *HNSWStore) Compact() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, fmt.Errorf("store is closed")
	}

	orphans := s.graph.Len() - len(s.idMap)
	if orphans == 0 {
		return 0, nil
	}

	fresh := newGraph(s.config)
	idMap := make(map[string]uint64, len(s.idMap))
	keyMap := make(map[uint64]string, len(s.idMap))
	var next uint64

	ids := make([]string, 0, len(s.idMap))
	for id := range s.idMap {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		vec, ok := s.graph.Lookup(s.idMap[id])
		if !ok {
			return 0, fmt.Errorf("vector for %s missing from graph", id)
		}
		fresh.Add(hnsw.MakeNode(next, vec))
		idMap[id] = next
		keyMap[next] = id
		next++
	}

	s.graph = fresh
	s.idMap = idMap
	s.keyMap = keyMap
	s.nextKey = next
	return orphans, nil
}

// Save writes the graph to path and the id mappings to path+".meta",
// each via temp file and rename.
func (s *HNSWStore) Save(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create index file: %w", err)
	}
	if err := s.graph.Export(file); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to export graph: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close index file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename index file: %w", err)
	}

	if err := s.saveMetadata(path + ".meta"); err != nil {
		return fmt.Errorf("failed to save metadata: %w", err)
	}
	return nil
}

func (s *HNSWStore) saveMetadata(path string) error {
	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp metadata file: %w", err)
	}

	meta := hnswMetadata{IDMap: s.idMap, NextKey: s.nextKey, Config: s.config}
	if err := gob.NewEncoder(file).Encode(meta); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close metadata file: %w", err)
	}
	return os.Rename(tmpPath, path)
}

// Load replaces the store contents with the graph saved at path.
func (s *HNSWStore) Load(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	meta, err := readMetadata(path + ".meta")
	if err != nil {
		return fmt.Errorf("failed to load metadata: %w", err)
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open index file: %w", err)
	}
	defer file.Close()

	graph := newGraph(meta.Config)
	// coder/hnsw Import requires an io.ByteReader.
	if err := graph.Import(bufio.NewReader(file)); err != nil {
		return fmt.Errorf("failed to import graph: %w", err)
	}

	s.graph = graph
	s.config = meta.Config
	s.idMap = meta.IDMap
	if s.idMap == nil {
		s.idMap = make(map[string]uint64)
	}
	s.nextKey = meta.NextKey
	s.keyMap = make(map[uint64]string, len(s.idMap))
	for id, key := range s.idMap {
		s.keyMap[key] = id
	}
	return nil
}

func readMetadata(path string) (*hnswMetadata, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open metadata file: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			slog.Warn("failed to close metadata file", slog.String("error", err.Error()))
		}
	}()

	var meta hnswMetadata
	if err := gob.NewDecoder(file).Decode(&meta); err != nil {
		return nil, fmt.Errorf("decode hnsw metadata: %w", err)
	}
	return &meta, nil
}

// ReadHNSWStoreDimensions returns the dimension recorded beside a saved
// graph, or 0 when nothing has been saved yet.
func ReadHNSWStoreDimensions(vectorPath string) (int, error) {
	meta, err := readMetadata(vectorPath + ".meta")
	if err != nil {
		if _, statErr := os.Stat(vectorPath + ".meta"); os.IsNotExist(statErr) {
			return 0, nil
		}
		return 0, err
	}
	return meta.Config.Dimensions, nil
}

// Close releases the graph. Safe to call twice.
func (s *HNSWStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.graph = nil
	return nil
}

// DistanceToScore converts a cosine distance to a similarity score:
// max(0, 1-distance), clamped to [0,1]. NaN maps to 0.
func DistanceToScore(distance float32) float32 {
	score := 1 - distance
	if !(score > 0) {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

func normalizeVectorInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}

func isZeroVector(v []float32) bool {
	for _, val := range v {
		if val != 0 {
			return false
		}
	}
	return true
}
