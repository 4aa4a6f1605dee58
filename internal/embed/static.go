package embed

import (
	"context"
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"
	"sync"
	"unicode"
)

// StaticEmbedder generates embeddings by feature hashing.
// Works without external dependencies (no network, no model download).
// Deterministic and fast, with far weaker semantics than a model: texts
// sharing words and spellings land close together.
type StaticEmbedder struct {
	dims int

	mu     sync.RWMutex
	closed bool
}

var _ Embedder = (*StaticEmbedder)(nil)

// proseStopWords carry no topical signal.
var proseStopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "but": true, "by": true, "for": true, "from": true, "has": true,
	"have": true, "in": true, "is": true, "it": true, "its": true, "of": true,
	"on": true, "or": true, "that": true, "the": true, "this": true, "to": true,
	"was": true, "were": true, "will": true, "with": true,
}

// Weights for vector generation
const (
	tokenWeight = 0.7
	ngramWeight = 0.3
	ngramSize   = 3
)

var tokenRegex = regexp.MustCompile(`[\p{L}\p{N}]+`)

// NewStaticEmbedder creates a static embedder of the given dimension.
// Non-positive dims use StaticDimensions.
func NewStaticEmbedder(dims int) *StaticEmbedder {
	if dims <= 0 {
		dims = StaticDimensions
	}
	return &StaticEmbedder{dims: dims}
}

// Embed generates the embedding for a single text.
// Blank text yields a zero vector.
func (e *StaticEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil, fmt.Errorf("embedder is closed")
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return make([]float32, e.dims), nil
	}
	return normalizeVector(e.generateVector(trimmed)), nil
}

func (e *StaticEmbedder) generateVector(text string) []float32 {
	vector := make([]float32, e.dims)

	for _, token := range tokenize(text) {
		vector[hashToIndex(token, e.dims)] += tokenWeight
	}

	for _, ngram := range extractNgrams(normalizeForNgrams(text), ngramSize) {
		vector[hashToIndex(ngram, e.dims)] += ngramWeight
	}

	return vector
}

// tokenize lowercases words and drops stop words.
func tokenize(text string) []string {
	words := tokenRegex.FindAllString(text, -1)
	tokens := make([]string, 0, len(words))
	for _, w := range words {
		lower := strings.ToLower(w)
		if !proseStopWords[lower] {
			tokens = append(tokens, lower)
		}
	}
	return tokens
}

// normalizeForNgrams keeps only lowercase letters and digits.
func normalizeForNgrams(text string) []rune {
	out := make([]rune, 0, len(text))
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			out = append(out, r)
		}
	}
	return out
}

// extractNgrams returns the n-rune sliding windows of text.
func extractNgrams(text []rune, n int) []string {
	if len(text) < n {
		return []string{}
	}
	ngrams := make([]string, 0, len(text)-n+1)
	for i := 0; i <= len(text)-n; i++ {
		ngrams = append(ngrams, string(text[i:i+n]))
	}
	return ngrams
}

// hashToIndex uses FNV-64 to map a string to an index.
func hashToIndex(s string, size int) int {
	h := fnv.New64()
	_, _ = h.Write([]byte(s))
	return int(h.Sum64() % uint64(size))
}

// EmbedBatch generates embeddings for multiple texts.
func (e *StaticEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("failed to embed text %d: %w", i, err)
		}
		results[i] = emb
	}
	return results, nil
}

// Dimensions returns the embedding dimension.
func (e *StaticEmbedder) Dimensions() int {
	return e.dims
}

// ModelName returns the model identifier.
func (e *StaticEmbedder) ModelName() string {
	return fmt.Sprintf("%s%d", staticModelPrefix, e.dims)
}

const staticModelPrefix = "static-"

// IsStaticModel reports whether name is a StaticEmbedder model name.
func IsStaticModel(name string) bool {
	return strings.HasPrefix(name, staticModelPrefix)
}

// Available reports true until Close.
func (e *StaticEmbedder) Available(_ context.Context) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return !e.closed
}

// Close releases resources.
func (e *StaticEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}
