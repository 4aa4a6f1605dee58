// Package embed turns text into vectors for the similarity index.
//
// OllamaEmbedder calls a local Ollama server. StaticEmbedder hashes words
// and character trigrams and needs nothing external. CachedEmbedder wraps
// either with an LRU of recent results.
package embed

import (
	"context"
	"math"
	"time"
)

const (
	// DefaultBatchSize is the number of texts sent per Ollama request.
	DefaultBatchSize = 32

	// DefaultTimeout bounds a single embedding call.
	DefaultTimeout = 30 * time.Second

	// ProbeTimeout bounds availability checks.
	ProbeTimeout = 2 * time.Second

	// StaticDimensions is the default static embedding dimension.
	StaticDimensions = 256
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for several texts, in order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimension.
	Dimensions() int

	// ModelName returns the model identifier.
	ModelName() string

	// Available checks if the embedder can currently serve requests.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}

// normalizeVector returns v scaled to unit length. Zero vectors are
// returned unchanged.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}

	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}

	normalized := make([]float32, len(v))
	for i, val := range v {
		normalized[i] = float32(float64(val) / magnitude)
	}
	return normalized
}
