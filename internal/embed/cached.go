package embed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of embeddings kept when no size is given.
const DefaultCacheSize = 1000

// CachedEmbedder wraps an Embedder with an LRU of recent results.
// Repeated semantic queries and re-syncs of unchanged text skip the model.
type CachedEmbedder struct {
	inner Embedder
	cache *lru.Cache[string, []float32]

	hits   atomic.Int64
	misses atomic.Int64
}

var _ Embedder = (*CachedEmbedder)(nil)

// NewCachedEmbedder wraps inner with a cache of size entries.
func NewCachedEmbedder(inner Embedder, size int) *CachedEmbedder {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, _ := lru.New[string, []float32](size)
	return &CachedEmbedder{inner: inner, cache: cache}
}

// cacheKey hashes text together with the model name, so switching models
// never serves a stale vector.
func (c *CachedEmbedder) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(c.inner.ModelName() + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

// Embed returns the cached vector for text or computes and stores it.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.cacheKey(text)
	if vec, ok := c.cache.Get(key); ok {
		c.hits.Add(1)
		return vec, nil
	}
	c.misses.Add(1)

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, vec)
	return vec, nil
}

// EmbedBatch serves what it can from the cache and sends the rest to the
// inner embedder in one batch.
func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string

	for i, text := range texts {
		if vec, ok := c.cache.Get(c.cacheKey(text)); ok {
			c.hits.Add(1)
			results[i] = vec
			continue
		}
		c.misses.Add(1)
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}
	if len(missTexts) == 0 {
		return results, nil
	}

	fresh, err := c.inner.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for j, idx := range missIdx {
		results[idx] = fresh[j]
		c.cache.Add(c.cacheKey(texts[idx]), fresh[j])
	}
	return results, nil
}

// CacheStats reports cache effectiveness.
type CacheStats struct {
	Hits    int64
	Misses  int64
	Entries int
}

// Stats returns a snapshot of the cache counters.
func (c *CachedEmbedder) Stats() CacheStats {
	return CacheStats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Entries: c.cache.Len(),
	}
}

// Inner returns the wrapped embedder.
func (c *CachedEmbedder) Inner() Embedder { return c.inner }

func (c *CachedEmbedder) Dimensions() int { return c.inner.Dimensions() }

func (c *CachedEmbedder) ModelName() string { return c.inner.ModelName() }

func (c *CachedEmbedder) Available(ctx context.Context) bool { return c.inner.Available(ctx) }

// Close purges the cache and closes the inner embedder.
func (c *CachedEmbedder) Close() error {
	c.cache.Purge()
	return c.inner.Close()
}
