package gateway

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto"
)

// CachedEmbedder wraps an Embedder with an in-process ristretto cache.
// Identical texts (summaries re-embedded on retry, repeated queries) hit
// the cache instead of the gateway. Cost is the vector size in bytes.
type CachedEmbedder struct {
	inner Embedder
	cache *ristretto.Cache
}

// NewCachedEmbedder creates a caching decorator around inner.
// maxBytes bounds the total cached vector payload.
func NewCachedEmbedder(inner Embedder, maxBytes int64) (*CachedEmbedder, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 100_000,
		MaxCost:     maxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	return &CachedEmbedder{inner: inner, cache: cache}, nil
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := c.cache.Get(text); ok {
		if vec, ok := v.([]float32); ok {
			return vec, nil
		}
	}

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	// Set is best-effort; a rejected admission just means a re-embed later.
	c.cache.Set(text, vec, int64(len(vec)*4))
	return vec, nil
}

func (c *CachedEmbedder) Dimensions() int {
	return c.inner.Dimensions()
}

// Wait blocks until buffered admissions are applied. Only tests need
// deterministic admission.
func (c *CachedEmbedder) Wait() {
	c.cache.Wait()
}

// Close releases cache resources.
func (c *CachedEmbedder) Close() {
	c.cache.Close()
}
