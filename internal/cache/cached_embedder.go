package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

// CachedEmbedder decorates an embedder with the tenant-scoped embedding
// cache. Cache hits report zero token usage since no provider call happened.
type CachedEmbedder struct {
	inner domain.Embedder
	cache *EmbeddingCache
	ttl   time.Duration
}

// NewCachedEmbedder creates the caching decorator. ttl <= 0 uses the cache's
// default entry lifetime.
func NewCachedEmbedder(inner domain.Embedder, cache *EmbeddingCache, ttl time.Duration) *CachedEmbedder {
	return &CachedEmbedder{inner: inner, cache: cache, ttl: ttl}
}

// Embed returns a cached vector for the tenant or calls the inner embedder
// and stores the result.
func (c *CachedEmbedder) Embed(ctx context.Context, tenant, text string) (domain.EmbeddingResult, error) {
	if vec, ok := c.cache.Get(ctx, tenant, text); ok {
		return domain.EmbeddingResult{Embedding: vec}, nil
	}

	result, err := c.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed text: %w", err)
	}

	c.cache.Put(ctx, tenant, text, result.Embedding, c.ttl)
	return result, nil
}
