package retriever

import (
	"context"
	"time"

	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/domain/search"
)

// Repository defines the storage contract for retrieval sub-searches.
type Repository interface {
	SearchVector(
		ctx context.Context, tenant string, vector []float32, k int, scope search.Scope,
	) ([]search.Candidate, error)

	SearchText(
		ctx context.Context, tenant string, terms []string, topK int, scope search.Scope,
	) ([]search.Candidate, error)
}

// Embedder vectorizes the query text. The tenant scopes any caching layer
// the implementation carries.
type Embedder interface {
	Embed(ctx context.Context, tenant, text string) (domain.EmbeddingResult, error)
}

// ResultCache caches sub-search results per tenant and kind.
type ResultCache interface {
	Get(ctx context.Context, tenant, kind, material string, out any) bool
	Set(ctx context.Context, tenant, kind, material string, v any, ttl time.Duration)
}
