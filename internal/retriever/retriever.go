// Package retriever implements hybrid retrieval: parallel vector and keyword
// sub-searches fused with weighted Reciprocal Rank Fusion.
package retriever

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/domain/search"
	"github.com/kailas-cloud/ragdex/internal/metrics"
)

// Sub-search cache kinds.
const (
	cacheKindVector  = "vec"
	cacheKindKeyword = "kw"
)

// Service runs hybrid retrieval over the chunk index.
type Service struct {
	repo   Repository
	embed  Embedder
	cache  ResultCache
	logger *zap.Logger
}

// New creates a retriever. cache may be nil to disable sub-search caching.
func New(repo Repository, embed Embedder, cache ResultCache, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, embed: embed, cache: cache, logger: logger}
}

// Retrieve runs both sub-searches and fuses their rankings. A failed
// sub-search degrades to an empty contribution; only invalid input is an
// error, so both sub-searches failing still yields an empty success.
func (s *Service) Retrieve(
	ctx context.Context, tenant, query string, opts search.Options,
) ([]search.Candidate, error) {
	if tenant == "" {
		return nil, domain.ErrTenantRequired
	}
	if strings.TrimSpace(query) == "" {
		return nil, domain.ErrEmptyQuery
	}
	opts = opts.Normalize()
	scope := search.Scope{DocumentIDs: opts.DocumentIDs, Tags: opts.Metadata}

	vectorCands := s.vectorSearch(ctx, tenant, query, opts, scope)
	keywordCands := s.keywordSearch(ctx, tenant, query, opts, scope)

	metrics.RetrievalCandidates.WithLabelValues("vector").Observe(float64(len(vectorCands)))
	metrics.RetrievalCandidates.WithLabelValues("keyword").Observe(float64(len(keywordCands)))

	fused := fuseRRF(vectorCands, keywordCands, opts.VectorWeight, opts.KeywordWeight)
	if opts.Diversify {
		fused = diversify(fused, search.MaxPerDocument)
	}
	if len(fused) > opts.Limit {
		fused = fused[:opts.Limit]
	}

	s.logger.Debug("hybrid retrieval done",
		zap.String("tenant", tenant),
		zap.Int("vector_candidates", len(vectorCands)),
		zap.Int("keyword_candidates", len(keywordCands)),
		zap.Int("fused", len(fused)),
	)
	return fused, nil
}

// vectorSearch embeds the query and runs KNN, dropping hits below the
// similarity threshold. Any failure is logged and reported as no candidates.
func (s *Service) vectorSearch(
	ctx context.Context, tenant, query string, opts search.Options, scope search.Scope,
) []search.Candidate {
	material := query + "|" + opts.Fingerprint()

	var cached []search.Candidate
	if s.cache != nil && s.cache.Get(ctx, tenant, cacheKindVector, material, &cached) {
		return cached
	}

	embResult, err := s.embed.Embed(ctx, tenant, query)
	if err != nil {
		s.logger.Warn("vectorize query failed, vector sub-search skipped",
			zap.String("tenant", tenant), zap.Error(err))
		return nil
	}

	candidates, err := s.repo.SearchVector(ctx, tenant, embResult.Embedding, opts.VectorLimit, scope)
	if err != nil {
		s.logger.Warn("vector sub-search failed",
			zap.String("tenant", tenant), zap.Error(err))
		return nil
	}

	kept := candidates[:0]
	for _, c := range candidates {
		if c.VectorScore >= opts.SimilarityThreshold {
			kept = append(kept, c)
		}
	}

	if s.cache != nil {
		s.cache.Set(ctx, tenant, cacheKindVector, material, kept, opts.CacheTTL)
	}
	return kept
}

// keywordSearch normalizes the query into terms and runs BM25. A query with
// no usable terms contributes nothing.
func (s *Service) keywordSearch(
	ctx context.Context, tenant, query string, opts search.Options, scope search.Scope,
) []search.Candidate {
	terms := normalizeTerms(query)
	if len(terms) == 0 {
		return nil
	}

	material := strings.Join(terms, " ") + "|" + opts.Fingerprint()

	var cached []search.Candidate
	if s.cache != nil && s.cache.Get(ctx, tenant, cacheKindKeyword, material, &cached) {
		return cached
	}

	candidates, err := s.repo.SearchText(ctx, tenant, terms, opts.KeywordLimit, scope)
	if err != nil {
		s.logger.Warn("keyword sub-search failed",
			zap.String("tenant", tenant), zap.Error(err))
		return nil
	}

	if s.cache != nil {
		s.cache.Set(ctx, tenant, cacheKindKeyword, material, candidates, opts.CacheTTL)
	}
	return candidates
}
