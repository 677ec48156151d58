// Package reranker reorders retrieval candidates with selectable strategies.
// Strategies never introduce candidates absent from the input; when the
// provider call a strategy depends on fails, the original order is returned.
package reranker

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/domain/rerank"
	"github.com/kailas-cloud/ragdex/internal/domain/search"
)

// Service applies reranking strategies to candidate lists.
type Service struct {
	embed  Embedder
	batch  BatchEmbedder
	logger *zap.Logger
	now    func() time.Time
}

// New creates a reranker. batch may be nil; missing candidate embeddings are
// then backfilled one call per text.
func New(embed Embedder, batch BatchEmbedder, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{embed: embed, batch: batch, logger: logger, now: time.Now}
}

// Rerank reorders candidates by the chosen strategy. Unknown strategies are
// an error; a failed provider call degrades to the original order.
func (s *Service) Rerank(
	ctx context.Context, query string, candidates []search.Candidate,
	strategy rerank.Strategy, opts rerank.Options,
) ([]rerank.Result, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	opts = opts.Normalize()

	var (
		results []rerank.Result
		err     error
	)
	switch strategy {
	case rerank.StrategySemantic:
		results, err = s.rerankSemantic(ctx, query, candidates)
	case rerank.StrategyCrossEncoder:
		results, err = s.rerankCrossEncoder(ctx, query, candidates)
	case rerank.StrategyHybrid:
		results, err = s.rerankHybrid(ctx, query, candidates, opts)
	case rerank.StrategyMMR:
		results, err = s.rerankMMR(ctx, query, candidates, opts)
	default:
		return nil, domain.ErrUnknownStrategy
	}

	if err != nil {
		s.logger.Warn("rerank degraded to original order",
			zap.String("strategy", string(strategy)), zap.Error(err))
		return originalOrder(candidates), nil
	}
	return results, nil
}

// queryAndCandidateVectors embeds the query and backfills missing candidate
// embeddings through the provider.
func (s *Service) queryAndCandidateVectors(
	ctx context.Context, query string, candidates []search.Candidate,
) ([]float32, [][]float32, error) {
	embResult, err := s.embed.Embed(ctx, query)
	if err != nil {
		return nil, nil, err
	}

	vectors := make([][]float32, len(candidates))
	var missingTexts []string
	var missingIdx []int
	for i, c := range candidates {
		if len(c.Embedding) > 0 {
			vectors[i] = c.Embedding
			continue
		}
		missingTexts = append(missingTexts, c.Content)
		missingIdx = append(missingIdx, i)
	}

	if len(missingTexts) > 0 {
		batch, err := s.batchEmbed(ctx, missingTexts)
		if err != nil {
			return nil, nil, err
		}
		for j, i := range missingIdx {
			vectors[i] = batch.Embeddings[j]
		}
	}
	return embResult.Embedding, vectors, nil
}

func (s *Service) batchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if s.batch != nil {
		return s.batch.BatchEmbed(ctx, texts)
	}
	return domain.BatchFallback(ctx, s.embed, texts)
}

// originalOrder is the degradation path: input order, fused scores kept.
func originalOrder(candidates []search.Candidate) []rerank.Result {
	results := make([]rerank.Result, len(candidates))
	for i, c := range candidates {
		results[i] = rerank.Result{
			Candidate:    c,
			Score:        c.Combined,
			Rank:         i,
			OriginalRank: i,
		}
	}
	return results
}

// resultsFromScores sorts candidates by score descending, stable on original
// rank, and fills in rank movement.
func resultsFromScores(
	candidates []search.Candidate, scores []float64, subs []map[string]float64,
) []rerank.Result {
	order := make([]int, len(candidates))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})
	return resultsFromOrder(candidates, order, scores, subs)
}

// resultsFromOrder builds results for an explicit selection order of
// candidate indexes.
func resultsFromOrder(
	candidates []search.Candidate, order []int, scores []float64, subs []map[string]float64,
) []rerank.Result {
	results := make([]rerank.Result, len(order))
	for rank, idx := range order {
		results[rank] = rerank.Result{
			Candidate:    candidates[idx],
			Score:        scores[idx],
			Rank:         rank,
			OriginalRank: idx,
			RankDelta:    idx - rank,
			SubScores:    subs[idx],
		}
	}
	return results
}
