package pipeline

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain/chunk"
	"github.com/kailas-cloud/ragdex/internal/domain/rerank"
	"github.com/kailas-cloud/ragdex/internal/domain/search"
)

// NoInformationAnswer is returned when retrieval finds nothing to ground an
// answer on.
const NoInformationAnswer = "No relevant information was found to answer this question."

// Search retrieves with a widened limit, reranks down to the requested one,
// and enriches each hit with its adjacent-chunk text window. Zero matches is
// an empty success, not an error.
func (s *Service) Search(
	ctx context.Context, tenant, query string,
	opts search.Options, strategy rerank.Strategy, ropts rerank.Options,
) (*SearchResult, error) {
	start := s.now()
	opts = opts.Normalize()

	over := opts
	over.Limit = opts.Limit * overfetchFactor

	candidates, err := s.retriever.Retrieve(ctx, tenant, query, over)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return &SearchResult{
			Query:    query,
			Strategy: string(strategy),
			Hits:     []Hit{},
			Elapsed:  s.now().Sub(start),
		}, nil
	}

	reranked, err := s.reranker.Rerank(ctx, query, candidates, strategy, ropts)
	if err != nil {
		return nil, err
	}
	if len(reranked) > opts.Limit {
		reranked = reranked[:opts.Limit]
	}

	hits := make([]Hit, len(reranked))
	for i, r := range reranked {
		hits[i] = Hit{
			ChunkID:      r.Candidate.ChunkID,
			DocumentID:   r.Candidate.DocumentID,
			Ordinal:      r.Candidate.Ordinal,
			Content:      r.Candidate.Content,
			Preview:      r.Candidate.Preview,
			Metadata:     r.Candidate.Metadata,
			Source:       r.Candidate.Source,
			Score:        r.Score,
			Rank:         r.Rank,
			OriginalRank: r.OriginalRank,
			RankDelta:    r.RankDelta,
			SubScores:    r.SubScores,
			Window:       s.adjacentWindow(ctx, tenant, r.Candidate),
		}
	}

	return &SearchResult{
		Query:    query,
		Strategy: string(strategy),
		Hits:     hits,
		Elapsed:  s.now().Sub(start),
	}, nil
}

// GenerateAnswer runs Search and grounds a generation call on the top hits.
// Retrieval finding nothing yields the fixed no-information answer with
// confidence 0; a generation provider failure is a structured failure.
func (s *Service) GenerateAnswer(
	ctx context.Context, tenant, query string, opts AnswerOptions,
) (*Answer, error) {
	start := s.now()

	if s.generator == nil {
		return &Answer{
			Success: false,
			Message: "answer generation is not configured",
			Query:   query,
		}, nil
	}

	result, err := s.Search(ctx, tenant, query, opts.Search, opts.Strategy, opts.Rerank)
	if err != nil {
		return nil, err
	}
	if len(result.Hits) == 0 {
		return &Answer{
			Success:    true,
			Query:      query,
			Answer:     NoInformationAnswer,
			Confidence: 0,
			Elapsed:    s.now().Sub(start),
		}, nil
	}

	maxContexts := opts.MaxContexts
	if maxContexts <= 0 {
		maxContexts = DefaultMaxContexts
	}
	used := result.Hits
	if len(used) > maxContexts {
		used = used[:maxContexts]
	}

	contexts := make([]string, len(used))
	sources := make([]Source, len(used))
	for i, h := range used {
		text := h.Window
		if text == "" {
			text = h.Content
		}
		contexts[i] = text
		sources[i] = Source{
			DocumentID: h.DocumentID,
			ChunkID:    h.ChunkID,
			Score:      h.Score,
			Preview:    h.Preview,
		}
	}

	genCtx, cancel := context.WithTimeout(ctx, s.cfg.GenerateTimeout)
	defer cancel()

	text, err := s.generator.Generate(genCtx, query, contexts, opts.Generation)
	if err != nil {
		s.logger.Warn("answer generation failed",
			zap.String("tenant", tenant), zap.Error(err))
		return &Answer{
			Success: false,
			Message: "generation failed: " + err.Error(),
			Query:   query,
			Sources: sources,
			Elapsed: s.now().Sub(start),
		}, nil
	}

	return &Answer{
		Success:    true,
		Query:      query,
		Answer:     text,
		Confidence: confidence(used, text),
		Sources:    sources,
		Elapsed:    s.now().Sub(start),
	}, nil
}

// adjacentWindow joins a hit's text with its neighboring chunks. Enrichment
// trouble degrades to the bare chunk text.
func (s *Service) adjacentWindow(ctx context.Context, tenant string, c search.Candidate) string {
	ordinals := []int{c.Ordinal + 1}
	if c.Ordinal > 0 {
		ordinals = append([]int{c.Ordinal - 1}, ordinals...)
	}

	neighbors, err := s.chunks.ByOrdinals(ctx, tenant, c.DocumentID, ordinals)
	if err != nil {
		s.logger.Warn("adjacent chunk enrichment failed",
			zap.String("document_id", c.DocumentID), zap.Error(err))
		return c.Content
	}
	if len(neighbors) == 0 {
		return c.Content
	}

	window := make([]chunk.Chunk, 0, len(neighbors))
	window = append(window, neighbors...)
	sort.Slice(window, func(i, j int) bool { return window[i].Ordinal() < window[j].Ordinal() })

	parts := make([]string, 0, len(window)+1)
	inserted := false
	for i := range window {
		if !inserted && window[i].Ordinal() > c.Ordinal {
			parts = append(parts, c.Content)
			inserted = true
		}
		parts = append(parts, window[i].Content())
	}
	if !inserted {
		parts = append(parts, c.Content)
	}
	return strings.Join(parts, "\n")
}

// confidence blends average hit score, answer length, and source count:
// 0.6*avg_score + 0.2*min(1, len/200) + 0.2*min(1, sources/5), capped at 1.
func confidence(hits []Hit, answer string) float64 {
	var sum float64
	for _, h := range hits {
		sum += clamp01(h.Score)
	}
	avg := sum / float64(len(hits))

	score := 0.6*avg +
		0.2*min(1, float64(len(answer))/200) +
		0.2*min(1, float64(len(hits))/5)
	return clamp01(score)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
