package reranker

import (
	"context"
	"math"
	"strings"
	"time"
	"unicode"

	"github.com/kailas-cloud/ragdex/internal/domain/rerank"
	"github.com/kailas-cloud/ragdex/internal/domain/search"
)

// rerankSemantic scores each candidate by cosine similarity between the query
// embedding and the candidate embedding.
func (s *Service) rerankSemantic(
	ctx context.Context, query string, candidates []search.Candidate,
) ([]rerank.Result, error) {
	queryVec, vectors, err := s.queryAndCandidateVectors(ctx, query, candidates)
	if err != nil {
		return nil, err
	}

	scores := make([]float64, len(candidates))
	subs := make([]map[string]float64, len(candidates))
	for i := range candidates {
		scores[i] = cosine(queryVec, vectors[i])
		subs[i] = map[string]float64{"semantic": scores[i]}
	}
	return resultsFromScores(candidates, scores, subs), nil
}

// rerankCrossEncoder embeds each query+content pair and derives a
// pseudo-score from embedding magnitude times component variance, normalized
// by the best pair. An approximation of a cross-encoder, not a replacement.
func (s *Service) rerankCrossEncoder(
	ctx context.Context, query string, candidates []search.Candidate,
) ([]rerank.Result, error) {
	pairs := make([]string, len(candidates))
	for i, c := range candidates {
		pairs[i] = query + "\n" + c.Content
	}

	batch, err := s.batchEmbed(ctx, pairs)
	if err != nil {
		return nil, err
	}

	scores := make([]float64, len(candidates))
	subs := make([]map[string]float64, len(candidates))
	var maxScore float64
	for i := range candidates {
		mag := magnitude(batch.Embeddings[i])
		vr := variance(batch.Embeddings[i])
		scores[i] = mag * vr
		if scores[i] > maxScore {
			maxScore = scores[i]
		}
		subs[i] = map[string]float64{"magnitude": mag, "variance": vr}
	}
	if maxScore > 0 {
		for i := range scores {
			scores[i] /= maxScore
		}
	}
	return resultsFromScores(candidates, scores, subs), nil
}

// rerankHybrid blends semantic similarity, lexical overlap, and recency, then
// greedily selects while subtracting a diversity penalty against
// already-selected candidates with positional decay.
func (s *Service) rerankHybrid(
	ctx context.Context, query string, candidates []search.Candidate, opts rerank.Options,
) ([]rerank.Result, error) {
	queryVec, vectors, err := s.queryAndCandidateVectors(ctx, query, candidates)
	if err != nil {
		return nil, err
	}

	queryTerms := tokenize(query)
	now := s.now().UTC()

	base := make([]float64, len(candidates))
	subs := make([]map[string]float64, len(candidates))
	for i, c := range candidates {
		semantic := cosine(queryVec, vectors[i])
		lexical := lexicalOverlap(queryTerms, c.Content)
		recency := recencyDecay(now, c.CreatedAt, opts.HalfLifeDays)

		base[i] = opts.SemanticWeight*semantic + opts.LexicalWeight*lexical + opts.RecencyWeight*recency
		subs[i] = map[string]float64{
			"semantic": semantic,
			"lexical":  lexical,
			"recency":  recency,
		}
	}

	scores := make([]float64, len(candidates))
	order := make([]int, 0, len(candidates))
	selected := make([]bool, len(candidates))

	for len(order) < len(candidates) {
		best, bestScore := -1, math.Inf(-1)
		for i := range candidates {
			if selected[i] {
				continue
			}
			penalty := 0.0
			for pos, j := range order {
				penalty += cosine(vectors[i], vectors[j]) * opts.DiversityWeight / float64(pos+1)
			}
			score := base[i] - penalty
			if score > bestScore {
				best, bestScore = i, score
			}
		}
		selected[best] = true
		scores[best] = bestScore
		subs[best]["penalty"] = base[best] - bestScore
		order = append(order, best)
	}

	return resultsFromOrder(candidates, order, scores, subs), nil
}

// rerankMMR applies greedy Maximal Marginal Relevance: the most relevant
// candidate first, then repeated argmax of
// lambda*relevance - (1-lambda)*max_similarity_to_selected until exhausted.
func (s *Service) rerankMMR(
	ctx context.Context, query string, candidates []search.Candidate, opts rerank.Options,
) ([]rerank.Result, error) {
	queryVec, vectors, err := s.queryAndCandidateVectors(ctx, query, candidates)
	if err != nil {
		return nil, err
	}
	lambda := opts.EffectiveLambda()

	relevance := make([]float64, len(candidates))
	for i := range candidates {
		relevance[i] = cosine(queryVec, vectors[i])
	}

	scores := make([]float64, len(candidates))
	subs := make([]map[string]float64, len(candidates))
	order := make([]int, 0, len(candidates))
	selected := make([]bool, len(candidates))

	for len(order) < len(candidates) {
		best, bestScore, bestRedundancy := -1, math.Inf(-1), 0.0
		for i := range candidates {
			if selected[i] {
				continue
			}
			redundancy := 0.0
			for _, j := range order {
				if sim := cosine(vectors[i], vectors[j]); sim > redundancy {
					redundancy = sim
				}
			}
			score := lambda*relevance[i] - (1-lambda)*redundancy
			if score > bestScore {
				best, bestScore, bestRedundancy = i, score, redundancy
			}
		}
		selected[best] = true
		scores[best] = bestScore
		subs[best] = map[string]float64{
			"relevance":  relevance[best],
			"redundancy": bestRedundancy,
		}
		order = append(order, best)
	}

	return resultsFromOrder(candidates, order, scores, subs), nil
}

// tokenize lowercases and splits on non-alphanumeric runes.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// lexicalOverlap is the fraction of query terms present in the content.
func lexicalOverlap(queryTerms []string, content string) float64 {
	if len(queryTerms) == 0 {
		return 0
	}
	contentTerms := make(map[string]struct{})
	for _, t := range tokenize(content) {
		contentTerms[t] = struct{}{}
	}
	hits := 0
	for _, t := range queryTerms {
		if _, ok := contentTerms[t]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(queryTerms))
}

// recencyDecay is 0.5^(age_days/half_life). Candidates with an unknown
// creation time score 0.
func recencyDecay(now time.Time, createdAt int64, halfLifeDays float64) float64 {
	if createdAt <= 0 || halfLifeDays <= 0 {
		return 0
	}
	ageDays := now.Sub(time.Unix(createdAt, 0)).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	return math.Pow(0.5, ageDays/halfLifeDays)
}
