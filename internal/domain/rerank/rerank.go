// Package rerank defines reranking strategies and their results.
package rerank

import (
	"fmt"

	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/domain/search"
)

// Strategy selects the reranking algorithm.
type Strategy string

// Supported strategies.
const (
	// StrategySemantic orders by cosine similarity between query and chunk embeddings.
	StrategySemantic Strategy = "semantic"
	// StrategyCrossEncoder approximates cross-encoder scoring from embedding
	// statistics (magnitude x variance). A heuristic proxy, not a real
	// cross-encoder model.
	StrategyCrossEncoder Strategy = "cross_encoder"
	// StrategyHybrid blends semantic, lexical-overlap, and recency signals
	// minus a diversity penalty.
	StrategyHybrid Strategy = "hybrid"
	// StrategyMMR applies greedy Maximal Marginal Relevance selection.
	StrategyMMR Strategy = "mmr"
)

// ParseStrategy validates a strategy name. Empty input defaults to semantic.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "":
		return StrategySemantic, nil
	case StrategySemantic, StrategyCrossEncoder, StrategyHybrid, StrategyMMR:
		return Strategy(s), nil
	default:
		return "", fmt.Errorf("%q: %w", s, domain.ErrUnknownStrategy)
	}
}

// Default strategy parameters.
const (
	DefaultLambda          = 0.7
	DefaultSemanticWeight  = 0.5
	DefaultLexicalWeight   = 0.3
	DefaultRecencyWeight   = 0.1
	DefaultDiversityWeight = 0.1
	DefaultHalfLifeDays    = 30.0
)

// Options tune a rerank call.
type Options struct {
	// Lambda balances relevance against redundancy for MMR: 1 is pure
	// relevance, 0 is maximal dissimilarity. Nil means the default.
	Lambda *float64
	// SemanticWeight, LexicalWeight, RecencyWeight are the hybrid blend weights.
	SemanticWeight float64
	LexicalWeight  float64
	RecencyWeight  float64
	// DiversityWeight scales the hybrid diversity penalty.
	DiversityWeight float64
	// HalfLifeDays is the recency decay half-life.
	HalfLifeDays float64
}

// EffectiveLambda resolves the MMR lambda, clamped to [0,1].
func (o Options) EffectiveLambda() float64 {
	if o.Lambda == nil {
		return DefaultLambda
	}
	switch l := *o.Lambda; {
	case l < 0:
		return 0
	case l > 1:
		return 1
	default:
		return l
	}
}

// Normalize fills zero values with defaults. Lambda stays as given since
// zero is a meaningful value; use EffectiveLambda to resolve it.
func (o Options) Normalize() Options {
	if o.SemanticWeight <= 0 && o.LexicalWeight <= 0 && o.RecencyWeight <= 0 {
		o.SemanticWeight = DefaultSemanticWeight
		o.LexicalWeight = DefaultLexicalWeight
		o.RecencyWeight = DefaultRecencyWeight
	}
	if o.DiversityWeight <= 0 {
		o.DiversityWeight = DefaultDiversityWeight
	}
	if o.HalfLifeDays <= 0 {
		o.HalfLifeDays = DefaultHalfLifeDays
	}
	return o
}

// Result is one reranked candidate with rank movement and the per-factor
// sub-scores that produced its final score.
type Result struct {
	Candidate search.Candidate `json:"candidate"`
	// Score is the final strategy score.
	Score float64 `json:"score"`
	// Rank is the post-rerank position (0-based).
	Rank int `json:"rank"`
	// OriginalRank is the pre-rerank position (0-based).
	OriginalRank int `json:"original_rank"`
	// RankDelta is OriginalRank - Rank: positive means the candidate moved up.
	RankDelta int `json:"rank_delta"`
	// SubScores holds the per-factor components (semantic, lexical, recency,
	// penalty, magnitude, variance, relevance) depending on strategy.
	SubScores map[string]float64 `json:"sub_scores,omitempty"`
}
