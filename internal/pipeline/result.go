package pipeline

import (
	"time"

	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/domain/rerank"
	"github.com/kailas-cloud/ragdex/internal/domain/search"
)

// Hit is one reranked, context-enriched search result.
type Hit struct {
	ChunkID    string            `json:"chunk_id"`
	DocumentID string            `json:"document_id"`
	Ordinal    int               `json:"ordinal"`
	Content    string            `json:"content"`
	Preview    string            `json:"preview"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Source     search.Source     `json:"source"`

	Score        float64            `json:"score"`
	Rank         int                `json:"rank"`
	OriginalRank int                `json:"original_rank"`
	RankDelta    int                `json:"rank_delta"`
	SubScores    map[string]float64 `json:"sub_scores,omitempty"`

	// Window is the chunk text extended with its adjacent chunks (one on
	// each side when present).
	Window string `json:"window,omitempty"`
}

// SearchResult is the structured outcome of a pipeline search.
type SearchResult struct {
	Query    string        `json:"query"`
	Strategy string        `json:"strategy"`
	Hits     []Hit         `json:"hits"`
	Elapsed  time.Duration `json:"elapsed"`
}

// Source is one cited answer source.
type Source struct {
	DocumentID string  `json:"document_id"`
	ChunkID    string  `json:"chunk_id"`
	Score      float64 `json:"score"`
	Preview    string  `json:"preview"`
}

// Answer is the structured outcome of answer generation. Provider failures
// come back as Success=false with a message, never as a panic or an error
// crossing the pipeline boundary.
type Answer struct {
	Success    bool          `json:"success"`
	Message    string        `json:"message,omitempty"`
	Query      string        `json:"query"`
	Answer     string        `json:"answer"`
	Confidence float64       `json:"confidence"`
	Sources    []Source      `json:"sources,omitempty"`
	Elapsed    time.Duration `json:"elapsed"`
}

// AnswerOptions tune one generateAnswer call.
type AnswerOptions struct {
	Search      search.Options
	Strategy    rerank.Strategy
	Rerank      rerank.Options
	Generation  domain.GenerationOptions
	MaxContexts int
}
