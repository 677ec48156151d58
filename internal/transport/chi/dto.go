package chi

import (
	"time"

	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/domain/document"
	"github.com/kailas-cloud/ragdex/internal/domain/ingest"
	"github.com/kailas-cloud/ragdex/internal/domain/rerank"
	"github.com/kailas-cloud/ragdex/internal/domain/search"
	"github.com/kailas-cloud/ragdex/internal/pipeline"
)

// errorCode classifies an error response for the client.
type errorCode string

const (
	codeBadRequest       errorCode = "bad_request"
	codeValidationFailed errorCode = "validation_failed"
	codeDocumentNotFound errorCode = "document_not_found"
	codeUnknownStrategy  errorCode = "unknown_strategy"
	codeProviderError    errorCode = "provider_error"
	codeInternalError    errorCode = "internal_error"
)

type errorResponse struct {
	Code    errorCode `json:"code"`
	Message string    `json:"message"`
}

// ingestRequest is the body of PUT /documents/{id}.
type ingestRequest struct {
	Content   string            `json:"content"`
	DocType   string            `json:"doc_type,omitempty"`
	Title     string            `json:"title,omitempty"`
	Source    string            `json:"source,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	ChunkSize int               `json:"chunk_size,omitempty"`
	Overlap   int               `json:"overlap,omitempty"`
}

func (r ingestRequest) options(async bool) ingest.Options {
	return ingest.Options{
		Title:     r.Title,
		Source:    r.Source,
		Metadata:  r.Metadata,
		ChunkSize: r.ChunkSize,
		Overlap:   r.Overlap,
		Async:     async,
	}
}

// retrievalParams are the retrieval knobs shared by search and answer requests.
type retrievalParams struct {
	Limit               int               `json:"limit,omitempty"`
	VectorLimit         int               `json:"vector_limit,omitempty"`
	KeywordLimit        int               `json:"keyword_limit,omitempty"`
	SimilarityThreshold float64           `json:"similarity_threshold,omitempty"`
	VectorWeight        float64           `json:"vector_weight,omitempty"`
	KeywordWeight       float64           `json:"keyword_weight,omitempty"`
	Diversify           bool              `json:"diversify,omitempty"`
	DocumentIDs         []string          `json:"document_ids,omitempty"`
	Metadata            map[string]string `json:"metadata,omitempty"`
}

func (p retrievalParams) options() search.Options {
	return search.Options{
		Limit:               p.Limit,
		VectorLimit:         p.VectorLimit,
		KeywordLimit:        p.KeywordLimit,
		SimilarityThreshold: p.SimilarityThreshold,
		VectorWeight:        p.VectorWeight,
		KeywordWeight:       p.KeywordWeight,
		Diversify:           p.Diversify,
		DocumentIDs:         p.DocumentIDs,
		Metadata:            p.Metadata,
	}
}

// rerankParams are the strategy knobs shared by search and answer requests.
type rerankParams struct {
	Lambda          *float64 `json:"lambda,omitempty"`
	SemanticWeight  float64  `json:"semantic_weight,omitempty"`
	LexicalWeight   float64  `json:"lexical_weight,omitempty"`
	RecencyWeight   float64  `json:"recency_weight,omitempty"`
	DiversityWeight float64  `json:"diversity_weight,omitempty"`
	HalfLifeDays    float64  `json:"half_life_days,omitempty"`
}

func (p rerankParams) options() rerank.Options {
	return rerank.Options{
		Lambda:          p.Lambda,
		SemanticWeight:  p.SemanticWeight,
		LexicalWeight:   p.LexicalWeight,
		RecencyWeight:   p.RecencyWeight,
		DiversityWeight: p.DiversityWeight,
		HalfLifeDays:    p.HalfLifeDays,
	}
}

// searchRequest is the body of POST /search.
type searchRequest struct {
	Query    string          `json:"query"`
	Strategy string          `json:"strategy,omitempty"`
	Retrieve retrievalParams `json:"retrieve,omitempty"`
	Rerank   rerankParams    `json:"rerank,omitempty"`
}

// answerRequest is the body of POST /answer.
type answerRequest struct {
	searchRequest
	MaxContexts int              `json:"max_contexts,omitempty"`
	Generation  generationParams `json:"generation,omitempty"`
}

type generationParams struct {
	Model       string  `json:"model,omitempty"`
	Temperature float32 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
}

func (r answerRequest) answerOptions(strategy rerank.Strategy) pipeline.AnswerOptions {
	return pipeline.AnswerOptions{
		Search:   r.Retrieve.options(),
		Strategy: strategy,
		Rerank:   r.Rerank.options(),
		Generation: domain.GenerationOptions{
			Model:       r.Generation.Model,
			Temperature: r.Generation.Temperature,
			MaxTokens:   r.Generation.MaxTokens,
		},
		MaxContexts: r.MaxContexts,
	}
}

// documentResponse is the wire form of a stored document record.
type documentResponse struct {
	ID        string            `json:"id"`
	Title     string            `json:"title,omitempty"`
	Source    string            `json:"source,omitempty"`
	DocType   string            `json:"doc_type,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

func documentToResponse(d *document.Document) documentResponse {
	return documentResponse{
		ID:        d.ID(),
		Title:     d.Title(),
		Source:    d.Source(),
		DocType:   d.Type(),
		Metadata:  d.Metadata(),
		CreatedAt: d.CreatedAt(),
	}
}

type documentListResponse struct {
	Items []documentResponse `json:"items"`
	Total int                `json:"total"`
}

type flushResponse struct {
	Tenant             string `json:"tenant"`
	EmbeddingsFlushed  int    `json:"embeddings_flushed"`
	ResultsInvalidated int    `json:"results_invalidated"`
}

type deleteResponse struct {
	DocumentID    string `json:"document_id"`
	ChunksDeleted int    `json:"chunks_deleted"`
}

// ingestResponse mirrors ingest.Receipt with wire-friendly durations.
type ingestResponse struct {
	Success             bool      `json:"success"`
	Message             string    `json:"message,omitempty"`
	DocumentID          string    `json:"document_id"`
	ChunksCreated       int       `json:"chunks_created"`
	DedupRatio          float64   `json:"dedup_ratio"`
	CacheHitRate        float64   `json:"cache_hit_rate"`
	ProcessingMs        int64     `json:"processing_ms"`
	Async               bool      `json:"async,omitempty"`
	EstimatedCompletion time.Time `json:"estimated_completion,omitzero"`
}

func receiptToResponse(r ingest.Receipt) ingestResponse {
	return ingestResponse{
		Success:             r.Success,
		Message:             r.Message,
		DocumentID:          r.DocumentID,
		ChunksCreated:       r.ChunksCreated,
		DedupRatio:          r.DedupRatio,
		CacheHitRate:        r.CacheHitRate,
		ProcessingMs:        r.Elapsed.Milliseconds(),
		Async:               r.Async,
		EstimatedCompletion: r.EstimatedCompletion,
	}
}

type searchResponse struct {
	Query     string         `json:"query"`
	Strategy  string         `json:"strategy"`
	Hits      []pipeline.Hit `json:"hits"`
	Total     int            `json:"total"`
	ElapsedMs int64          `json:"elapsed_ms"`
}

func searchToResponse(r *pipeline.SearchResult) searchResponse {
	return searchResponse{
		Query:     r.Query,
		Strategy:  r.Strategy,
		Hits:      r.Hits,
		Total:     len(r.Hits),
		ElapsedMs: r.Elapsed.Milliseconds(),
	}
}

type answerResponse struct {
	Success    bool              `json:"success"`
	Message    string            `json:"message,omitempty"`
	Query      string            `json:"query"`
	Answer     string            `json:"answer"`
	Confidence float64           `json:"confidence"`
	Sources    []pipeline.Source `json:"sources,omitempty"`
	ElapsedMs  int64             `json:"elapsed_ms"`
}

func answerToResponse(a *pipeline.Answer) answerResponse {
	return answerResponse{
		Success:    a.Success,
		Message:    a.Message,
		Query:      a.Query,
		Answer:     a.Answer,
		Confidence: a.Confidence,
		Sources:    a.Sources,
		ElapsedMs:  a.Elapsed.Milliseconds(),
	}
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
