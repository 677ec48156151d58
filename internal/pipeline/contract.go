package pipeline

import (
	"context"
	"time"

	"github.com/kailas-cloud/ragdex/internal/chunker"
	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/domain/chunk"
	"github.com/kailas-cloud/ragdex/internal/domain/document"
	"github.com/kailas-cloud/ragdex/internal/domain/rerank"
	"github.com/kailas-cloud/ragdex/internal/domain/search"
)

// Chunker splits document content into ordered pieces.
type Chunker interface {
	Chunk(content string, docType chunker.DocType, tenant string, call chunker.Partial) []chunker.Piece
}

// ChunkStore persists and reads chunks. SaveAll replaces a document's chunk
// set in one transaction: neither partial writes nor an empty window between
// delete and write are ever observable.
type ChunkStore interface {
	SaveAll(ctx context.Context, tenant, documentID string, chunks []chunk.Chunk) error
	ByOrdinals(ctx context.Context, tenant, documentID string, ordinals []int) ([]chunk.Chunk, error)
	DeleteByDocument(ctx context.Context, tenant, documentID string) (int, error)
	Coverage(ctx context.Context, tenant, documentID string) (total, embedded int, err error)
	// EnsureIndex makes the search index available for vectors of the given
	// dimensionality. Idempotent.
	EnsureIndex(ctx context.Context, dim int, extraTagFields []string) error
}

// DocumentStore persists document metadata.
type DocumentStore interface {
	Save(ctx context.Context, doc *document.Document) (bool, error)
	Exists(ctx context.Context, tenant, id string) (bool, error)
	Delete(ctx context.Context, tenant, id string) error
}

// EmbeddingCache is the content-addressed text-to-vector cache. Failures are
// internal to the cache and observed only as misses.
type EmbeddingCache interface {
	Get(ctx context.Context, tenant, text string) ([]float32, bool)
	Put(ctx context.Context, tenant, text string, vec []float32, ttl time.Duration)
	Flush(ctx context.Context, tenant string) int
}

// ResultInvalidator drops cached retrieval results when the corpus changes.
type ResultInvalidator interface {
	Invalidate(ctx context.Context, tenant, kindPattern string) int
}

// Retriever runs the hybrid search over the chunk index.
type Retriever interface {
	Retrieve(ctx context.Context, tenant, query string, opts search.Options) ([]search.Candidate, error)
}

// Reranker reorders retrieval candidates.
type Reranker interface {
	Rerank(
		ctx context.Context, query string, candidates []search.Candidate,
		strategy rerank.Strategy, opts rerank.Options,
	) ([]rerank.Result, error)
}

// BatchEmbedder vectorizes chunk batches during ingestion.
type BatchEmbedder interface {
	BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error)
}

// Generator produces the final grounded answer text.
type Generator interface {
	Generate(ctx context.Context, prompt string, contexts []string, opts domain.GenerationOptions) (string, error)
}
