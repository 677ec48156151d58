// Package pipeline orchestrates the two RAG flows: ingestion
// (chunk, dedup, embed, persist) and querying (retrieve, rerank, enrich,
// generate). Operations return structured receipts; only invalid input
// surfaces as an error.
package pipeline

import (
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Defaults for pipeline tuning knobs.
const (
	DefaultBatchSize            = 50
	DefaultMaxConcurrentBatches = 4
	DefaultEmbedTimeout         = 30 * time.Second
	DefaultGenerateTimeout      = 60 * time.Second
	DefaultMaxContexts          = 5

	// overfetchFactor widens retrieval before reranking trims back down.
	overfetchFactor = 3
)

// Config holds pipeline construction settings.
type Config struct {
	// BatchSize is the number of texts per embedding provider call.
	BatchSize int
	// MaxConcurrentBatches bounds in-flight embedding calls; excess batches
	// block rather than fail.
	MaxConcurrentBatches int
	// EmbedTimeout and GenerateTimeout bound individual provider calls.
	EmbedTimeout    time.Duration
	GenerateTimeout time.Duration
	// EmbeddingCacheTTL is the lifetime of cached chunk embeddings.
	EmbeddingCacheTTL time.Duration
	// MetadataTagFields lists document metadata keys that must be filterable
	// in the search index.
	MetadataTagFields []string
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.MaxConcurrentBatches <= 0 {
		c.MaxConcurrentBatches = DefaultMaxConcurrentBatches
	}
	if c.EmbedTimeout <= 0 {
		c.EmbedTimeout = DefaultEmbedTimeout
	}
	if c.GenerateTimeout <= 0 {
		c.GenerateTimeout = DefaultGenerateTimeout
	}
	return c
}

// Service wires the pipeline collaborators together.
type Service struct {
	chunker   Chunker
	chunks    ChunkStore
	docs      DocumentStore
	embCache  EmbeddingCache
	batch     BatchEmbedder
	retriever Retriever
	reranker  Reranker
	generator Generator
	results   ResultInvalidator

	cfg    Config
	sem    *semaphore.Weighted
	logger *zap.Logger
	now    func() time.Time
}

// New creates the pipeline service. generator and results may be nil when
// answer generation or result caching is disabled.
func New(
	chk Chunker, chunks ChunkStore, docs DocumentStore,
	embCache EmbeddingCache, batch BatchEmbedder,
	retr Retriever, rrk Reranker, gen Generator, results ResultInvalidator,
	cfg Config, logger *zap.Logger,
) *Service {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		chunker:   chk,
		chunks:    chunks,
		docs:      docs,
		embCache:  embCache,
		batch:     batch,
		retriever: retr,
		reranker:  rrk,
		generator: gen,
		results:   results,
		cfg:       cfg,
		sem:       semaphore.NewWeighted(int64(cfg.MaxConcurrentBatches)),
		logger:    logger,
		now:       time.Now,
	}
}
