package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/chunker"
	"github.com/kailas-cloud/ragdex/internal/dedup"
	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/domain/chunk"
	"github.com/kailas-cloud/ragdex/internal/domain/document"
	"github.com/kailas-cloud/ragdex/internal/domain/ingest"
	"github.com/kailas-cloud/ragdex/internal/metrics"
)

// asyncIngestTimeout bounds one background ingestion run.
const asyncIngestTimeout = 10 * time.Minute

// ProcessDocument ingests one document synchronously: chunk, dedup, embed in
// bounded-concurrency batches, persist atomically. Re-ingesting an existing
// document replaces it wholesale. A failed embedding batch degrades to
// storing its chunks without vectors; only storage failures fail the run.
func (s *Service) ProcessDocument(
	ctx context.Context, tenant, documentID, content, docType string, opts ingest.Options,
) ingest.Receipt {
	start := s.now()

	doc, err := document.New(documentID, tenant, opts.Title, opts.Source, docType, opts.Metadata)
	if err != nil {
		return s.failIngest(documentID, start, "invalid document: "+err.Error())
	}

	pieces := s.chunker.Chunk(content, chunker.DocType(docType), tenant, chunker.Partial{
		ChunkSize: opts.ChunkSize,
		Overlap:   opts.Overlap,
	})
	if len(pieces) == 0 {
		return ingest.Receipt{
			Success:    true,
			Message:    "no content to ingest",
			DocumentID: documentID,
			Elapsed:    s.now().Sub(start),
		}
	}

	ded := dedup.Dedup(pieces)

	chunks := make([]chunk.Chunk, 0, len(ded.Pieces))
	for _, p := range ded.Pieces {
		c, err := chunk.New(uuid.NewString(), documentID, len(chunks), p.Text, mergeMetadata(opts.Metadata, p.Metadata))
		if err != nil {
			s.logger.Warn("skipping invalid chunk", zap.String("document_id", documentID), zap.Error(err))
			continue
		}
		chunks = append(chunks, c)
	}
	if len(chunks) == 0 {
		return s.failIngest(documentID, start, "no valid chunks produced")
	}

	cacheHits := s.embedChunks(ctx, tenant, chunks)

	// Wholesale replacement: SaveAll swaps the old chunk set for the new one
	// in a single transaction, so a failure keeps the old set intact.
	if err := s.chunks.SaveAll(ctx, tenant, documentID, chunks); err != nil {
		return s.failIngest(documentID, start, "persist chunks: "+err.Error())
	}
	if _, err := s.docs.Save(ctx, &doc); err != nil {
		return s.failIngest(documentID, start, "persist document: "+err.Error())
	}

	s.notifyIndex(ctx, chunks)
	if s.results != nil {
		s.results.Invalidate(ctx, tenant, "*")
	}

	elapsed := s.now().Sub(start)
	metrics.IngestDuration.WithLabelValues("success").Observe(elapsed.Seconds())
	metrics.IngestChunks.Observe(float64(len(chunks)))
	s.logger.Info("document ingested",
		zap.String("tenant", tenant),
		zap.String("document_id", documentID),
		zap.Int("chunks", len(chunks)),
		zap.Float64("dedup_ratio", ded.Ratio),
		zap.Duration("elapsed", elapsed),
	)

	return ingest.Receipt{
		Success:       true,
		DocumentID:    documentID,
		ChunksCreated: len(chunks),
		DedupRatio:    ded.Ratio,
		CacheHitRate:  rate(cacheHits, len(chunks)),
		Elapsed:       elapsed,
	}
}

// ProcessDocumentAsync validates and acknowledges immediately, then runs the
// full ingestion in the background. Completion is observable only by polling
// Coverage.
func (s *Service) ProcessDocumentAsync(
	ctx context.Context, tenant, documentID, content, docType string, opts ingest.Options,
) ingest.Receipt {
	start := s.now()

	if _, err := document.New(documentID, tenant, opts.Title, opts.Source, docType, opts.Metadata); err != nil {
		return s.failIngest(documentID, start, "invalid document: "+err.Error())
	}

	pieces := s.chunker.Chunk(content, chunker.DocType(docType), tenant, chunker.Partial{
		ChunkSize: opts.ChunkSize,
		Overlap:   opts.Overlap,
	})
	batches := (len(pieces) + s.cfg.BatchSize - 1) / s.cfg.BatchSize

	go func() {
		bg, cancel := context.WithTimeout(context.Background(), asyncIngestTimeout)
		defer cancel()
		receipt := s.ProcessDocument(bg, tenant, documentID, content, docType, opts)
		if !receipt.Success {
			s.logger.Error("async ingestion failed",
				zap.String("tenant", tenant),
				zap.String("document_id", documentID),
				zap.String("message", receipt.Message),
			)
		}
	}()

	return ingest.Receipt{
		Success:             true,
		Message:             "accepted",
		DocumentID:          documentID,
		Async:               true,
		EstimatedCompletion: start.Add(time.Second + time.Duration(batches)*2*time.Second),
		Elapsed:             s.now().Sub(start),
	}
}

// Coverage reports embedding progress for a document.
func (s *Service) Coverage(ctx context.Context, tenant, documentID string) (ingest.Coverage, error) {
	total, embedded, err := s.chunks.Coverage(ctx, tenant, documentID)
	if err != nil {
		return ingest.Coverage{}, err
	}
	if total == 0 {
		exists, err := s.docs.Exists(ctx, tenant, documentID)
		if err != nil {
			return ingest.Coverage{}, err
		}
		if !exists {
			return ingest.Coverage{}, domain.ErrDocumentNotFound
		}
	}
	return ingest.Coverage{
		DocumentID: documentID,
		Total:      total,
		Embedded:   embedded,
		Complete:   total > 0 && embedded == total,
		Ratio:      rate(embedded, total),
	}, nil
}

// DeleteDocument removes a document and all its chunks, and invalidates the
// tenant's cached retrieval results. Returns the number of deleted chunks.
func (s *Service) DeleteDocument(ctx context.Context, tenant, documentID string) (int, error) {
	// Chunks go first: a failure on the metadata record leaves nothing
	// searchable behind, and the delete can simply be retried.
	deleted, err := s.chunks.DeleteByDocument(ctx, tenant, documentID)
	if err != nil {
		return 0, err
	}
	if err := s.docs.Delete(ctx, tenant, documentID); err != nil {
		return deleted, err
	}
	if s.results != nil {
		s.results.Invalidate(ctx, tenant, "*")
	}
	s.logger.Info("document deleted",
		zap.String("tenant", tenant),
		zap.String("document_id", documentID),
		zap.Int("chunks_deleted", deleted),
	)
	return deleted, nil
}

// FlushCaches clears a tenant's cached embeddings and retrieval results.
// Returns the flushed embedding entry count and the invalidated result count.
func (s *Service) FlushCaches(ctx context.Context, tenant string) (embeddings, results int) {
	embeddings = s.embCache.Flush(ctx, tenant)
	if s.results != nil {
		results = s.results.Invalidate(ctx, tenant, "*")
	}
	s.logger.Info("tenant caches flushed",
		zap.String("tenant", tenant),
		zap.Int("embeddings", embeddings),
		zap.Int("results", results),
	)
	return embeddings, results
}

// embedChunks fills chunk embeddings from the cache first, then batches the
// misses through the provider under the concurrency limit. A failed batch
// leaves its chunks without vectors. Returns the cache hit count.
func (s *Service) embedChunks(ctx context.Context, tenant string, chunks []chunk.Chunk) int {
	cacheHits := 0
	var missIdx []int
	for i := range chunks {
		if vec, ok := s.embCache.Get(ctx, tenant, chunks[i].Content()); ok {
			chunks[i].SetEmbedding(vec)
			cacheHits++
			continue
		}
		missIdx = append(missIdx, i)
	}

	var wg sync.WaitGroup
	for batchStart := 0; batchStart < len(missIdx); batchStart += s.cfg.BatchSize {
		batch := missIdx[batchStart:min(batchStart+s.cfg.BatchSize, len(missIdx))]

		if err := s.sem.Acquire(ctx, 1); err != nil {
			s.logger.Warn("embedding canceled, remaining chunks stored without vectors",
				zap.Int("remaining", len(missIdx)-batchStart), zap.Error(err))
			break
		}
		wg.Add(1)
		go func(batch []int) {
			defer wg.Done()
			defer s.sem.Release(1)

			texts := make([]string, len(batch))
			for j, i := range batch {
				texts[j] = chunks[i].Content()
			}

			embedCtx, cancel := context.WithTimeout(ctx, s.cfg.EmbedTimeout)
			defer cancel()

			res, err := s.batch.BatchEmbed(embedCtx, texts)
			if err != nil {
				s.logger.Warn("batch embedding failed, storing chunks without vectors",
					zap.Int("batch_size", len(batch)), zap.Error(err))
				return
			}
			for j, i := range batch {
				if j >= len(res.Embeddings) || len(res.Embeddings[j]) == 0 {
					continue
				}
				chunks[i].SetEmbedding(res.Embeddings[j])
				s.embCache.Put(ctx, tenant, chunks[i].Content(), res.Embeddings[j], s.cfg.EmbeddingCacheTTL)
			}
		}(batch)
	}
	wg.Wait()
	return cacheHits
}

// notifyIndex makes sure the search index covers the dimensionality of the
// vectors just written. Index trouble never fails an ingestion.
func (s *Service) notifyIndex(ctx context.Context, chunks []chunk.Chunk) {
	for i := range chunks {
		if chunks[i].HasEmbedding() {
			if err := s.chunks.EnsureIndex(ctx, len(chunks[i].Embedding()), s.cfg.MetadataTagFields); err != nil {
				s.logger.Warn("ensure search index", zap.Error(err))
			}
			return
		}
	}
}

func (s *Service) failIngest(documentID string, start time.Time, message string) ingest.Receipt {
	elapsed := s.now().Sub(start)
	metrics.IngestDuration.WithLabelValues("failure").Observe(elapsed.Seconds())
	s.logger.Warn("ingestion failed",
		zap.String("document_id", documentID),
		zap.String("message", message),
	)
	return ingest.Receipt{
		Success:    false,
		Message:    message,
		DocumentID: documentID,
		Elapsed:    elapsed,
	}
}

// mergeMetadata overlays piece metadata on document metadata.
func mergeMetadata(docMeta, pieceMeta map[string]string) map[string]string {
	if len(docMeta) == 0 {
		return pieceMeta
	}
	merged := make(map[string]string, len(docMeta)+len(pieceMeta))
	for k, v := range docMeta {
		merged[k] = v
	}
	for k, v := range pieceMeta {
		merged[k] = v
	}
	return merged
}

func rate(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total)
}
