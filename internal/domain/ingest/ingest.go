// Package ingest defines ingestion options and receipts.
package ingest

import "time"

// Options tune one document ingestion.
type Options struct {
	// Title, Source, Metadata describe the document record.
	Title    string
	Source   string
	Metadata map[string]string
	// ChunkSize and Overlap override the per-type chunking defaults for this call.
	ChunkSize int
	Overlap   int
	// Async acknowledges immediately and embeds in the background.
	Async bool
}

// Receipt is the structured outcome of a document ingestion. Pipeline
// operations never propagate unhandled errors across the boundary; failures
// come back as Success=false with a message.
type Receipt struct {
	Success       bool          `json:"success"`
	Message       string        `json:"message,omitempty"`
	DocumentID    string        `json:"document_id"`
	ChunksCreated int           `json:"chunks_created"`
	DedupRatio    float64       `json:"dedup_ratio"`
	CacheHitRate  float64       `json:"cache_hit_rate"`
	Elapsed       time.Duration `json:"processing_time"`

	// Async acknowledgment fields. Completion is observable only by polling
	// embedding coverage; there is no push notification.
	Async               bool      `json:"async,omitempty"`
	EstimatedCompletion time.Time `json:"estimated_completion,omitzero"`
}

// Coverage reports embedding progress for one document.
type Coverage struct {
	DocumentID string  `json:"document_id"`
	Total      int     `json:"total_chunks"`
	Embedded   int     `json:"embedded_chunks"`
	Complete   bool    `json:"complete"`
	Ratio      float64 `json:"ratio"`
}
