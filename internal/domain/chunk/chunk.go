// Package chunk defines the chunk aggregate: the atomic unit of retrievable text.
package chunk

import (
	"strings"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

// PreviewLen is the length of the stored content preview in runes.
const PreviewLen = 160

// Chunk is one retrievable slice of a document. Immutable after creation
// except for embedding assignment.
type Chunk struct {
	id          string
	documentID  string
	ordinal     int
	content     string
	preview     string
	embedding   []float32
	metadata    map[string]string
	wordCount   int
	charCount   int
	contentHash string
}

// New validates and creates a Chunk. The preview, counts, and content hash
// are derived from the content.
func New(id, documentID string, ordinal int, content string, metadata map[string]string) (Chunk, error) {
	if id == "" {
		return Chunk{}, domain.Validationf("chunk ID is required")
	}
	if documentID == "" {
		return Chunk{}, domain.Validationf("document ID is required")
	}
	if ordinal < 0 {
		return Chunk{}, domain.Validationf("ordinal must be non-negative, got %d", ordinal)
	}
	if strings.TrimSpace(content) == "" {
		return Chunk{}, domain.Validationf("content is required")
	}

	return Chunk{
		id:          id,
		documentID:  documentID,
		ordinal:     ordinal,
		content:     content,
		preview:     makePreview(content),
		metadata:    cloneMap(metadata),
		wordCount:   len(strings.Fields(content)),
		charCount:   len([]rune(content)),
		contentHash: domain.ContentHash(content),
	}, nil
}

// Reconstruct creates a Chunk without validation (storage hydration).
func Reconstruct(
	id, documentID string, ordinal int, content, preview string,
	embedding []float32, metadata map[string]string,
	wordCount, charCount int, contentHash string,
) Chunk {
	return Chunk{
		id: id, documentID: documentID, ordinal: ordinal,
		content: content, preview: preview, embedding: embedding,
		metadata: metadata, wordCount: wordCount, charCount: charCount,
		contentHash: contentHash,
	}
}

// ID returns the chunk identifier.
func (c *Chunk) ID() string { return c.id }

// DocumentID returns the owning document identifier.
func (c *Chunk) DocumentID() string { return c.documentID }

// Ordinal returns the chunk's position within its document.
func (c *Chunk) Ordinal() int { return c.ordinal }

// Content returns the chunk text.
func (c *Chunk) Content() string { return c.content }

// Preview returns the truncated content preview.
func (c *Chunk) Preview() string { return c.preview }

// Embedding returns the embedding vector, or nil when the chunk is not embedded.
func (c *Chunk) Embedding() []float32 { return c.embedding }

// HasEmbedding reports whether an embedding vector is assigned.
func (c *Chunk) HasEmbedding() bool { return len(c.embedding) > 0 }

// Metadata returns the chunk metadata fields.
func (c *Chunk) Metadata() map[string]string { return c.metadata }

// WordCount returns the number of words in the content.
func (c *Chunk) WordCount() int { return c.wordCount }

// CharCount returns the number of runes in the content.
func (c *Chunk) CharCount() int { return c.charCount }

// ContentHash returns the canonical content hash.
func (c *Chunk) ContentHash() string { return c.contentHash }

// SetEmbedding assigns the embedding vector. The only permitted mutation.
func (c *Chunk) SetEmbedding(v []float32) { c.embedding = v }

func makePreview(content string) string {
	r := []rune(strings.TrimSpace(content))
	if len(r) <= PreviewLen {
		return string(r)
	}
	return string(r[:PreviewLen])
}

func cloneMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
