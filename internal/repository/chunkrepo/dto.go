package chunkrepo

import (
	"encoding/binary"
	"math"
	"strconv"
	"strings"

	"github.com/kailas-cloud/ragdex/internal/domain/chunk"
	"github.com/kailas-cloud/ragdex/internal/domain/search"
)

// Hash field names. The FT index schema and search filters reference these
// by name, so they must stay in sync with EnsureIndex and the db filter
// builder.
const (
	fieldID         = "id"
	fieldTenant     = "tenant"
	fieldDocumentID = "document_id"
	fieldOrdinal    = "ordinal"
	fieldContent    = "content"
	fieldPreview    = "preview"
	fieldHash       = "hash"
	fieldWordCount  = "word_count"
	fieldCharCount  = "char_count"
	fieldCreatedAt  = "created_at"
	fieldVector     = "vector"

	metaFieldPrefix = "meta_"
)

// buildHashFields converts a chunk into a flat map[string]string for HSET.
// Metadata entries are stored under meta_* fields so they are addressable
// as TAG filters.
func buildHashFields(tenant string, c *chunk.Chunk, createdAt int64) map[string]string {
	m := make(map[string]string, 11+len(c.Metadata()))
	m[fieldID] = c.ID()
	m[fieldTenant] = tenant
	m[fieldDocumentID] = c.DocumentID()
	m[fieldOrdinal] = strconv.Itoa(c.Ordinal())
	m[fieldContent] = c.Content()
	m[fieldPreview] = c.Preview()
	m[fieldHash] = c.ContentHash()
	m[fieldWordCount] = strconv.Itoa(c.WordCount())
	m[fieldCharCount] = strconv.Itoa(c.CharCount())
	m[fieldCreatedAt] = strconv.FormatInt(createdAt, 10)
	if c.HasEmbedding() {
		m[fieldVector] = vectorToBytes(c.Embedding())
	}
	for k, v := range c.Metadata() {
		m[metaFieldPrefix+k] = v
	}
	return m
}

// parseHashFields converts a flat hash map back into a chunk.
func parseHashFields(m map[string]string) chunk.Chunk {
	ordinal, _ := strconv.Atoi(m[fieldOrdinal])
	wordCount, _ := strconv.Atoi(m[fieldWordCount])
	charCount, _ := strconv.Atoi(m[fieldCharCount])

	var vector []float32
	if raw, ok := m[fieldVector]; ok {
		vector = bytesToVector(raw)
	}

	var metadata map[string]string
	for k, v := range m {
		if name, ok := strings.CutPrefix(k, metaFieldPrefix); ok {
			if metadata == nil {
				metadata = make(map[string]string)
			}
			metadata[name] = v
		}
	}

	return chunk.Reconstruct(
		m[fieldID], m[fieldDocumentID], ordinal,
		m[fieldContent], m[fieldPreview], vector, metadata,
		wordCount, charCount, m[fieldHash],
	)
}

// candidateFromFields converts a search hit's fields into a retrieval
// candidate. The caller assigns the per-source score.
func candidateFromFields(m map[string]string) search.Candidate {
	ordinal, _ := strconv.Atoi(m[fieldOrdinal])
	createdAt, _ := strconv.ParseInt(m[fieldCreatedAt], 10, 64)

	var metadata map[string]string
	for k, v := range m {
		if name, ok := strings.CutPrefix(k, metaFieldPrefix); ok {
			if metadata == nil {
				metadata = make(map[string]string)
			}
			metadata[name] = v
		}
	}

	c := search.Candidate{
		ChunkID:    m[fieldID],
		DocumentID: m[fieldDocumentID],
		Ordinal:    ordinal,
		Content:    m[fieldContent],
		Preview:    m[fieldPreview],
		Metadata:   metadata,
		CreatedAt:  createdAt,
	}
	if raw, ok := m[fieldVector]; ok {
		c.Embedding = bytesToVector(raw)
	}
	return c
}

// vectorToBytes serializes []float32 to a binary string (4 bytes per float,
// little-endian), the layout the FT vector index expects on HASH fields.
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

// bytesToVector deserializes a binary string back to []float32.
func bytesToVector(s string) []float32 {
	b := []byte(s)
	if len(b)%4 != 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
