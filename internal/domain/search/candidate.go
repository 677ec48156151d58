package search

// Source tags which sub-search produced a candidate.
type Source string

// Candidate sources.
const (
	SourceVector  Source = "vector"
	SourceKeyword Source = "keyword"
	SourceBoth    Source = "both"
)

// Scope narrows a search beyond the mandatory tenant filter.
type Scope struct {
	DocumentIDs []string
	Tags        map[string]string
}

// Candidate is one retrieved chunk with per-source and fused scores.
type Candidate struct {
	ChunkID    string            `json:"chunk_id"`
	DocumentID string            `json:"document_id"`
	Ordinal    int               `json:"ordinal"`
	Content    string            `json:"content"`
	Preview    string            `json:"preview"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Embedding  []float32         `json:"embedding,omitempty"`
	// CreatedAt is the chunk creation time as a Unix timestamp (0 when unknown).
	CreatedAt int64 `json:"created_at,omitempty"`

	Source Source `json:"source"`
	// VectorScore is the cosine similarity from the vector sub-search (0 when absent).
	VectorScore float64 `json:"vector_score"`
	// KeywordScore is the lexical rank score from the keyword sub-search (0 when absent).
	KeywordScore float64 `json:"keyword_score"`
	// Combined is the fused RRF score, normalized so the top result is 1.0.
	Combined float64 `json:"combined_score"`
}
