package db

import "errors"

// DistanceMetric used by FT.SEARCH vector similarity queries.
type DistanceMetric string

// Distance metrics.
const (
	DistanceL2     DistanceMetric = "L2"
	DistanceIP     DistanceMetric = "IP"
	DistanceCosine DistanceMetric = "COSINE"
)

// VectorAlgorithm selects the indexing algorithm for vector fields.
type VectorAlgorithm string

// Vector index algorithms.
const (
	VectorHNSW VectorAlgorithm = "HNSW"
	VectorFlat VectorAlgorithm = "FLAT"
)

// VectorField describes the vector column of an index.
type VectorField struct {
	Name        string
	Dim         int
	Distance    DistanceMetric
	Algorithm   VectorAlgorithm
	M           int // HNSW: max edges per node
	EFConstruct int // HNSW: build-time dynamic list size
}

// IndexDefinition is a complete FT index definition over HASH keys.
type IndexDefinition struct {
	Name       string
	Prefixes   []string
	TagFields  []string
	TextFields []string
	Vector     *VectorField
}

// Validate checks that the index definition is well-formed.
func (idx *IndexDefinition) Validate() error {
	if idx.Name == "" {
		return errors.New("index name is required")
	}
	if len(idx.TagFields)+len(idx.TextFields) == 0 && idx.Vector == nil {
		return errors.New("at least one field is required")
	}
	if idx.Vector != nil && idx.Vector.Dim <= 0 {
		return errors.New("vector field requires positive DIM")
	}
	return nil
}
