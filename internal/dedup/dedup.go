// Package dedup removes exact-duplicate chunks within a single ingestion run.
package dedup

import (
	"github.com/kailas-cloud/ragdex/internal/chunker"
	"github.com/kailas-cloud/ragdex/internal/domain"
)

// Result carries the deduplicated pieces and run statistics.
type Result struct {
	Pieces []chunker.Piece
	Total  int
	Unique int
	// Ratio is 1 - unique/total; 0 for an empty run.
	Ratio float64
}

// Dedup keeps the first occurrence of each content hash, preserving input
// order. Scope is a single ingestion run only; there is no cross-run dedup.
func Dedup(pieces []chunker.Piece) Result {
	if len(pieces) == 0 {
		return Result{}
	}

	seen := make(map[string]struct{}, len(pieces))
	unique := make([]chunker.Piece, 0, len(pieces))
	for _, p := range pieces {
		h := domain.ContentHash(p.Text)
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		unique = append(unique, p)
	}

	return Result{
		Pieces: unique,
		Total:  len(pieces),
		Unique: len(unique),
		Ratio:  1 - float64(len(unique))/float64(len(pieces)),
	}
}
