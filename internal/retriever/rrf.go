package retriever

import (
	"sort"

	"github.com/kailas-cloud/ragdex/internal/domain/search"
)

// rrfK is the Reciprocal Rank Fusion constant (standard value from Cormack et al. 2009).
const rrfK = 60

// fuseRRF merges vector and keyword candidates via weighted Reciprocal Rank
// Fusion. score(c) = sum of weight_i/(k + rank_i + 1) over the lists where c
// appears; a candidate absent from a list contributes nothing for it. Ties
// keep discovery order (vector list first, then keyword list). Fused scores
// are normalized so the best candidate scores 1.0.
//
// When a chunk appears in both lists the vector entry is kept since it
// carries the embedding, and both raw sub-scores are preserved.
func fuseRRF(vector, keyword []search.Candidate, vectorWeight, keywordWeight float64) []search.Candidate {
	type scored struct {
		cand  search.Candidate
		score float64
		order int // discovery order, breaks score ties deterministically
	}

	merged := make(map[string]*scored, len(vector)+len(keyword))
	next := 0

	for rank := range vector {
		c := vector[rank]
		merged[c.ChunkID] = &scored{
			cand:  c,
			score: vectorWeight / float64(rrfK+rank+1),
			order: next,
		}
		next++
	}

	for rank := range keyword {
		c := keyword[rank]
		s := keywordWeight / float64(rrfK+rank+1)
		if existing, ok := merged[c.ChunkID]; ok {
			existing.score += s
			existing.cand.Source = search.SourceBoth
			existing.cand.KeywordScore = c.KeywordScore
			continue
		}
		merged[c.ChunkID] = &scored{cand: c, score: s, order: next}
		next++
	}

	all := make([]*scored, 0, len(merged))
	for _, s := range merged {
		all = append(all, s)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].score != all[j].score {
			return all[i].score > all[j].score
		}
		return all[i].order < all[j].order
	})

	var maxScore float64
	if len(all) > 0 {
		maxScore = all[0].score
	}

	results := make([]search.Candidate, len(all))
	for i, s := range all {
		c := s.cand
		c.Combined = s.score
		if maxScore > 0 {
			c.Combined = s.score / maxScore
		}
		results[i] = c
	}
	return results
}

// diversify caps the number of candidates per document, preserving order.
// Surplus candidates of an over-represented document are dropped entirely.
func diversify(candidates []search.Candidate, maxPerDocument int) []search.Candidate {
	if maxPerDocument <= 0 {
		return candidates
	}
	perDoc := make(map[string]int, len(candidates))
	out := candidates[:0]
	for _, c := range candidates {
		if perDoc[c.DocumentID] >= maxPerDocument {
			continue
		}
		perDoc[c.DocumentID]++
		out = append(out, c)
	}
	return out
}
