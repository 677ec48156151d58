// Package search defines retrieval requests and candidates.
package search

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Default retrieval parameters.
const (
	DefaultLimit               = 10
	DefaultVectorLimit         = 20
	DefaultKeywordLimit        = 20
	DefaultSimilarityThreshold = 0.3
	DefaultVectorWeight        = 0.7
	DefaultKeywordWeight       = 0.3
	DefaultCacheTTL            = 30 * time.Minute
	MaxPerDocument             = 3
)

// Options tune one retrieval call.
type Options struct {
	Limit               int
	VectorLimit         int
	KeywordLimit        int
	SimilarityThreshold float64
	VectorWeight        float64
	KeywordWeight       float64
	Diversify           bool
	DocumentIDs         []string
	Metadata            map[string]string
	CacheTTL            time.Duration
}

// DefaultOptions returns retrieval options with all defaults applied.
func DefaultOptions() Options {
	return Options{
		Limit:               DefaultLimit,
		VectorLimit:         DefaultVectorLimit,
		KeywordLimit:        DefaultKeywordLimit,
		SimilarityThreshold: DefaultSimilarityThreshold,
		VectorWeight:        DefaultVectorWeight,
		KeywordWeight:       DefaultKeywordWeight,
		CacheTTL:            DefaultCacheTTL,
	}
}

// Normalize fills zero values with defaults.
func (o Options) Normalize() Options {
	d := DefaultOptions()
	if o.Limit <= 0 {
		o.Limit = d.Limit
	}
	if o.VectorLimit <= 0 {
		o.VectorLimit = d.VectorLimit
	}
	if o.KeywordLimit <= 0 {
		o.KeywordLimit = d.KeywordLimit
	}
	if o.SimilarityThreshold <= 0 {
		o.SimilarityThreshold = d.SimilarityThreshold
	}
	if o.VectorWeight <= 0 && o.KeywordWeight <= 0 {
		o.VectorWeight = d.VectorWeight
		o.KeywordWeight = d.KeywordWeight
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = d.CacheTTL
	}
	return o
}

// Fingerprint returns a stable hash of the options for sub-search cache keys.
// Map and slice fields are serialized in sorted order so equal option sets
// always produce equal keys.
func (o Options) Fingerprint() string {
	var b strings.Builder
	fmt.Fprintf(&b, "l=%d;vl=%d;kl=%d;st=%g;vw=%g;kw=%g;div=%t",
		o.Limit, o.VectorLimit, o.KeywordLimit,
		o.SimilarityThreshold, o.VectorWeight, o.KeywordWeight, o.Diversify)

	ids := append([]string(nil), o.DocumentIDs...)
	sort.Strings(ids)
	for _, id := range ids {
		b.WriteString(";doc=" + id)
	}

	keys := make([]string, 0, len(o.Metadata))
	for k := range o.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(";m:" + k + "=" + o.Metadata[k])
	}

	h := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(h[:])
}
