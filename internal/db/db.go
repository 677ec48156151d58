// Package db defines the storage facade. Consumers depend on the narrow
// sub-interfaces, not the full Store.
package db

import (
	"context"
	"time"
)

// Store is the full database facade combining all sub-interfaces.
//
//nolint:interfacebloat // facade; consumers use narrow sub-interfaces (ISP)
type Store interface {
	Pinger
	KVStore
	HashStore
	IndexManager
	Searcher
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// KVStore provides simple key-value operations with TTL control.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// SetKeepTTL overwrites a value without touching its remaining TTL.
	SetKeepTTL(ctx context.Context, key string, value []byte) error
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// HashSetItem holds a single key+fields pair for multi-key HSET.
type HashSetItem struct {
	Key    string
	Fields map[string]string
}

// HashStore provides hash-based persistence.
type HashStore interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	// HSetMulti stores multiple hashes in one pipelined round-trip
	// (best-effort, not atomic).
	HSetMulti(ctx context.Context, items []HashSetItem) error
	// HReplaceMultiAtomic deletes the given keys and stores the new hashes
	// inside one MULTI/EXEC transaction: the whole replacement commits or
	// none of it does.
	HReplaceMultiAtomic(ctx context.Context, delKeys []string, items []HashSetItem) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// IndexManager provides FT index lifecycle operations.
type IndexManager interface {
	CreateIndex(ctx context.Context, def *IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// Filter narrows search results to a tenant and optional document/metadata scope.
type Filter struct {
	Tenant      string
	DocumentIDs []string
	Tags        map[string]string
}

// KNNQuery is a vector similarity search request.
type KNNQuery struct {
	Index        string
	Vector       []float32
	K            int
	Filter       Filter
	ReturnFields []string
}

// TextQuery is a full-text search request over pre-normalized terms.
type TextQuery struct {
	Index        string
	Terms        []string
	TopK         int
	Filter       Filter
	ReturnFields []string
}

// SearchEntry is one raw search hit.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}

// SearchResult is a raw search response.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// Searcher provides vector and lexical search over FT indexes.
type Searcher interface {
	SearchKNN(ctx context.Context, q *KNNQuery) (*SearchResult, error)
	SearchBM25(ctx context.Context, q *TextQuery) (*SearchResult, error)
}
