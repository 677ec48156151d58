// Package chunkrepo persists chunks as Redis hashes and exposes vector and
// lexical search over them through a single FT index per deployment.
package chunkrepo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/kailas-cloud/ragdex/internal/db"
	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/domain/chunk"
	"github.com/kailas-cloud/ragdex/internal/domain/search"
)

// HNSW build parameters for the chunk vector index.
const (
	hnswM           = 16
	hnswEFConstruct = 200
)

// store is the consumer interface for chunk persistence and search (ISP).
type store interface {
	HReplaceMultiAtomic(ctx context.Context, delKeys []string, items []db.HashSetItem) error
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Scan(ctx context.Context, pattern string) ([]string, error)

	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)

	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchBM25(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
}

// Repo implements chunk persistence over the storage facade.
type Repo struct {
	store     store
	keyPrefix string
	now       func() time.Time
}

// New creates a chunk repository. keyPrefix namespaces all keys and the
// index name (e.g. "ragdex:").
func New(s store, keyPrefix string) *Repo {
	return &Repo{store: s, keyPrefix: keyPrefix, now: time.Now}
}

// SaveAll replaces every stored chunk of a document with the given set in
// one transaction. Stale chunks go out and the new ones come in together,
// so a document is never partially visible and a failed replacement keeps
// the previous set intact.
func (r *Repo) SaveAll(ctx context.Context, tenant, documentID string, chunks []chunk.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	stale, err := r.store.Scan(ctx, r.docPattern(tenant, documentID))
	if err != nil {
		return fmt.Errorf("%w: scan chunks of %s: %w", domain.ErrStorage, documentID, err)
	}

	createdAt := r.now().UTC().Unix()
	items := make([]db.HashSetItem, len(chunks))
	for i := range chunks {
		items[i] = db.HashSetItem{
			Key:    r.chunkKey(tenant, documentID, chunks[i].Ordinal()),
			Fields: buildHashFields(tenant, &chunks[i], createdAt),
		}
	}

	if err := r.store.HReplaceMultiAtomic(ctx, stale, items); err != nil {
		return fmt.Errorf("%w: persist chunks of %s: %w", domain.ErrStorage, documentID, err)
	}
	return nil
}

// ByDocument returns all chunks of a document ordered by ordinal.
func (r *Repo) ByDocument(ctx context.Context, tenant, documentID string) ([]chunk.Chunk, error) {
	keys, err := r.store.Scan(ctx, r.docPattern(tenant, documentID))
	if err != nil {
		return nil, fmt.Errorf("%w: scan chunks of %s: %w", domain.ErrStorage, documentID, err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	maps, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("%w: load chunks of %s: %w", domain.ErrStorage, documentID, err)
	}

	chunks := make([]chunk.Chunk, 0, len(maps))
	for _, m := range maps {
		if len(m) == 0 {
			continue
		}
		chunks = append(chunks, parseHashFields(m))
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].Ordinal() < chunks[j].Ordinal() })
	return chunks, nil
}

// ByOrdinals returns the chunks of a document at the given ordinals. Missing
// ordinals are silently skipped.
func (r *Repo) ByOrdinals(ctx context.Context, tenant, documentID string, ordinals []int) ([]chunk.Chunk, error) {
	if len(ordinals) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ordinals))
	for i, ord := range ordinals {
		keys[i] = r.chunkKey(tenant, documentID, ord)
	}

	maps, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("%w: load chunk ordinals of %s: %w", domain.ErrStorage, documentID, err)
	}

	chunks := make([]chunk.Chunk, 0, len(maps))
	for _, m := range maps {
		if len(m) == 0 {
			continue
		}
		chunks = append(chunks, parseHashFields(m))
	}
	return chunks, nil
}

// DeleteByDocument removes every chunk of a document in one transaction.
// Returns the number of deleted chunks.
func (r *Repo) DeleteByDocument(ctx context.Context, tenant, documentID string) (int, error) {
	keys, err := r.store.Scan(ctx, r.docPattern(tenant, documentID))
	if err != nil {
		return 0, fmt.Errorf("%w: scan chunks of %s: %w", domain.ErrStorage, documentID, err)
	}
	if len(keys) == 0 {
		return 0, nil
	}

	if err := r.store.HReplaceMultiAtomic(ctx, keys, nil); err != nil {
		return 0, fmt.Errorf("%w: delete chunks of %s: %w", domain.ErrStorage, documentID, err)
	}
	return len(keys), nil
}

// Coverage reports how many of a document's chunks carry an embedding.
func (r *Repo) Coverage(ctx context.Context, tenant, documentID string) (total, embedded int, err error) {
	chunks, err := r.ByDocument(ctx, tenant, documentID)
	if err != nil {
		return 0, 0, err
	}
	for i := range chunks {
		if chunks[i].HasEmbedding() {
			embedded++
		}
	}
	return len(chunks), embedded, nil
}

// SearchVector runs a tenant-scoped KNN search. Entry scores are cosine
// similarities in [0,1].
func (r *Repo) SearchVector(
	ctx context.Context, tenant string, vector []float32, k int, scope search.Scope,
) ([]search.Candidate, error) {
	result, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		Index:  r.IndexName(),
		Vector: vector,
		K:      k,
		Filter: db.Filter{Tenant: tenant, DocumentIDs: scope.DocumentIDs, Tags: scope.Tags},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: knn search: %w", domain.ErrStorage, err)
	}

	candidates := make([]search.Candidate, 0, len(result.Entries))
	for _, entry := range result.Entries {
		c := candidateFromFields(entry.Fields)
		c.Source = search.SourceVector
		c.VectorScore = entry.Score
		candidates = append(candidates, c)
	}
	return candidates, nil
}

// SearchText runs a tenant-scoped BM25 search over pre-normalized terms.
func (r *Repo) SearchText(
	ctx context.Context, tenant string, terms []string, topK int, scope search.Scope,
) ([]search.Candidate, error) {
	result, err := r.store.SearchBM25(ctx, &db.TextQuery{
		Index:  r.IndexName(),
		Terms:  terms,
		TopK:   topK,
		Filter: db.Filter{Tenant: tenant, DocumentIDs: scope.DocumentIDs, Tags: scope.Tags},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: bm25 search: %w", domain.ErrStorage, err)
	}

	candidates := make([]search.Candidate, 0, len(result.Entries))
	for _, entry := range result.Entries {
		c := candidateFromFields(entry.Fields)
		c.Source = search.SourceKeyword
		c.KeywordScore = entry.Score
		candidates = append(candidates, c)
	}
	return candidates, nil
}

// EnsureIndex creates the chunk FT index if it does not exist. extraTagFields
// lists metadata keys (without the meta_ prefix) that must be filterable.
func (r *Repo) EnsureIndex(ctx context.Context, dim int, extraTagFields []string) error {
	exists, err := r.store.IndexExists(ctx, r.IndexName())
	if err != nil {
		return fmt.Errorf("%w: check index: %w", domain.ErrStorage, err)
	}
	if exists {
		return nil
	}

	if err := r.store.CreateIndex(ctx, r.indexDefinition(dim, extraTagFields)); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			return nil
		}
		return fmt.Errorf("%w: create index: %w", domain.ErrStorage, err)
	}
	return nil
}

// RefreshIndex drops and recreates the chunk FT index. Existing hashes are
// reindexed by the server in the background.
func (r *Repo) RefreshIndex(ctx context.Context, dim int, extraTagFields []string) error {
	if err := r.store.DropIndex(ctx, r.IndexName()); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
		return fmt.Errorf("%w: drop index: %w", domain.ErrStorage, err)
	}
	if err := r.store.CreateIndex(ctx, r.indexDefinition(dim, extraTagFields)); err != nil {
		return fmt.Errorf("%w: create index: %w", domain.ErrStorage, err)
	}
	return nil
}

// IndexName returns the name of the chunk FT index.
func (r *Repo) IndexName() string {
	return r.keyPrefix + "chunk:idx"
}

func (r *Repo) indexDefinition(dim int, extraTagFields []string) *db.IndexDefinition {
	tags := []string{fieldTenant, fieldDocumentID}
	for _, name := range extraTagFields {
		tags = append(tags, metaFieldPrefix+name)
	}
	return &db.IndexDefinition{
		Name:       r.IndexName(),
		Prefixes:   []string{r.keyPrefix + "chunk:"},
		TagFields:  tags,
		TextFields: []string{fieldContent},
		Vector: &db.VectorField{
			Name:        fieldVector,
			Dim:         dim,
			Distance:    db.DistanceCosine,
			Algorithm:   db.VectorHNSW,
			M:           hnswM,
			EFConstruct: hnswEFConstruct,
		},
	}
}

func (r *Repo) chunkKey(tenant, documentID string, ordinal int) string {
	return r.keyPrefix + "chunk:" + tenant + ":" + documentID + ":" + strconv.Itoa(ordinal)
}

func (r *Repo) docPattern(tenant, documentID string) string {
	return r.keyPrefix + "chunk:" + tenant + ":" + documentID + ":*"
}
