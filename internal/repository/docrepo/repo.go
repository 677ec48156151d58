// Package docrepo persists document metadata as Redis hashes.
package docrepo

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/domain/document"
)

// store is the consumer interface for document metadata (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// Repo implements document metadata persistence.
type Repo struct {
	store     store
	keyPrefix string
}

// New creates a document repository.
func New(s store, keyPrefix string) *Repo {
	return &Repo{store: s, keyPrefix: keyPrefix}
}

// Save creates or replaces a document record. Returns true if created.
func (r *Repo) Save(ctx context.Context, doc *document.Document) (bool, error) {
	key := r.docKey(doc.Tenant(), doc.ID())

	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("%w: check exists %s: %w", domain.ErrStorage, key, err)
	}

	if err := r.store.HSet(ctx, key, buildHashFields(doc)); err != nil {
		return false, fmt.Errorf("%w: save document %s: %w", domain.ErrStorage, doc.ID(), err)
	}
	return !exists, nil
}

// Get returns a document by ID.
func (r *Repo) Get(ctx context.Context, tenant, id string) (document.Document, error) {
	fields, err := r.store.HGetAll(ctx, r.docKey(tenant, id))
	if err != nil {
		return document.Document{}, fmt.Errorf("%w: load document %s: %w", domain.ErrStorage, id, err)
	}
	if len(fields) == 0 {
		return document.Document{}, domain.ErrDocumentNotFound
	}
	return parseHashFields(fields), nil
}

// Exists reports whether a document record is present.
func (r *Repo) Exists(ctx context.Context, tenant, id string) (bool, error) {
	exists, err := r.store.Exists(ctx, r.docKey(tenant, id))
	if err != nil {
		return false, fmt.Errorf("%w: check exists %s: %w", domain.ErrStorage, id, err)
	}
	return exists, nil
}

// Delete removes a document record.
func (r *Repo) Delete(ctx context.Context, tenant, id string) error {
	key := r.docKey(tenant, id)

	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("%w: check exists %s: %w", domain.ErrStorage, key, err)
	}
	if !exists {
		return domain.ErrDocumentNotFound
	}

	if err := r.store.Del(ctx, key); err != nil {
		return fmt.Errorf("%w: delete document %s: %w", domain.ErrStorage, id, err)
	}
	return nil
}

// List returns all documents of a tenant sorted by ID.
func (r *Repo) List(ctx context.Context, tenant string) ([]document.Document, error) {
	keys, err := r.store.Scan(ctx, r.keyPrefix+"doc:"+tenant+":*")
	if err != nil {
		return nil, fmt.Errorf("%w: scan documents: %w", domain.ErrStorage, err)
	}

	docs := make([]document.Document, 0, len(keys))
	for _, key := range keys {
		fields, err := r.store.HGetAll(ctx, key)
		if err != nil || len(fields) == 0 {
			continue
		}
		docs = append(docs, parseHashFields(fields))
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID() < docs[j].ID() })
	return docs, nil
}

func (r *Repo) docKey(tenant, id string) string {
	return r.keyPrefix + "doc:" + tenant + ":" + id
}

func buildHashFields(doc *document.Document) map[string]string {
	m := make(map[string]string, 6+len(doc.Metadata()))
	m["id"] = doc.ID()
	m["tenant"] = doc.Tenant()
	m["title"] = doc.Title()
	m["source"] = doc.Source()
	m["type"] = doc.Type()
	m["created_at"] = strconv.FormatInt(doc.CreatedAt().Unix(), 10)
	for k, v := range doc.Metadata() {
		m["meta_"+k] = v
	}
	return m
}

func parseHashFields(m map[string]string) document.Document {
	createdAtUnix, _ := strconv.ParseInt(m["created_at"], 10, 64)

	var metadata map[string]string
	for k, v := range m {
		if name, ok := strings.CutPrefix(k, "meta_"); ok {
			if metadata == nil {
				metadata = make(map[string]string)
			}
			metadata[name] = v
		}
	}

	return document.Reconstruct(
		m["id"], m["tenant"], m["title"], m["source"], m["type"],
		metadata, time.Unix(createdAtUnix, 0).UTC(),
	)
}
