package docrepo

import (
	"context"
	"errors"
	"path"
	"testing"

	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/domain/document"
)

// --- Mocks ---

type mockStore struct {
	hashes map[string]map[string]string

	setErr    error
	getErr    error
	delErr    error
	existsErr error
	scanErr   error
}

func newMockStore() *mockStore {
	return &mockStore{hashes: map[string]map[string]string{}}
}

func (m *mockStore) HSet(_ context.Context, key string, fields map[string]string) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.hashes[key] = fields
	return nil
}

func (m *mockStore) HGetAll(_ context.Context, key string) (map[string]string, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.hashes[key], nil
}

func (m *mockStore) Del(_ context.Context, key string) error {
	if m.delErr != nil {
		return m.delErr
	}
	delete(m.hashes, key)
	return nil
}

func (m *mockStore) Exists(_ context.Context, key string) (bool, error) {
	if m.existsErr != nil {
		return false, m.existsErr
	}
	_, ok := m.hashes[key]
	return ok, nil
}

func (m *mockStore) Scan(_ context.Context, pattern string) ([]string, error) {
	if m.scanErr != nil {
		return nil, m.scanErr
	}
	var keys []string
	for key := range m.hashes {
		if ok, _ := path.Match(pattern, key); ok {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func mustDoc(t *testing.T, id, tenant string) document.Document {
	t.Helper()
	doc, err := document.New(id, tenant, "Title "+id, "upload", "pdf",
		map[string]string{"category": "faq"})
	if err != nil {
		t.Fatalf("document.New: %v", err)
	}
	return doc
}

// --- Tests ---

func TestSave_ReportsCreation(t *testing.T) {
	store := newMockStore()
	repo := New(store, "test:")
	doc := mustDoc(t, "doc-1", "acme")

	created, err := repo.Save(context.Background(), &doc)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !created {
		t.Error("first save must report creation")
	}

	created, err = repo.Save(context.Background(), &doc)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if created {
		t.Error("replacement must not report creation")
	}
}

func TestGet_RoundTrip(t *testing.T) {
	store := newMockStore()
	repo := New(store, "test:")
	doc := mustDoc(t, "doc-1", "acme")

	if _, err := repo.Save(context.Background(), &doc); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := repo.Get(context.Background(), "acme", "doc-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID() != "doc-1" || got.Tenant() != "acme" {
		t.Errorf("unexpected identity %s/%s", got.Tenant(), got.ID())
	}
	if got.Title() != "Title doc-1" || got.Type() != "pdf" {
		t.Errorf("unexpected fields %q/%q", got.Title(), got.Type())
	}
	if got.Metadata()["category"] != "faq" {
		t.Error("metadata must survive the round trip")
	}
	if got.CreatedAt().IsZero() {
		t.Error("created_at must survive the round trip")
	}
}

func TestGet_NotFound(t *testing.T) {
	repo := New(newMockStore(), "test:")

	_, err := repo.Get(context.Background(), "acme", "ghost")
	if !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Errorf("expected ErrDocumentNotFound, got %v", err)
	}
}

func TestGet_TenantIsolation(t *testing.T) {
	store := newMockStore()
	repo := New(store, "test:")
	doc := mustDoc(t, "doc-1", "acme")

	if _, err := repo.Save(context.Background(), &doc); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if _, err := repo.Get(context.Background(), "globex", "doc-1"); !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Errorf("expected isolation across tenants, got %v", err)
	}
}

func TestDelete_NotFound(t *testing.T) {
	repo := New(newMockStore(), "test:")

	if err := repo.Delete(context.Background(), "acme", "ghost"); !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Errorf("expected ErrDocumentNotFound, got %v", err)
	}
}

func TestDelete_RemovesRecord(t *testing.T) {
	store := newMockStore()
	repo := New(store, "test:")
	doc := mustDoc(t, "doc-1", "acme")

	if _, err := repo.Save(context.Background(), &doc); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := repo.Delete(context.Background(), "acme", "doc-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.Get(context.Background(), "acme", "doc-1"); !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Error("record must be gone after delete")
	}
}

func TestList_SortedPerTenant(t *testing.T) {
	store := newMockStore()
	repo := New(store, "test:")

	for _, spec := range []struct{ id, tenant string }{
		{"doc-b", "acme"}, {"doc-a", "acme"}, {"doc-z", "globex"},
	} {
		doc := mustDoc(t, spec.id, spec.tenant)
		if _, err := repo.Save(context.Background(), &doc); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	docs, err := repo.List(context.Background(), "acme")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	if docs[0].ID() != "doc-a" || docs[1].ID() != "doc-b" {
		t.Errorf("expected sorted IDs, got %s, %s", docs[0].ID(), docs[1].ID())
	}
}

func TestSave_WrapsStorageError(t *testing.T) {
	store := newMockStore()
	store.setErr = errors.New("connection reset")
	repo := New(store, "test:")
	doc := mustDoc(t, "doc-1", "acme")

	if _, err := repo.Save(context.Background(), &doc); !errors.Is(err, domain.ErrStorage) {
		t.Errorf("expected ErrStorage, got %v", err)
	}
}
