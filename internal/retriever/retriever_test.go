package retriever

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/domain/search"
)

// --- Mocks ---

type mockRepo struct {
	vectorCands  []search.Candidate
	vectorErr    error
	keywordCands []search.Candidate
	keywordErr   error

	vectorCalled  bool
	keywordCalled bool
	lastTerms     []string
	lastScope     search.Scope
}

func (m *mockRepo) SearchVector(
	_ context.Context, _ string, _ []float32, _ int, scope search.Scope,
) ([]search.Candidate, error) {
	m.vectorCalled = true
	m.lastScope = scope
	return m.vectorCands, m.vectorErr
}

func (m *mockRepo) SearchText(
	_ context.Context, _ string, terms []string, _ int, scope search.Scope,
) ([]search.Candidate, error) {
	m.keywordCalled = true
	m.lastTerms = terms
	m.lastScope = scope
	return m.keywordCands, m.keywordErr
}

type mockEmbedder struct {
	vec    []float32
	err    error
	called bool
}

func (m *mockEmbedder) Embed(_ context.Context, _, _ string) (domain.EmbeddingResult, error) {
	m.called = true
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: m.vec}, nil
}

type mockCache struct {
	entries map[string][]search.Candidate
	gets    int
	sets    int
}

func newMockCache() *mockCache {
	return &mockCache{entries: make(map[string][]search.Candidate)}
}

func (m *mockCache) Get(_ context.Context, tenant, kind, material string, out any) bool {
	m.gets++
	cands, ok := m.entries[tenant+"/"+kind+"/"+material]
	if !ok {
		return false
	}
	*out.(*[]search.Candidate) = cands
	return true
}

func (m *mockCache) Set(_ context.Context, tenant, kind, material string, v any, _ time.Duration) {
	m.sets++
	m.entries[tenant+"/"+kind+"/"+material] = v.([]search.Candidate)
}

func scored(id string, vectorScore float64) search.Candidate {
	c := cand(id)
	c.VectorScore = vectorScore
	c.Source = search.SourceVector
	return c
}

// --- Tests ---

func TestRetrieve_TenantRequired(t *testing.T) {
	svc := New(&mockRepo{}, &mockEmbedder{}, nil, nil)
	_, err := svc.Retrieve(context.Background(), "", "query", search.Options{})
	if !errors.Is(err, domain.ErrTenantRequired) {
		t.Errorf("expected ErrTenantRequired, got %v", err)
	}
}

func TestRetrieve_EmptyQuery(t *testing.T) {
	svc := New(&mockRepo{}, &mockEmbedder{}, nil, nil)
	_, err := svc.Retrieve(context.Background(), "acme", "   ", search.Options{})
	if !errors.Is(err, domain.ErrEmptyQuery) {
		t.Errorf("expected ErrEmptyQuery, got %v", err)
	}
}

func TestRetrieve_FusesBothSubsearches(t *testing.T) {
	repo := &mockRepo{
		vectorCands:  []search.Candidate{scored("a", 0.9), scored("b", 0.8)},
		keywordCands: []search.Candidate{cand("c")},
	}
	embed := &mockEmbedder{vec: []float32{0.1, 0.2}}
	svc := New(repo, embed, nil, nil)

	got, err := svc.Retrieve(context.Background(), "acme", "hello world", search.Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(got))
	}
	if !repo.vectorCalled || !repo.keywordCalled || !embed.called {
		t.Error("expected both sub-searches and the embedder to run")
	}
}

func TestRetrieve_EmbedFailureDegradesToKeywordOnly(t *testing.T) {
	repo := &mockRepo{keywordCands: []search.Candidate{cand("k")}}
	svc := New(repo, &mockEmbedder{err: errors.New("provider down")}, nil, nil)

	got, err := svc.Retrieve(context.Background(), "acme", "hello world", search.Options{})
	if err != nil {
		t.Fatalf("expected degradation, not error: %v", err)
	}
	if len(got) != 1 || got[0].ChunkID != "k" {
		t.Fatalf("expected keyword-only result, got %v", got)
	}
	if repo.vectorCalled {
		t.Error("vector search must not run without a query vector")
	}
}

func TestRetrieve_BothSubsearchesFailingIsEmptySuccess(t *testing.T) {
	repo := &mockRepo{
		vectorErr:  errors.New("index down"),
		keywordErr: errors.New("index down"),
	}
	svc := New(repo, &mockEmbedder{vec: []float32{0.1}}, nil, nil)

	got, err := svc.Retrieve(context.Background(), "acme", "hello world", search.Options{})
	if err != nil {
		t.Fatalf("expected empty success, got error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no candidates, got %d", len(got))
	}
}

func TestRetrieve_SimilarityThresholdFilters(t *testing.T) {
	repo := &mockRepo{
		vectorCands: []search.Candidate{scored("hi", 0.8), scored("lo", 0.1)},
	}
	svc := New(repo, &mockEmbedder{vec: []float32{0.1}}, nil, nil)

	got, err := svc.Retrieve(context.Background(), "acme", "qq zz", search.Options{SimilarityThreshold: 0.3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, c := range got {
		if c.ChunkID == "lo" {
			t.Error("expected below-threshold candidate to be dropped")
		}
	}
}

func TestRetrieve_TruncatesToLimit(t *testing.T) {
	var vcands []search.Candidate
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		vcands = append(vcands, scored(id, 0.9))
	}
	repo := &mockRepo{vectorCands: vcands}
	svc := New(repo, &mockEmbedder{vec: []float32{0.1}}, nil, nil)

	got, err := svc.Retrieve(context.Background(), "acme", "hello", search.Options{Limit: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 candidates, got %d", len(got))
	}
}

func TestRetrieve_NormalizedTermsReachRepo(t *testing.T) {
	repo := &mockRepo{}
	svc := New(repo, &mockEmbedder{vec: []float32{0.1}}, nil, nil)

	_, err := svc.Retrieve(context.Background(), "acme", "Hello, World!", search.Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.lastTerms) != 2 || repo.lastTerms[0] != "hello" || repo.lastTerms[1] != "world" {
		t.Errorf("expected normalized terms [hello world], got %v", repo.lastTerms)
	}
}

func TestRetrieve_ScopePassedThrough(t *testing.T) {
	repo := &mockRepo{}
	svc := New(repo, &mockEmbedder{vec: []float32{0.1}}, nil, nil)

	opts := search.Options{
		DocumentIDs: []string{"d1", "d2"},
		Metadata:    map[string]string{"category": "faq"},
	}
	if _, err := svc.Retrieve(context.Background(), "acme", "hello", opts); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.lastScope.DocumentIDs) != 2 || repo.lastScope.Tags["category"] != "faq" {
		t.Errorf("expected scope to reach the repository, got %+v", repo.lastScope)
	}
}

func TestRetrieve_SubsearchCacheHitSkipsRepo(t *testing.T) {
	repo := &mockRepo{
		vectorCands:  []search.Candidate{scored("a", 0.9)},
		keywordCands: []search.Candidate{cand("b")},
	}
	cache := newMockCache()
	svc := New(repo, &mockEmbedder{vec: []float32{0.1}}, cache, nil)
	ctx := context.Background()

	if _, err := svc.Retrieve(ctx, "acme", "hello world", search.Options{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cache.sets != 2 {
		t.Fatalf("expected both sub-searches cached, got %d sets", cache.sets)
	}

	repo.vectorCalled = false
	repo.keywordCalled = false
	if _, err := svc.Retrieve(ctx, "acme", "hello world", search.Options{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.vectorCalled || repo.keywordCalled {
		t.Error("expected cached sub-searches to skip the repository")
	}
}

func TestRetrieve_DiversifyCapsDocuments(t *testing.T) {
	var vcands []search.Candidate
	for i, id := range []string{"1", "2", "3", "4"} {
		c := scored(id, 0.9-float64(i)*0.01)
		c.DocumentID = "same-doc"
		vcands = append(vcands, c)
	}
	repo := &mockRepo{vectorCands: vcands}
	svc := New(repo, &mockEmbedder{vec: []float32{0.1}}, nil, nil)

	got, err := svc.Retrieve(context.Background(), "acme", "hello", search.Options{Diversify: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != search.MaxPerDocument {
		t.Errorf("expected %d candidates after diversification, got %d", search.MaxPerDocument, len(got))
	}
}
