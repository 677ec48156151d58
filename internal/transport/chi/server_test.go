package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	chiRouter "github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/domain/document"
	"github.com/kailas-cloud/ragdex/internal/domain/ingest"
	"github.com/kailas-cloud/ragdex/internal/domain/rerank"
	"github.com/kailas-cloud/ragdex/internal/domain/search"
	"github.com/kailas-cloud/ragdex/internal/pipeline"
)

// --- Mocks ---

type mockPipeline struct {
	receipt           ingest.Receipt
	asyncCalled       bool
	syncCalled        bool
	lastTenant        string
	lastDocID         string
	lastOpts          ingest.Options
	coverage          ingest.Coverage
	coverageErr       error
	deleted           int
	deleteErr         error
	flushedEmbeddings int
	flushedResults    int
	searchResult      *pipeline.SearchResult
	searchErr         error
	lastSearch        search.Options
	lastStrategy      rerank.Strategy
	answer            *pipeline.Answer
	answerErr         error
	lastAnswer        pipeline.AnswerOptions
}

func (m *mockPipeline) ProcessDocument(_ context.Context, tenant, id, _, _ string, opts ingest.Options) ingest.Receipt {
	m.syncCalled = true
	m.lastTenant, m.lastDocID, m.lastOpts = tenant, id, opts
	return m.receipt
}

func (m *mockPipeline) ProcessDocumentAsync(_ context.Context, tenant, id, _, _ string, opts ingest.Options) ingest.Receipt {
	m.asyncCalled = true
	m.lastTenant, m.lastDocID, m.lastOpts = tenant, id, opts
	return m.receipt
}

func (m *mockPipeline) Coverage(_ context.Context, _, _ string) (ingest.Coverage, error) {
	return m.coverage, m.coverageErr
}

func (m *mockPipeline) DeleteDocument(_ context.Context, _, _ string) (int, error) {
	return m.deleted, m.deleteErr
}

func (m *mockPipeline) FlushCaches(_ context.Context, _ string) (int, int) {
	return m.flushedEmbeddings, m.flushedResults
}

func (m *mockPipeline) Search(
	_ context.Context, _, _ string, opts search.Options,
	strategy rerank.Strategy, _ rerank.Options,
) (*pipeline.SearchResult, error) {
	m.lastSearch, m.lastStrategy = opts, strategy
	return m.searchResult, m.searchErr
}

func (m *mockPipeline) GenerateAnswer(_ context.Context, _, _ string, opts pipeline.AnswerOptions) (*pipeline.Answer, error) {
	m.lastAnswer = opts
	return m.answer, m.answerErr
}

type mockDocs struct {
	doc     document.Document
	getErr  error
	docs    []document.Document
	listErr error
}

func (m *mockDocs) Get(_ context.Context, _, _ string) (document.Document, error) {
	return m.doc, m.getErr
}

func (m *mockDocs) List(_ context.Context, _ string) ([]document.Document, error) {
	return m.docs, m.listErr
}

func newTestServer(pipe *mockPipeline, docs *mockDocs, checks ...HealthCheck) http.Handler {
	s := NewServer(pipe, docs, checks, zap.NewNop()).
		WithSearchDefaults(search.Options{
			VectorLimit:         20,
			KeywordLimit:        20,
			SimilarityThreshold: 0.3,
			VectorWeight:        0.7,
			KeywordWeight:       0.3,
		})
	r := chiRouter.NewRouter()
	s.Register(r)
	return r
}

func doJSON(t *testing.T, handler http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

// --- Tests ---

func TestIngestDocument_Sync(t *testing.T) {
	pipe := &mockPipeline{receipt: ingest.Receipt{Success: true, DocumentID: "doc-1", ChunksCreated: 3}}
	handler := newTestServer(pipe, &mockDocs{})

	rec := doJSON(t, handler, http.MethodPut, "/api/v1/tenants/acme/documents/doc-1",
		`{"content":"hello world","doc_type":"txt","chunk_size":500,"overlap":50}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !pipe.syncCalled || pipe.asyncCalled {
		t.Error("expected the synchronous path")
	}
	if pipe.lastTenant != "acme" || pipe.lastDocID != "doc-1" {
		t.Errorf("unexpected routing %s/%s", pipe.lastTenant, pipe.lastDocID)
	}
	if pipe.lastOpts.ChunkSize != 500 || pipe.lastOpts.Overlap != 50 {
		t.Errorf("chunking overrides not passed through: %+v", pipe.lastOpts)
	}

	var resp ingestResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ChunksCreated != 3 {
		t.Errorf("expected 3 chunks in the response, got %d", resp.ChunksCreated)
	}
}

func TestIngestDocument_AsyncAccepted(t *testing.T) {
	pipe := &mockPipeline{receipt: ingest.Receipt{Success: true, Async: true, Message: "accepted"}}
	handler := newTestServer(pipe, &mockDocs{})

	rec := doJSON(t, handler, http.MethodPut, "/api/v1/tenants/acme/documents/doc-1?async=true",
		`{"content":"hello","doc_type":"txt"}`)
	if rec.Code != http.StatusAccepted {
		t.Errorf("expected 202, got %d", rec.Code)
	}
	if !pipe.asyncCalled {
		t.Error("expected the async path")
	}
}

func TestIngestDocument_FailedReceipt(t *testing.T) {
	pipe := &mockPipeline{receipt: ingest.Receipt{Success: false, Message: "invalid document"}}
	handler := newTestServer(pipe, &mockDocs{})

	rec := doJSON(t, handler, http.MethodPut, "/api/v1/tenants/acme/documents/bad",
		`{"content":"hello","doc_type":"txt"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", rec.Code)
	}
}

func TestIngestDocument_MalformedBody(t *testing.T) {
	handler := newTestServer(&mockPipeline{}, &mockDocs{})

	rec := doJSON(t, handler, http.MethodPut, "/api/v1/tenants/acme/documents/doc-1", `{broken`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestGetDocument_NotFound(t *testing.T) {
	docs := &mockDocs{getErr: domain.ErrDocumentNotFound}
	handler := newTestServer(&mockPipeline{}, docs)

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/tenants/acme/documents/ghost", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Code != codeDocumentNotFound {
		t.Errorf("unexpected error code %q", resp.Code)
	}
}

func TestListDocuments(t *testing.T) {
	doc, err := document.New("doc-1", "acme", "Title", "upload", "pdf", nil)
	if err != nil {
		t.Fatalf("document.New: %v", err)
	}
	handler := newTestServer(&mockPipeline{}, &mockDocs{docs: []document.Document{doc}})

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/tenants/acme/documents", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp documentListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Total != 1 || resp.Items[0].ID != "doc-1" {
		t.Errorf("unexpected listing %+v", resp)
	}
}

func TestDeleteDocument(t *testing.T) {
	pipe := &mockPipeline{deleted: 4}
	handler := newTestServer(pipe, &mockDocs{})

	rec := doJSON(t, handler, http.MethodDelete, "/api/v1/tenants/acme/documents/doc-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp deleteResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ChunksDeleted != 4 {
		t.Errorf("expected 4 deleted chunks, got %d", resp.ChunksDeleted)
	}
}

func TestFlushCaches(t *testing.T) {
	pipe := &mockPipeline{flushedEmbeddings: 12, flushedResults: 3}
	handler := newTestServer(pipe, &mockDocs{})

	rec := doJSON(t, handler, http.MethodDelete, "/api/v1/tenants/acme/cache", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp flushResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.EmbeddingsFlushed != 12 || resp.ResultsInvalidated != 3 {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestSearch_AppliesDefaultsAndStrategy(t *testing.T) {
	pipe := &mockPipeline{searchResult: &pipeline.SearchResult{Query: "q", Hits: []pipeline.Hit{}}}
	handler := newTestServer(pipe, &mockDocs{})

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/tenants/acme/search",
		`{"query":"q","strategy":"mmr","retrieve":{"limit":5}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if pipe.lastStrategy != rerank.StrategyMMR {
		t.Errorf("expected mmr strategy, got %q", pipe.lastStrategy)
	}
	if pipe.lastSearch.Limit != 5 {
		t.Errorf("expected limit 5, got %d", pipe.lastSearch.Limit)
	}
	// Unset fields come from the deployment defaults.
	if pipe.lastSearch.VectorLimit != 20 || pipe.lastSearch.SimilarityThreshold != 0.3 {
		t.Errorf("defaults not applied: %+v", pipe.lastSearch)
	}
}

func TestSearch_UnknownStrategy(t *testing.T) {
	handler := newTestServer(&mockPipeline{}, &mockDocs{})

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/tenants/acme/search",
		`{"query":"q","strategy":"bogus"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Code != codeUnknownStrategy {
		t.Errorf("unexpected error code %q", resp.Code)
	}
}

func TestSearch_EmptyQueryRejected(t *testing.T) {
	pipe := &mockPipeline{searchErr: domain.ErrEmptyQuery}
	handler := newTestServer(pipe, &mockDocs{})

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/tenants/acme/search", `{"query":""}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestSearch_ProviderFailure(t *testing.T) {
	pipe := &mockPipeline{searchErr: domain.ErrProvider}
	handler := newTestServer(pipe, &mockDocs{})

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/tenants/acme/search", `{"query":"q"}`)
	if rec.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", rec.Code)
	}
}

func TestSearch_UnexpectedErrorIsOpaque(t *testing.T) {
	pipe := &mockPipeline{searchErr: errors.New("boom: secret detail")}
	handler := newTestServer(pipe, &mockDocs{})

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/tenants/acme/search", `{"query":"q"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "secret detail") {
		t.Error("internal error details must not leak to the client")
	}
}

func TestGenerateAnswer(t *testing.T) {
	pipe := &mockPipeline{answer: &pipeline.Answer{Success: true, Query: "q", Answer: "grounded", Confidence: 0.8}}
	handler := newTestServer(pipe, &mockDocs{})

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/tenants/acme/answer",
		`{"query":"q","max_contexts":3,"generation":{"temperature":0.2}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if pipe.lastAnswer.MaxContexts != 3 {
		t.Errorf("expected max contexts 3, got %d", pipe.lastAnswer.MaxContexts)
	}
	if pipe.lastAnswer.Generation.Temperature != 0.2 {
		t.Errorf("generation options not passed through: %+v", pipe.lastAnswer.Generation)
	}
	var resp answerResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Answer != "grounded" || resp.Confidence != 0.8 {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestHealth_Degraded(t *testing.T) {
	handler := newTestServer(&mockPipeline{}, &mockDocs{},
		HealthCheck{Name: "database", Check: func(context.Context) error { return nil }},
		HealthCheck{Name: "embedding", Check: func(context.Context) error { return errors.New("down") }},
	)

	rec := doJSON(t, handler, http.MethodGet, "/health", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	var resp healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "unhealthy" || resp.Checks["database"] != "healthy" || resp.Checks["embedding"] != "unhealthy" {
		t.Errorf("unexpected health response %+v", resp)
	}
}

func TestHealth_AllHealthy(t *testing.T) {
	handler := newTestServer(&mockPipeline{}, &mockDocs{},
		HealthCheck{Name: "database", Check: func(context.Context) error { return nil }},
	)

	rec := doJSON(t, handler, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}
