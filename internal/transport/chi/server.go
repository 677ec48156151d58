// Package chi is the HTTP adapter over the RAG pipeline.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/domain/document"
	"github.com/kailas-cloud/ragdex/internal/domain/ingest"
	"github.com/kailas-cloud/ragdex/internal/domain/rerank"
	"github.com/kailas-cloud/ragdex/internal/domain/search"
	logpkg "github.com/kailas-cloud/ragdex/internal/logger"
	"github.com/kailas-cloud/ragdex/internal/pipeline"
)

// Pipeline is the consumer view of the pipeline service.
type Pipeline interface {
	ProcessDocument(ctx context.Context, tenant, documentID, content, docType string, opts ingest.Options) ingest.Receipt
	ProcessDocumentAsync(ctx context.Context, tenant, documentID, content, docType string, opts ingest.Options) ingest.Receipt
	Coverage(ctx context.Context, tenant, documentID string) (ingest.Coverage, error)
	DeleteDocument(ctx context.Context, tenant, documentID string) (int, error)
	FlushCaches(ctx context.Context, tenant string) (embeddings, results int)
	Search(ctx context.Context, tenant, query string, opts search.Options,
		strategy rerank.Strategy, ropts rerank.Options) (*pipeline.SearchResult, error)
	GenerateAnswer(ctx context.Context, tenant, query string, opts pipeline.AnswerOptions) (*pipeline.Answer, error)
}

// DocumentReader lists and fetches stored document records.
type DocumentReader interface {
	Get(ctx context.Context, tenant, id string) (document.Document, error)
	List(ctx context.Context, tenant string) ([]document.Document, error)
}

// HealthCheck is one named readiness probe.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server routes HTTP requests to the pipeline.
type Server struct {
	pipe           Pipeline
	docs           DocumentReader
	checks         []HealthCheck
	searchDefaults search.Options
	logger         *zap.Logger
	errorHandlers  []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(pipe Pipeline, docs DocumentReader, checks []HealthCheck, logger *zap.Logger) *Server {
	s := &Server{
		pipe:   pipe,
		docs:   docs,
		checks: checks,
		logger: logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrDocumentNotFound, http.StatusNotFound, codeDocumentNotFound),
		sentinelHandler(domain.ErrTenantRequired, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrEmptyQuery, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrValidation, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrUnknownStrategy, http.StatusBadRequest, codeUnknownStrategy),
		sentinelHandler(domain.ErrProvider, http.StatusBadGateway, codeProviderError),
	}
	return s
}

// WithSearchDefaults sets deployment-level retrieval defaults applied to
// request fields the client left unset.
func (s *Server) WithSearchDefaults(d search.Options) *Server {
	s.searchDefaults = d
	return s
}

// Register mounts all routes on the router.
func (s *Server) Register(r chi.Router) {
	r.Get("/health", s.healthHandler)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/api/v1/tenants/{tenant}", func(r chi.Router) {
		r.Get("/documents", s.listDocuments)
		r.Put("/documents/{id}", s.ingestDocument)
		r.Get("/documents/{id}", s.getDocument)
		r.Delete("/documents/{id}", s.deleteDocument)
		r.Get("/documents/{id}/coverage", s.documentCoverage)
		r.Post("/search", s.searchDocuments)
		r.Post("/answer", s.generateAnswer)
		r.Delete("/cache", s.flushCaches)
	})
}

// ingestDocument handles PUT /api/v1/tenants/{tenant}/documents/{id}.
// With ?async=true the document is acknowledged immediately and embedded in
// the background.
func (s *Server) ingestDocument(w http.ResponseWriter, r *http.Request) {
	tenant := chi.URLParam(r, "tenant")
	id := chi.URLParam(r, "id")

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
		return
	}

	async := r.URL.Query().Get("async") == "true"
	opts := req.options(async)

	var receipt ingest.Receipt
	if async {
		receipt = s.pipe.ProcessDocumentAsync(r.Context(), tenant, id, req.Content, req.DocType, opts)
	} else {
		receipt = s.pipe.ProcessDocument(r.Context(), tenant, id, req.Content, req.DocType, opts)
	}

	status := http.StatusOK
	switch {
	case !receipt.Success:
		status = http.StatusUnprocessableEntity
	case receipt.Async:
		status = http.StatusAccepted
	}
	writeJSON(w, status, receiptToResponse(receipt))
}

// getDocument handles GET /api/v1/tenants/{tenant}/documents/{id}.
func (s *Server) getDocument(w http.ResponseWriter, r *http.Request) {
	tenant := chi.URLParam(r, "tenant")
	id := chi.URLParam(r, "id")

	doc, err := s.docs.Get(r.Context(), tenant, id)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, documentToResponse(&doc))
}

// listDocuments handles GET /api/v1/tenants/{tenant}/documents.
func (s *Server) listDocuments(w http.ResponseWriter, r *http.Request) {
	tenant := chi.URLParam(r, "tenant")

	docs, err := s.docs.List(r.Context(), tenant)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	items := make([]documentResponse, len(docs))
	for i := range docs {
		items[i] = documentToResponse(&docs[i])
	}
	writeJSON(w, http.StatusOK, documentListResponse{Items: items, Total: len(items)})
}

// deleteDocument handles DELETE /api/v1/tenants/{tenant}/documents/{id}.
func (s *Server) deleteDocument(w http.ResponseWriter, r *http.Request) {
	tenant := chi.URLParam(r, "tenant")
	id := chi.URLParam(r, "id")

	deleted, err := s.pipe.DeleteDocument(r.Context(), tenant, id)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deleteResponse{DocumentID: id, ChunksDeleted: deleted})
}

// documentCoverage handles GET /api/v1/tenants/{tenant}/documents/{id}/coverage.
func (s *Server) documentCoverage(w http.ResponseWriter, r *http.Request) {
	tenant := chi.URLParam(r, "tenant")
	id := chi.URLParam(r, "id")

	cov, err := s.pipe.Coverage(r.Context(), tenant, id)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cov)
}

// searchDocuments handles POST /api/v1/tenants/{tenant}/search.
func (s *Server) searchDocuments(w http.ResponseWriter, r *http.Request) {
	tenant := chi.URLParam(r, "tenant")

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
		return
	}

	strategy, err := rerank.ParseStrategy(req.Strategy)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	opts := s.applySearchDefaults(req.Retrieve.options())
	result, err := s.pipe.Search(r.Context(), tenant, req.Query, opts, strategy, req.Rerank.options())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, searchToResponse(result))
}

// generateAnswer handles POST /api/v1/tenants/{tenant}/answer.
func (s *Server) generateAnswer(w http.ResponseWriter, r *http.Request) {
	tenant := chi.URLParam(r, "tenant")

	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
		return
	}

	strategy, err := rerank.ParseStrategy(req.Strategy)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	aopts := req.answerOptions(strategy)
	aopts.Search = s.applySearchDefaults(aopts.Search)

	answer, err := s.pipe.GenerateAnswer(r.Context(), tenant, req.Query, aopts)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, answerToResponse(answer))
}

// flushCaches handles DELETE /api/v1/tenants/{tenant}/cache.
func (s *Server) flushCaches(w http.ResponseWriter, r *http.Request) {
	tenant := chi.URLParam(r, "tenant")

	embeddings, results := s.pipe.FlushCaches(r.Context(), tenant)
	writeJSON(w, http.StatusOK, flushResponse{
		Tenant:             tenant,
		EmbeddingsFlushed:  embeddings,
		ResultsInvalidated: results,
	})
}

// healthHandler handles GET /health.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string, len(s.checks))
	healthy := true
	for _, c := range s.checks {
		if err := c.Check(r.Context()); err != nil {
			checks[c.Name] = "unhealthy"
			healthy = false
			s.logger.Warn("health check failed", zap.String("check", c.Name), zap.Error(err))
			continue
		}
		checks[c.Name] = "healthy"
	}

	status, httpStatus := "healthy", http.StatusOK
	if !healthy {
		status, httpStatus = "unhealthy", http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, healthResponse{Status: status, Checks: checks})
}

// applySearchDefaults fills request fields the client left unset with the
// deployment-level defaults. Library defaults cover whatever remains zero.
func (s *Server) applySearchDefaults(o search.Options) search.Options {
	d := s.searchDefaults
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
	return o
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code errorCode, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without
// exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrDocumentNotFound,
		domain.ErrTenantRequired,
		domain.ErrEmptyQuery,
		domain.ErrUnknownStrategy,
		domain.ErrValidation,
		domain.ErrProvider,
		domain.ErrStorage,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code errorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// handleDomainError logs with the request-scoped logger when the middleware
// installed one, so error lines carry the request ID.
func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logpkg.FromContext(r.Context())
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
