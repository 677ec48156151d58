package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/cache"
	"github.com/kailas-cloud/ragdex/internal/chunker"
	"github.com/kailas-cloud/ragdex/internal/config"
	dbMemory "github.com/kailas-cloud/ragdex/internal/db/memory"
	dbRedis "github.com/kailas-cloud/ragdex/internal/db/redis"
	"github.com/kailas-cloud/ragdex/internal/domain/search"
	logpkg "github.com/kailas-cloud/ragdex/internal/logger"
	"github.com/kailas-cloud/ragdex/internal/metrics"
	"github.com/kailas-cloud/ragdex/internal/pipeline"
	"github.com/kailas-cloud/ragdex/internal/repository/chunkrepo"
	"github.com/kailas-cloud/ragdex/internal/repository/docrepo"
	"github.com/kailas-cloud/ragdex/internal/reranker"
	"github.com/kailas-cloud/ragdex/internal/retriever"
	chiTransport "github.com/kailas-cloud/ragdex/internal/transport/chi"
	openaiTransport "github.com/kailas-cloud/ragdex/internal/transport/openai"
	"github.com/kailas-cloud/ragdex/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting ragdex API server",
		zap.String("version", version.Full()),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	// Wait for database to be ready
	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register metrics explicitly (no init())
	metrics.RegisterProviderMetrics()
	metrics.RegisterPipelineMetrics()

	// Caches: Redis primary, in-process fallback tier.
	memStore := dbMemory.NewStore()
	embeddingTTL := time.Duration(cfg.Cache.EmbeddingTTLHours) * time.Hour
	embCache := cache.NewEmbeddingCache(store, memStore, cache.EmbeddingCacheConfig{
		KeyPrefix:  cfg.Storage.KeyPrefix,
		TTL:        embeddingTTL,
		CompressAt: cfg.Cache.CompressAtBytes,
	}, logger)
	resultCache := cache.NewResultCache(store, memStore, cfg.Storage.KeyPrefix,
		time.Duration(cfg.Cache.ResultTTLMinutes)*time.Minute, logger)

	embedder := openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   cfg.Embedding.Provider,
		Logger:     logger,
	})
	logger.Info("Embedder created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	// Pass nil interface (not typed nil pointer!) when generation is disabled.
	var generator pipeline.Generator
	if cfg.Generation.Enabled {
		generator = openaiTransport.NewGenerator(&openaiTransport.GeneratorConfig{
			APIKey:   cfg.Generation.APIKey,
			BaseURL:  cfg.Generation.BaseURL,
			Model:    cfg.Generation.Model,
			Provider: cfg.Embedding.Provider,
			Logger:   logger,
		})
		logger.Info("Generator created", zap.String("model", cfg.Generation.Model))
	}

	chunkRepo := chunkrepo.New(store, cfg.Storage.KeyPrefix)
	docRepo := docrepo.New(store, cfg.Storage.KeyPrefix)

	if cfg.Storage.ReindexOnStart && cfg.Embedding.Dimensions > 0 {
		if err := chunkRepo.RefreshIndex(ctx, cfg.Embedding.Dimensions, cfg.Storage.MetadataTagFields); err != nil {
			logger.Fatal("Failed to rebuild search index", zap.Error(err))
		}
		logger.Info("Search index rebuilt", zap.Int("dimensions", cfg.Embedding.Dimensions))
	}

	chk := chunker.New(chunker.Config{
		MinChunkSize:    cfg.Chunking.MinChunkSize,
		TypeOverrides:   chunkPolicies(cfg.Chunking.TypeOverrides),
		TenantOverrides: tenantPolicies(cfg.Chunking.TenantOverrides),
	}, logger)

	queryEmbedder := cache.NewCachedEmbedder(embedder, embCache, embeddingTTL)
	retrSvc := retriever.New(chunkRepo, queryEmbedder, resultCache, logger)
	rerankSvc := reranker.New(embedder, embedder, logger)

	pipe := pipeline.New(
		chk, chunkRepo, docRepo,
		embCache, embedder,
		retrSvc, rerankSvc, generator, resultCache,
		pipeline.Config{
			BatchSize:            cfg.Pipeline.BatchSize,
			MaxConcurrentBatches: cfg.Pipeline.MaxConcurrentBatches,
			EmbedTimeout:         time.Duration(cfg.Pipeline.EmbedTimeoutSec) * time.Second,
			GenerateTimeout:      time.Duration(cfg.Pipeline.GenerateTimeoutSec) * time.Second,
			EmbeddingCacheTTL:    embeddingTTL,
			MetadataTagFields:    cfg.Storage.MetadataTagFields,
		},
		logger,
	)

	checks := []chiTransport.HealthCheck{
		{Name: "database", Check: store.Ping},
		{Name: "embedding", Check: embedder.HealthCheck},
	}
	server := chiTransport.NewServer(pipe, docRepo, checks, logger).
		WithSearchDefaults(search.Options{
			VectorLimit:         cfg.Retrieval.VectorLimit,
			KeywordLimit:        cfg.Retrieval.KeywordLimit,
			SimilarityThreshold: cfg.Retrieval.SimilarityThreshold,
			VectorWeight:        cfg.Retrieval.VectorWeight,
			KeywordWeight:       cfg.Retrieval.KeywordWeight,
		})

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Register(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

func chunkPolicies(m map[string]config.ChunkPolicyConfig) map[chunker.DocType]chunker.Partial {
	if len(m) == 0 {
		return nil
	}
	out := make(map[chunker.DocType]chunker.Partial, len(m))
	for t, p := range m {
		out[chunker.DocType(t)] = chunker.Partial{ChunkSize: p.ChunkSize, Overlap: p.Overlap, MaxRows: p.MaxRows}
	}
	return out
}

func tenantPolicies(m map[string]config.ChunkPolicyConfig) map[string]chunker.Partial {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]chunker.Partial, len(m))
	for t, p := range m {
		out[t] = chunker.Partial{ChunkSize: p.ChunkSize, Overlap: p.Overlap, MaxRows: p.MaxRows}
	}
	return out
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.WithContext(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line, one per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
