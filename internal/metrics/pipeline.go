package metrics

import "github.com/prometheus/client_golang/prometheus"

// Pipeline and cache Prometheus metrics.
var (
	CacheOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragdex",
			Name:      "cache_operations_total",
			Help:      "Cache operations by cache name and result",
		},
		[]string{"cache", "result"}, // result: hit, miss, put, invalidation, error
	)

	IngestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ragdex",
			Name:      "ingest_duration_seconds",
			Help:      "Document ingestion duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"status"},
	)

	IngestChunks = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "ragdex",
			Name:      "ingest_chunks",
			Help:      "Chunks persisted per ingested document",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500},
		},
	)

	RetrievalCandidates = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ragdex",
			Name:      "retrieval_candidates",
			Help:      "Candidate counts per retrieval sub-search",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100},
		},
		[]string{"source"},
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers pipeline, retrieval, and cache metrics.
// Must be called once from main.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(CacheOpsTotal)
	prometheus.MustRegister(IngestDuration)
	prometheus.MustRegister(IngestChunks)
	prometheus.MustRegister(RetrievalCandidates)
	pipelineMetricsRegistered = true
}
