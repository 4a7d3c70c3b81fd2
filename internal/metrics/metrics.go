// Package metrics declares the Prometheus instrumentation shared by the
// text and image pipelines, all registered through promauto so every
// metric self-registers against the default registry on first use.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BlocksFlushedTotal counts SPIMI block flushes, labeled by corpus.
	BlocksFlushedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sondeo",
		Subsystem: "text",
		Name:      "blocks_flushed_total",
		Help:      "Number of SPIMI blocks flushed to disk during a build.",
	}, []string{"corpus"})

	// MergeDuration observes the wall-clock time of the external k-way
	// merge, labeled by corpus.
	MergeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "sondeo",
		Subsystem: "text",
		Name:      "merge_duration_seconds",
		Help:      "Wall-clock duration of the external k-way merge.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
	}, []string{"corpus"})

	// BuildDocumentsTotal counts documents ingested by a build, labeled by
	// corpus and modality (text/image).
	BuildDocumentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sondeo",
		Name:      "build_documents_total",
		Help:      "Documents ingested by a build, per corpus and modality.",
	}, []string{"corpus", "modality"})

	// QueryLatency observes end-to-end query latency, labeled by corpus and
	// modality.
	QueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "sondeo",
		Name:      "query_latency_seconds",
		Help:      "End-to-end query latency.",
		Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"corpus", "modality"})

	// QueryTopKScore observes the score distribution of returned results.
	QueryTopKScore = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "sondeo",
		Name:      "query_topk_score",
		Help:      "Cosine similarity score of results returned from a query.",
		Buckets:   []float64{0, 0.1, 0.25, 0.5, 0.75, 0.9, 1.0},
	})

	// CacheHitTotal and CacheMissTotal count corpus-cache lookups, labeled
	// by corpus.
	CacheHitTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sondeo",
		Subsystem: "cache",
		Name:      "hit_total",
		Help:      "Corpus cache hits.",
	}, []string{"corpus"})

	CacheMissTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sondeo",
		Subsystem: "cache",
		Name:      "miss_total",
		Help:      "Corpus cache misses.",
	}, []string{"corpus"})
)
