package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DocumentsTotal counts documents by terminal status.
	// Labels: outcome (committed, skipped-unchanged, skipped-filtered, failed)
	DocumentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "legisearch",
			Subsystem: "pipeline",
			Name:      "documents_total",
			Help:      "Documents processed by terminal outcome",
		},
		[]string{"outcome"},
	)

	// ChunksEmbedded counts chunk vectors written to the vector store.
	ChunksEmbedded = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "legisearch",
			Subsystem: "pipeline",
			Name:      "chunks_embedded_total",
			Help:      "Chunk vectors committed to the vector store",
		},
	)

	// VectorRollbacks counts relational-hash rollbacks after exhausted
	// vector-write retries.
	VectorRollbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "legisearch",
			Subsystem: "pipeline",
			Name:      "vector_rollbacks_total",
			Help:      "Content-hash rollbacks caused by failed vector writes",
		},
	)

	// RunDuration tracks end-to-end run duration.
	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "legisearch",
			Subsystem: "pipeline",
			Name:      "run_duration_seconds",
			Help:      "Duration of full ingestion runs in seconds",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		},
	)
)
