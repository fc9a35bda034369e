package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline metrics, registered on the default registry and served by the
// API's /metrics endpoint.
var (
	JobsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docstream_jobs_completed_total",
		Help: "Ingestion jobs that reached done.",
	})

	JobsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docstream_jobs_failed_total",
		Help: "Ingestion jobs that reached failed, by error code.",
	}, []string{"error_code"})

	JobsRetried = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docstream_jobs_retried_total",
		Help: "Ingestion job attempts that were parked for retry.",
	})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "docstream_stage_duration_seconds",
		Help:    "Wall time of each pipeline stage.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"stage"})

	ParserRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docstream_parser_runs_total",
		Help: "Parser invocations by format and result.",
	}, []string{"parser", "result"})

	EmbeddingBatches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docstream_embedding_batches_total",
		Help: "Embedding batch requests sent to the provider.",
	})

	OutboxPending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "docstream_outbox_pending",
		Help: "Outbox rows still owed for delivery.",
	})
)
