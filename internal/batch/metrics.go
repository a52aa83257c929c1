package batch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// pointsSubmitted tracks points accepted by Write/WriteBatch per path
	pointsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graylogic_ingest_points_submitted_total",
			Help: "Total number of points submitted to the writer",
		},
		[]string{"mode"},
	)

	// batchesSent tracks successful transport calls from the pipeline
	batchesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "graylogic_ingest_batches_sent_total",
			Help: "Total number of batches written successfully",
		},
	)

	// pointsSent tracks points delivered by the pipeline
	pointsSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "graylogic_ingest_points_sent_total",
			Help: "Total number of points written successfully",
		},
	)

	// sendFailures tracks failed transport calls by classified kind
	sendFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graylogic_ingest_send_failures_total",
			Help: "Total number of failed batch sends",
		},
		[]string{"kind"},
	)

	// pointsDropped tracks points handed to the failure hook by kind
	pointsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graylogic_ingest_points_dropped_total",
			Help: "Total number of points reported to the failure hook",
		},
		[]string{"kind"},
	)

	// retryEnqueues tracks batches accepted into the retry buffer
	retryEnqueues = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "graylogic_ingest_retry_enqueued_total",
			Help: "Total number of batches queued for retry",
		},
	)

	// retryOverruns tracks batches rejected by a full retry buffer
	retryOverruns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "graylogic_ingest_retry_overruns_total",
			Help: "Total number of batches rejected by a full retry buffer",
		},
	)

	// retryBufferEntries is the retry buffer size after the last cycle
	retryBufferEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "graylogic_ingest_retry_buffer_entries",
			Help: "Batches currently held for retry",
		},
	)

	// flushCycles tracks pipeline flushes by trigger
	flushCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graylogic_ingest_flush_cycles_total",
			Help: "Total number of flush cycles",
		},
		[]string{"trigger"},
	)

	// dispatchDuration tracks transport call latency
	dispatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "graylogic_ingest_dispatch_duration_seconds",
			Help:    "Batch send latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// Flush triggers used as metric labels.
const (
	triggerThreshold = "threshold"
	triggerTimer     = "timer"
	triggerManual    = "manual"
	triggerShutdown  = "shutdown"
)
