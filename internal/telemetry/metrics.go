package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Application metrics, exposed on /metrics.
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docanalysis_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docanalysis_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	AnalysesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docanalysis_analyses_total",
			Help: "Upload analyses by terminal outcome",
		},
		[]string{"format", "outcome"},
	)

	ExtractionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docanalysis_extraction_duration_seconds",
			Help:    "Text extraction duration by format",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"format", "status"},
	)

	StorageOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docanalysis_storage_operations_total",
			Help: "Object store operations",
		},
		[]string{"operation", "status"},
	)

	AITokensUsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docanalysis_ai_tokens_total",
			Help: "Tokens consumed by AI analyses",
		},
		[]string{"provider", "model"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docanalysis_circuit_breaker_transitions_total",
			Help: "Circuit breaker state changes",
		},
		[]string{"name", "state"},
	)

	RenderCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docanalysis_render_cache_lookups_total",
			Help: "Rendered export cache lookups",
		},
		[]string{"result"},
	)

	AuditEventsLogged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docanalysis_audit_events_total",
			Help: "Audit events written",
		},
		[]string{"action", "resource"},
	)

	BlobCleanups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docanalysis_blob_cleanups_total",
			Help: "Blob compensation and orphan sweep deletions",
		},
		[]string{"source", "status"},
	)
)

// StatusLabel collapses an error into the "ok"/"error" label value.
func StatusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
