// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Settlement metrics
	SubmissionsTotal     *prometheus.CounterVec
	ConfirmationsTotal   *prometheus.CounterVec
	ReconciliationsTotal *prometheus.CounterVec
	FlowFailuresTotal    *prometheus.CounterVec

	// Confirmation metrics
	ConfirmationLatency *prometheus.HistogramVec
	PollAttempts        prometheus.Histogram

	// Event sync metrics
	EventsObserved     *prometheus.CounterVec
	CacheInvalidations prometheus.Counter
	WSReconnects       prometheus.Counter
	RecoveriesRun      prometheus.Counter

	// Reconcile queue metrics
	ReconcileQueueDepth  prometheus.Gauge
	ReconcileSweepsTotal *prometheus.CounterVec

	// Latency metrics
	RPCCallLatency     *prometheus.HistogramVec
	BackendCallLatency *prometheus.HistogramVec

	// Health metrics
	LastSuccessfulReconcile prometheus.Gauge
	LastEventObserved       prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "crowdfund_settlement"
	}

	return &Metrics{
		// Settlement metrics
		SubmissionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "submissions_total",
			Help:      "Total number of commitment submissions by channel",
		}, []string{"channel"}),
		ConfirmationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "confirmations_total",
			Help:      "Total number of confirmation outcomes by channel and outcome",
		}, []string{"channel", "outcome"}),
		ReconciliationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "reconciliations_total",
			Help:      "Total number of backend reconciliations by status",
		}, []string{"status"}),
		FlowFailuresTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "flow_failures_total",
			Help:      "Total number of settlement flow failures by category",
		}, []string{"category"}),

		// Confirmation metrics
		ConfirmationLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "confirm",
			Name:      "latency_seconds",
			Help:      "Time from dispatch to confirmation outcome in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"channel"}),
		PollAttempts: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "confirm",
			Name:      "poll_attempts",
			Help:      "Number of verification polls before an outcome",
			Buckets:   []float64{1, 2, 3, 5, 10, 20, 30},
		}),

		// Event sync metrics
		EventsObserved: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "eventsync",
			Name:      "events_observed_total",
			Help:      "Total number of contract events observed by kind",
		}, []string{"kind"}),
		CacheInvalidations: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "eventsync",
			Name:      "cache_invalidations_total",
			Help:      "Total number of cache invalidations triggered by events",
		}),
		WSReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "eventsync",
			Name:      "ws_reconnects_total",
			Help:      "Total number of WebSocket reconnects",
		}),
		RecoveriesRun: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "eventsync",
			Name:      "recoveries_run_total",
			Help:      "Total number of missed-event recovery passes",
		}),

		// Reconcile queue metrics
		ReconcileQueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "queue_depth",
			Help:      "Current number of pending reconciliations",
		}),
		ReconcileSweepsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "sweeps_total",
			Help:      "Total number of reconcile sweep runs by status",
		}, []string{"status"}),

		// Latency metrics
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "rpc_call_latency_seconds",
			Help:      "Chain RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		BackendCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "call_latency_seconds",
			Help:      "Backend API call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),

		// Health metrics
		LastSuccessfulReconcile: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_reconcile_timestamp",
			Help:      "Unix timestamp of last successful reconciliation",
		}),
		LastEventObserved: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_event_observed_timestamp",
			Help:      "Unix timestamp of last observed contract event",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordSubmission increments the submissions counter for a channel.
func RecordSubmission(channel string) {
	DefaultMetrics.SubmissionsTotal.WithLabelValues(channel).Inc()
}

// RecordConfirmation records a confirmation outcome.
func RecordConfirmation(channel, outcome string, latencySeconds float64) {
	DefaultMetrics.ConfirmationsTotal.WithLabelValues(channel, outcome).Inc()
	DefaultMetrics.ConfirmationLatency.WithLabelValues(channel).Observe(latencySeconds)
}

// RecordPollAttempts records how many verification polls an outcome took.
func RecordPollAttempts(attempts int) {
	DefaultMetrics.PollAttempts.Observe(float64(attempts))
}

// RecordReconciliation records a backend reconciliation result.
func RecordReconciliation(status string) {
	DefaultMetrics.ReconciliationsTotal.WithLabelValues(status).Inc()
}

// RecordFlowFailure records a settlement flow failure by category.
func RecordFlowFailure(category string) {
	DefaultMetrics.FlowFailuresTotal.WithLabelValues(category).Inc()
}

// RecordEventObserved records an observed contract event.
func RecordEventObserved(kind string) {
	DefaultMetrics.EventsObserved.WithLabelValues(kind).Inc()
}

// RecordCacheInvalidation increments the cache invalidations counter.
func RecordCacheInvalidation() {
	DefaultMetrics.CacheInvalidations.Inc()
}

// RecordWSReconnect increments the WebSocket reconnects counter.
func RecordWSReconnect() {
	DefaultMetrics.WSReconnects.Inc()
}

// RecordRecovery increments the missed-event recovery counter.
func RecordRecovery() {
	DefaultMetrics.RecoveriesRun.Inc()
}

// UpdateReconcileQueueDepth updates the pending reconciliations gauge.
func UpdateReconcileQueueDepth(depth int) {
	DefaultMetrics.ReconcileQueueDepth.Set(float64(depth))
}

// RecordReconcileSweep records one sweep run.
func RecordReconcileSweep(status string) {
	DefaultMetrics.ReconcileSweepsTotal.WithLabelValues(status).Inc()
}

// RecordRPCLatency records chain RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordBackendLatency records backend API call latency.
func RecordBackendLatency(endpoint string, seconds float64) {
	DefaultMetrics.BackendCallLatency.WithLabelValues(endpoint).Observe(seconds)
}
