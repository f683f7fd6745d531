// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Decoder metrics
	PoolsDecoded       *prometheus.CounterVec
	DecodeFailures     *prometheus.CounterVec
	VaultFetchFailures prometheus.Counter
	PoolsDiscovered    *prometheus.CounterVec
	PoolCacheSize      prometheus.Gauge
	PoolsMarkedDirty   prometheus.Counter
	AccountUpdatesSeen prometheus.Counter

	// Search metrics
	SearchPassesTotal     *prometheus.CounterVec
	SearchPassDuration    prometheus.Histogram
	RoutesEvaluated       prometheus.Counter
	OpportunitiesAccepted prometheus.Counter
	OpportunitiesRejected *prometheus.CounterVec
	CalcFailures          prometheus.Counter
	BestNetProfit         prometheus.Gauge

	// Latency metrics
	RPCCallLatency   *prometheus.HistogramVec
	RPCCallErrors    *prometheus.CounterVec
	WSMessageLatency prometheus.Histogram

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulPass prometheus.Gauge
	HighestSlotSeen    prometheus.Gauge
}

// NewMetrics creates a new Metrics instance registered with reg. A nil reg
// uses the default Prometheus registerer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "solana_arb"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		// Decoder metrics
		PoolsDecoded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decoder",
			Name:      "pools_decoded_total",
			Help:      "Total number of pools decoded successfully by protocol",
		}, []string{"protocol"}),
		DecodeFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decoder",
			Name:      "decode_failures_total",
			Help:      "Total number of pool decode failures by protocol and kind",
		}, []string{"protocol", "kind"}),
		VaultFetchFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decoder",
			Name:      "vault_fetch_failures_total",
			Help:      "Total number of vault accounts that could not be read",
		}),
		PoolsDiscovered: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decoder",
			Name:      "pools_discovered_total",
			Help:      "Total number of pool accounts discovered by protocol",
		}, []string{"protocol"}),
		PoolCacheSize: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "decoder",
			Name:      "pool_cache_size",
			Help:      "Current number of pools in the cache",
		}),
		PoolsMarkedDirty: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decoder",
			Name:      "pools_marked_dirty_total",
			Help:      "Total number of pools invalidated by account notifications",
		}),
		AccountUpdatesSeen: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "account_notifications_total",
			Help:      "Total number of account notifications received",
		}),

		// Search metrics
		SearchPassesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "passes_total",
			Help:      "Total number of search passes by status",
		}, []string{"status"}),
		SearchPassDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "pass_duration_seconds",
			Help:      "Search pass duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		RoutesEvaluated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "routes_evaluated_total",
			Help:      "Total number of routes evaluated",
		}),
		OpportunitiesAccepted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "opportunities_accepted_total",
			Help:      "Total number of opportunities accepted by the risk gate",
		}),
		OpportunitiesRejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "opportunities_rejected_total",
			Help:      "Total number of opportunities rejected by primary reason",
		}, []string{"reason"}),
		CalcFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "calc_failures_total",
			Help:      "Total number of probe sizes rejected by the swap calculator",
		}),
		BestNetProfit: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "best_net_profit",
			Help:      "Net profit in base units of the top accepted opportunity of the last pass",
		}),

		// Latency metrics
		RPCCallLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		RPCCallErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_errors_total",
			Help:      "Total number of failed Solana RPC calls",
		}, []string{"method"}),
		WSMessageLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "ws_message_latency_seconds",
			Help:      "WebSocket message processing latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		// Database metrics
		DBQueryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulPass: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_pass_timestamp",
			Help:      "Unix timestamp of last successful search pass",
		}),
		HighestSlotSeen: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "highest_slot_seen",
			Help:      "Highest Solana slot observed in a decoded pool",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", nil)

// RecordPoolDecoded increments the decoded pools counter.
func RecordPoolDecoded(protocol string) {
	DefaultMetrics.PoolsDecoded.WithLabelValues(protocol).Inc()
}

// RecordDecodeFailure records a failed pool decode.
func RecordDecodeFailure(protocol, kind string) {
	DefaultMetrics.DecodeFailures.WithLabelValues(protocol, kind).Inc()
}

// RecordVaultFetchFailures adds n unreadable vaults.
func RecordVaultFetchFailures(n int) {
	DefaultMetrics.VaultFetchFailures.Add(float64(n))
}

// RecordPoolsDiscovered adds n discovered pools of a protocol.
func RecordPoolsDiscovered(protocol string, n int) {
	DefaultMetrics.PoolsDiscovered.WithLabelValues(protocol).Add(float64(n))
}

// UpdatePoolCacheSize sets the pool cache gauge.
func UpdatePoolCacheSize(n int) {
	DefaultMetrics.PoolCacheSize.Set(float64(n))
}

// RecordAccountUpdate records an account notification and whether it
// invalidated a cached pool.
func RecordAccountUpdate(markedDirty bool) {
	DefaultMetrics.AccountUpdatesSeen.Inc()
	if markedDirty {
		DefaultMetrics.PoolsMarkedDirty.Inc()
	}
}

// UpdateHighestSlot updates the highest slot seen gauge.
func UpdateHighestSlot(slot uint64) {
	DefaultMetrics.HighestSlotSeen.Set(float64(slot))
}

// PassStats summarizes one search pass for metrics.
type PassStats struct {
	Duration        time.Duration
	RoutesEvaluated int
	CalcFailures    int
	Accepted        int
	RejectedReasons []string // primary reason of each rejected opportunity
	BestNetProfit   int64
}

// RecordSearchPass records a completed search pass.
func RecordSearchPass(s PassStats) {
	m := DefaultMetrics
	m.SearchPassesTotal.WithLabelValues("ok").Inc()
	m.SearchPassDuration.Observe(s.Duration.Seconds())
	m.RoutesEvaluated.Add(float64(s.RoutesEvaluated))
	m.CalcFailures.Add(float64(s.CalcFailures))
	m.OpportunitiesAccepted.Add(float64(s.Accepted))
	for _, reason := range s.RejectedReasons {
		m.OpportunitiesRejected.WithLabelValues(reason).Inc()
	}
	m.BestNetProfit.Set(float64(s.BestNetProfit))
	m.LastSuccessfulPass.Set(float64(time.Now().Unix()))
}

// RecordSearchPassFailed records a pass that ended with an error.
func RecordSearchPassFailed(status string) {
	DefaultMetrics.SearchPassesTotal.WithLabelValues(status).Inc()
}

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordRPCError records a failed RPC call.
func RecordRPCError(method string) {
	DefaultMetrics.RPCCallErrors.WithLabelValues(method).Inc()
}

// RecordWSMessage records the handling time of one websocket message.
func RecordWSMessage(seconds float64) {
	DefaultMetrics.WSMessageLatency.Observe(seconds)
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
