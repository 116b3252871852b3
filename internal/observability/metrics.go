// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Pool metrics
	Contributions     *prometheus.CounterVec
	Bids              *prometheus.CounterVec
	OutcomesObserved  *prometheus.CounterVec
	Finalizations     *prometheus.CounterVec
	Redemptions       *prometheus.CounterVec
	OperationErrors   *prometheus.CounterVec
	OperationLatency  *prometheus.HistogramVec
	PoolState         *prometheus.GaugeVec
	TotalContributed  *prometheus.GaugeVec
	RedeemableBalance *prometheus.GaugeVec
	EthBalance        *prometheus.GaugeVec
	ClaimTokenSupply  *prometheus.GaugeVec
	EmergencyActions  *prometheus.CounterVec

	// Market metrics
	RPCCallLatency *prometheus.HistogramVec

	// Event delivery metrics
	EventsPublished *prometheus.CounterVec
	SinkErrors      *prometheus.CounterVec
	FeedClients     prometheus.Gauge

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Keeper metrics
	KeeperPolls        *prometheus.CounterVec
	LastSuccessfulPoll prometheus.Gauge
}

// NewMetrics creates a new Metrics instance registered with reg.
// A nil reg registers with the default Prometheus registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "partybid"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		Contributions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "contributions_total",
			Help:      "Total number of recorded contributions by kind",
		}, []string{"pool", "kind"}),
		Bids: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "bids_total",
			Help:      "Total number of bid attempts by status",
		}, []string{"pool", "status"}),
		OutcomesObserved: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "outcomes_observed_total",
			Help:      "Total number of auction outcome observations by result",
		}, []string{"pool", "outcome"}),
		Finalizations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "finalizations_total",
			Help:      "Total number of pool finalizations",
		}, []string{"pool"}),
		Redemptions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "redemptions_total",
			Help:      "Total number of claim-token redemptions",
		}, []string{"pool"}),
		OperationErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "operation_errors_total",
			Help:      "Total number of rolled back operations by operation and error",
		}, []string{"pool", "operation", "error"}),
		OperationLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "operation_latency_seconds",
			Help:      "Pool operation latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		PoolState: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "state",
			Help:      "1 for the current lifecycle state of the pool, 0 otherwise",
		}, []string{"pool", "state"}),
		TotalContributed: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "total_contributed_eth",
			Help:      "Pooled contributions in whole currency units",
		}, []string{"pool"}),
		RedeemableBalance: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "redeemable_eth",
			Help:      "Redeemable balance in whole currency units",
		}, []string{"pool"}),
		EthBalance: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "balance_eth",
			Help:      "Currency held by the pool in whole units",
		}, []string{"pool"}),
		ClaimTokenSupply: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "claim_token_supply",
			Help:      "Outstanding claim tokens in whole units",
		}, []string{"pool"}),
		EmergencyActions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "emergency_actions_total",
			Help:      "Total number of emergency control invocations by action",
		}, []string{"pool", "action"}),

		RPCCallLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "market",
			Name:      "rpc_call_latency_seconds",
			Help:      "Market RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),

		EventsPublished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Total number of events committed by kind",
		}, []string{"kind"}),
		SinkErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "sink_errors_total",
			Help:      "Total number of failed event deliveries by sink",
		}, []string{"sink"}),
		FeedClients: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "feed_clients",
			Help:      "Number of connected websocket feed clients",
		}),

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

		KeeperPolls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "keeper",
			Name:      "polls_total",
			Help:      "Total number of keeper polls by result",
		}, []string{"result"}),
		LastSuccessfulPoll: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "keeper",
			Name:      "last_successful_poll_timestamp",
			Help:      "Unix timestamp of last successful keeper poll",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// SetPoolState marks state as the current state of pool.
func (m *Metrics) SetPoolState(pool string, state string, all []string) {
	for _, s := range all {
		v := 0.0
		if s == state {
			v = 1
		}
		m.PoolState.WithLabelValues(pool, s).Set(v)
	}
}

// RecordDBQuery records database query metrics.
func (m *Metrics) RecordDBQuery(database, operation string, seconds float64, err error) {
	m.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		m.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// WeiToEth converts an amount in wei to whole units for gauges.
// Lossy; for display only.
func WeiToEth(v *uint256.Int) float64 {
	if v == nil {
		return 0
	}
	return decimal.NewFromBigInt(v.ToBig(), -18).InexactFloat64()
}
