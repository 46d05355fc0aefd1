package metrics

import "github.com/prometheus/client_golang/prometheus"

// Upstream and filter Prometheus metrics.
var (
	UpstreamRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tenderfilter",
			Name:      "upstream_requests_total",
			Help:      "Total number of outbound requests",
		},
		[]string{"upstream", "status"}, // upstream: dataset / razorpay; status: success / error
	)

	UpstreamRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tenderfilter",
			Name:      "upstream_request_duration_seconds",
			Help:      "Outbound request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"upstream"},
	)

	UpstreamErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tenderfilter",
			Name:      "upstream_errors_total",
			Help:      "Total outbound errors",
		},
		[]string{"upstream", "error_type"},
	)

	FilterMatches = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "tenderfilter",
			Name:      "filter_matches",
			Help:      "Number of tenders matching a query before truncation",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 500},
		},
	)

	SubscriptionCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tenderfilter",
			Name:      "subscription_cache_total",
			Help:      "Subscription verification cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)
)

var upstreamMetricsRegistered bool

// RegisterUpstreamMetrics registers outbound and filter metrics. Must be called once from main.
func RegisterUpstreamMetrics() {
	if upstreamMetricsRegistered {
		return
	}
	prometheus.MustRegister(UpstreamRequestsTotal)
	prometheus.MustRegister(UpstreamRequestDuration)
	prometheus.MustRegister(UpstreamErrorsTotal)
	prometheus.MustRegister(FilterMatches)
	prometheus.MustRegister(SubscriptionCacheTotal)
	upstreamMetricsRegistered = true
}
