package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the service's Prometheus collectors.
type Metrics struct {
	RequestDuration *prometheus.HistogramVec
	NodeCacheOps    *prometheus.CounterVec
	VectorizeOps    *prometheus.CounterVec
}

// NewMetrics registers the service collectors on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "graphmeta_http_request_duration_seconds",
				Help:    "HTTP request duration by method, route pattern, and status.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
		NodeCacheOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "graphmeta_node_cache_ops_total",
				Help: "Node cache lookups by result (hit or miss).",
			},
			[]string{"result"},
		),
		VectorizeOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "graphmeta_edge_vectorize_total",
				Help: "Edge vectorization attempts by outcome.",
			},
			[]string{"outcome"},
		),
	}

	reg.MustRegister(m.RequestDuration, m.NodeCacheOps, m.VectorizeOps)
	return m
}
