package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LatencyBucket = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "devpanel_latency_bucket",
		Help:    "Request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})

	TracedCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "devpanel_traced_calls_total",
		Help: "Wrapped business calls recorded, by outcome",
	}, []string{"outcome"})

	TracedQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "devpanel_traced_queries_total",
		Help: "Data-access operations recorded, by error kind (ok on success)",
	}, []string{"kind"})

	TraceInjections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "devpanel_trace_injections_total",
		Help: "Trace injection attempts on document responses, by result",
	}, []string{"result"})

	LiveRequestContexts = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "devpanel_live_request_contexts",
		Help: "Request contexts begun and not yet released",
	})
)
