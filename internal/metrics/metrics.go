package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	PollCyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_metrics_poll_cycles_total",
			Help: "Total number of poll cycles by result.",
		},
		[]string{"result"},
	)

	PollDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "redis_metrics_poll_duration_seconds",
			Help:    "Duration of one metrics and slow-log cycle in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)

	SlowLogEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "redis_metrics_slowlog_entries",
			Help: "Number of slow-log entries returned by the last cycle.",
		},
	)

	RedisUp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "redis_metrics_up",
			Help: "Whether the last INFO call succeeded (1) or not (0).",
		},
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_metrics_http_requests_total",
			Help: "Total number of requests to the operations endpoint.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_metrics_http_request_duration_seconds",
			Help:    "Operations endpoint request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

func init() {
	prometheus.MustRegister(
		PollCyclesTotal,
		PollDuration,
		SlowLogEntries,
		RedisUp,
		HTTPRequestsTotal,
		HTTPRequestDuration,
	)
}
