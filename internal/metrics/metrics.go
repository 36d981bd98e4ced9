package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datasen_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "datasen_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	AsksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datasen_asks_total",
			Help: "Total number of asks by outcome.",
		},
		[]string{"status"},
	)

	AskDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "datasen_ask_duration_seconds",
			Help:    "End-to-end ask duration in seconds, including the model call.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	ContextTrimmedTurnsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "datasen_context_trimmed_turns_total",
			Help: "Turns dropped from prompts to fit the context budget.",
		},
	)

	DatasetsLoadedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datasen_datasets_loaded_total",
			Help: "Datasets summarized, by format.",
		},
		[]string{"format"},
	)

	SessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "datasen_sessions_active",
			Help: "Number of live assistant sessions.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		AsksTotal,
		AskDuration,
		ContextTrimmedTurnsTotal,
		DatasetsLoadedTotal,
		SessionsActive,
	)
}
