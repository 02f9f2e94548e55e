package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// CommandsPublished counts relay publishes by topic segment and outcome.
	CommandsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agrisight_commands_published_total",
			Help: "Total number of commands published to the broker.",
		},
		[]string{"segment", "status"}, // segment: run/cmd/zone_action, status: success/failed
	)

	// IngestRequests counts observation ingest calls by outcome.
	IngestRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agrisight_ingest_requests_total",
			Help: "Total number of observation ingest requests.",
		},
		[]string{"status"}, // success/client_error/failed
	)

	// CompletionLatency tracks per-call latency against the completion endpoint.
	CompletionLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "agrisight_completion_latency_seconds",
			Help:    "Latency of single completion-endpoint calls.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		},
	)

	// AnalysisRuns counts whole-cycle analysis attempts by outcome.
	AnalysisRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agrisight_analysis_runs_total",
			Help: "Total number of cycle analysis attempts.",
		},
		[]string{"status"}, // success/failed
	)
)

func init() {
	prometheus.MustRegister(CommandsPublished)
	prometheus.MustRegister(IngestRequests)
	prometheus.MustRegister(CompletionLatency)
	prometheus.MustRegister(AnalysisRuns)
}
