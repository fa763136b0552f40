package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		analysisRequestsTotal,
		analysisLatencyMs,
		analysisUploadBytes,
	)
}

var (
	analysisRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analysis_requests_total",
			Help: "Image analysis requests by outcome (success or error code).",
		},
		[]string{"outcome"},
	)

	analysisLatencyMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "analysis_latency_ms",
			Help:    "End-to-end analysis webhook latency in milliseconds.",
			Buckets: []float64{250, 500, 1000, 2500, 5000, 10000, 30000, 60000, 120000},
		},
	)

	analysisUploadBytes = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "analysis_upload_bytes",
			Help:    "Size distribution of accepted meal images.",
			Buckets: prometheus.ExponentialBuckets(32*1024, 2, 8),
		},
	)
)

func IncAnalysis(outcome string) {
	analysisRequestsTotal.WithLabelValues(norm(outcome)).Inc()
}

func ObserveAnalysisLatency(ms float64) {
	analysisLatencyMs.Observe(ms)
}

func ObserveUploadSize(bytes int64) {
	analysisUploadBytes.Observe(float64(bytes))
}
