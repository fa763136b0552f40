package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		paymentsTotal,
		paymentsRevenueTotal,
		paymentMirrorLagTotal,
		providerCallLatencyMs,
		reconcilerSweepsTotal,
	)
}

var (
	paymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_total",
			Help: "Payments by terminal status (done/canceled/partial_canceled/failed).",
		},
		[]string{"status"},
	)

	paymentsRevenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_revenue_total",
			Help: "Total monetary value of confirmed payments, labeled by currency.",
		},
		[]string{"currency"},
	)

	paymentMirrorLagTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_mirror_lag_total",
			Help: "Local persistence failures swallowed after a successful provider call.",
		},
		[]string{"operation"},
	)

	providerCallLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_provider_latency_ms",
			Help:    "Payment provider call latency in milliseconds.",
			Buckets: []float64{25, 50, 100, 200, 400, 800, 1600, 3000, 5000, 10000},
		},
		[]string{"operation", "success"},
	)

	reconcilerSweepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_reconciler_sweeps_total",
			Help: "Background reconciler outcomes per stale pending payment.",
		},
		[]string{"outcome"},
	)
)

func IncPayment(status string) {
	paymentsTotal.WithLabelValues(norm(status)).Inc()
}

func AddPaymentRevenue(currency string, amount int64) {
	paymentsRevenueTotal.WithLabelValues(norm(currency)).Add(float64(amount))
}

// IncMirrorLag counts a swallowed local write failure after provider success.
func IncMirrorLag(operation string) {
	paymentMirrorLagTotal.WithLabelValues(norm(operation)).Inc()
}

func ObserveProviderCall(operation string, ms float64, success bool) {
	providerCallLatencyMs.WithLabelValues(norm(operation), boolLabel(success)).Observe(ms)
}

func IncReconcilerSweep(outcome string) {
	reconcilerSweepsTotal.WithLabelValues(norm(outcome)).Inc()
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
