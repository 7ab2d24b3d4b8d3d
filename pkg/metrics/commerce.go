package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CommerceMetrics records purchase, payment, and escrow activity.
type CommerceMetrics struct {
	purchaseDuration *prometheus.HistogramVec
	purchases        *prometheus.CounterVec
	paymentOutcomes  *prometheus.CounterVec
	escrowReleases   prometheus.Counter
}

// NewCommerceMetrics registers the commerce metrics on the provided registerer.
func NewCommerceMetrics(reg prometheus.Registerer) *CommerceMetrics {
	if reg == nil {
		return &CommerceMetrics{}
	}
	purchaseDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "purchase_duration_seconds",
		Help:    "Duration of purchase orchestration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})
	purchases := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "purchases_total",
		Help: "Completed purchase orchestrations by payment method and result.",
	}, []string{"method", "result"})
	paymentOutcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_outcomes_total",
		Help: "Payment callback outcomes applied to orders.",
	}, []string{"outcome"})
	escrowReleases := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "escrow_releases_total",
		Help: "Escrow payouts released to sellers.",
	})
	reg.MustRegister(purchaseDuration, purchases, paymentOutcomes, escrowReleases)
	return &CommerceMetrics{
		purchaseDuration: purchaseDuration,
		purchases:        purchases,
		paymentOutcomes:  paymentOutcomes,
		escrowReleases:   escrowReleases,
	}
}

// ObservePurchaseDuration records how long a purchase orchestration took.
func (c *CommerceMetrics) ObservePurchaseDuration(method string, duration time.Duration) {
	if c == nil || c.purchaseDuration == nil {
		return
	}
	c.purchaseDuration.WithLabelValues(normalizeLabel(method)).Observe(duration.Seconds())
}

// IncPurchase counts a finished purchase orchestration.
func (c *CommerceMetrics) IncPurchase(method, result string) {
	if c == nil || c.purchases == nil {
		return
	}
	c.purchases.WithLabelValues(normalizeLabel(method), normalizeLabel(result)).Inc()
}

// IncPaymentOutcome counts an applied payment callback outcome.
func (c *CommerceMetrics) IncPaymentOutcome(outcome string) {
	if c == nil || c.paymentOutcomes == nil {
		return
	}
	c.paymentOutcomes.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncEscrowRelease counts a released escrow payout.
func (c *CommerceMetrics) IncEscrowRelease() {
	if c == nil || c.escrowReleases == nil {
		return
	}
	c.escrowReleases.Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
