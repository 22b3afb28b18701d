package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PaymentMetrics records payment gateway and webhook outcomes.
type PaymentMetrics struct {
	intents  *prometheus.CounterVec
	webhooks *prometheus.CounterVec
	refunds  *prometheus.CounterVec
}

// NewPaymentMetrics registers the payment metrics on the provided registerer.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	intents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_intents_total",
		Help: "Payment intents created, labeled by provider and outcome.",
	}, []string{"provider", "outcome"})
	webhooks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_webhooks_total",
		Help: "Provider webhook deliveries, labeled by provider and outcome.",
	}, []string{"provider", "outcome"})
	refunds := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_refunds_total",
		Help: "Refund attempts, labeled by provider and outcome.",
	}, []string{"provider", "outcome"})
	reg.MustRegister(intents, webhooks, refunds)
	return &PaymentMetrics{
		intents:  intents,
		webhooks: webhooks,
		refunds:  refunds,
	}
}

// IncIntent increments the intent counter for the provider/outcome pair.
func (m *PaymentMetrics) IncIntent(provider, outcome string) {
	if m == nil || m.intents == nil {
		return
	}
	m.intents.WithLabelValues(normalizeLabel(provider), normalizeLabel(outcome)).Inc()
}

// IncWebhook increments the webhook counter for the provider/outcome pair.
func (m *PaymentMetrics) IncWebhook(provider, outcome string) {
	if m == nil || m.webhooks == nil {
		return
	}
	m.webhooks.WithLabelValues(normalizeLabel(provider), normalizeLabel(outcome)).Inc()
}

// IncRefund increments the refund counter for the provider/outcome pair.
func (m *PaymentMetrics) IncRefund(provider, outcome string) {
	if m == nil || m.refunds == nil {
		return
	}
	m.refunds.WithLabelValues(normalizeLabel(provider), normalizeLabel(outcome)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
