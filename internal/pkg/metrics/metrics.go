package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Billing exposes Prometheus collectors for checkout, webhook and
// cancellation activity. A nil *Billing is a valid no-op recorder.
type Billing struct {
	webhooks      *prometheus.CounterVec
	checkouts     *prometheus.CounterVec
	cancellations *prometheus.CounterVec
}

// MustNewBilling registers the billing collectors on reg. Registering twice on
// the same registry reuses the existing collectors.
func MustNewBilling(reg prometheus.Registerer) *Billing {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	webhooks := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cognifox",
			Subsystem: "billing",
			Name:      "webhook_events_total",
			Help:      "Webhook deliveries by event type and outcome.",
		},
		[]string{"event_type", "outcome"},
	)
	checkouts := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cognifox",
			Subsystem: "billing",
			Name:      "checkout_sessions_total",
			Help:      "Checkout session requests by result.",
		},
		[]string{"result"},
	)
	cancellations := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cognifox",
			Subsystem: "billing",
			Name:      "cancellations_total",
			Help:      "Account cancellations by result.",
		},
		[]string{"result"},
	)

	return &Billing{
		webhooks:      register(reg, webhooks),
		checkouts:     register(reg, checkouts),
		cancellations: register(reg, cancellations),
	}
}

func register(reg prometheus.Registerer, c *prometheus.CounterVec) *prometheus.CounterVec {
	if err := reg.Register(c); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return already.ExistingCollector.(*prometheus.CounterVec)
		}
		panic(err)
	}
	return c
}

func (m *Billing) WebhookHandled(eventType, outcome string) {
	if m == nil {
		return
	}
	if eventType == "" {
		eventType = "unknown"
	}
	m.webhooks.WithLabelValues(eventType, outcome).Inc()
}

func (m *Billing) CheckoutCreated(err error) {
	if m == nil {
		return
	}
	m.checkouts.WithLabelValues(result(err)).Inc()
}

func (m *Billing) CancellationFinished(err error) {
	if m == nil {
		return
	}
	m.cancellations.WithLabelValues(result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Handler serves the given gatherer in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
