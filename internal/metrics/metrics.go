package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "booking_relay"

// Webhook outcomes.
const (
	OutcomeFiltered   = "filtered"
	OutcomeNoTokens   = "no_tokens"
	OutcomeDispatched = "dispatched"
	OutcomeFailed     = "failed"
)

// Metrics holds the relay's Prometheus collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	webhookEvents    *prometheus.CounterVec
	deliveries       *prometheus.CounterVec
	tokenExchanges   *prometheus.CounterVec
	contactSubmits   *prometheus.CounterVec
	dispatchDuration prometheus.Histogram
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		webhookEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_events_total",
			Help:      "Booking webhook calls by outcome.",
		}, []string{"outcome"}),
		deliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_deliveries_total",
			Help:      "Per-token push delivery attempts by result.",
		}, []string{"result"}),
		tokenExchanges: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_exchanges_total",
			Help:      "Service account assertion exchanges by result.",
		}, []string{"result"}),
		contactSubmits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "contact_submissions_total",
			Help:      "Contact form submissions by result.",
		}, []string{"result"}),
		dispatchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "Time for one fan-out to settle.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func (m *Metrics) WebhookEvent(outcome string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Delivery(success bool) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(result(success)).Inc()
}

func (m *Metrics) TokenExchange(success bool) {
	if m == nil {
		return
	}
	m.tokenExchanges.WithLabelValues(result(success)).Inc()
}

func (m *Metrics) ContactSubmission(success bool) {
	if m == nil {
		return
	}
	m.contactSubmits.WithLabelValues(result(success)).Inc()
}

func (m *Metrics) ObserveDispatch(d time.Duration) {
	if m == nil {
		return
	}
	m.dispatchDuration.Observe(d.Seconds())
}

func result(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
