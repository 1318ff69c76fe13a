package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the service's Prometheus collectors. A nil *Registry is valid
// and records nothing.
type Registry struct {
	reg             *prometheus.Registry
	WebhookResults  *prometheus.CounterVec
	Transitions     *prometheus.CounterVec
	CheckoutResults *prometheus.CounterVec
	Duplicates      prometheus.Counter
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	webhookResults := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sellapp_webhook_results_total",
		Help: "Webhook deliveries by HTTP response code.",
	}, []string{"code"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sellapp_order_transitions_total",
		Help: "Order transitions applied from verified charge statuses.",
	}, []string{"transition"})
	checkoutResults := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sellapp_checkout_results_total",
		Help: "Payment session initiations by result and failure kind.",
	}, []string{"result"})
	duplicates := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sellapp_webhook_duplicates_total",
		Help: "Webhook deliveries acknowledged without re-applying a transition.",
	})

	r.MustRegister(webhookResults, transitions, checkoutResults, duplicates)
	return &Registry{
		reg:             r,
		WebhookResults:  webhookResults,
		Transitions:     transitions,
		CheckoutResults: checkoutResults,
		Duplicates:      duplicates,
	}
}

func (r *Registry) ObserveWebhook(code int) {
	if r == nil {
		return
	}
	r.WebhookResults.WithLabelValues(strconv.Itoa(code)).Inc()
}

func (r *Registry) ObserveTransition(kind string) {
	if r == nil {
		return
	}
	r.Transitions.WithLabelValues(kind).Inc()
}

func (r *Registry) ObserveCheckout(result string) {
	if r == nil {
		return
	}
	r.CheckoutResults.WithLabelValues(result).Inc()
}

func (r *Registry) ObserveDuplicate() {
	if r == nil {
		return
	}
	r.Duplicates.Inc()
}

// Handler serves the registry in the Prometheus text format. A nil Registry
// serves an empty one.
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
