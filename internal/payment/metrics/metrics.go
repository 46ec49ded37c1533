package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the payment module.
type Metrics struct {
	Recorded       prometheus.Counter
	Duplicates     prometheus.Counter
	AmountSettled  prometheus.Counter
}

// New registers all payment metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		Recorded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trafficase_payments_recorded_total",
			Help: "Payment records created",
		}),
		Duplicates: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trafficase_payments_duplicate_submissions_total",
			Help: "Payment submissions answered from a prior attempt",
		}),
		AmountSettled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trafficase_payments_amount_settled_cents_total",
			Help: "Total settled amount in cents",
		}),
	}
}
