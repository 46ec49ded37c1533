package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the appeal module.
type Metrics struct {
	Recorded   prometheus.Counter
	Duplicates prometheus.Counter
}

// New registers all appeal metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		Recorded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trafficase_appeals_recorded_total",
			Help: "Appeal records created",
		}),
		Duplicates: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trafficase_appeals_duplicate_submissions_total",
			Help: "Appeal submissions answered from a prior attempt",
		}),
	}
}
