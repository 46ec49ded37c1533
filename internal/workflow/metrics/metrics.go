package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the workflow coordinator.
type Metrics struct {
	Transitions *prometheus.CounterVec
	Rejections  *prometheus.CounterVec
	NotFound    prometheus.Counter
}

// New registers all workflow metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "trafficase_workflow_transitions_total",
			Help: "Accepted lifecycle transitions",
		}, []string{"kind", "event"}),
		Rejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "trafficase_workflow_rejections_total",
			Help: "Events rejected because no transition is defined",
		}, []string{"kind", "event"}),
		NotFound: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trafficase_workflow_entity_not_found_total",
			Help: "Trigger attempts against missing entities",
		}),
	}
}
