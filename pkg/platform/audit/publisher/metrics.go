package publisher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the audit pipeline.
type Metrics struct {
	Emitted        prometheus.Counter
	Published      prometheus.Counter
	PublishRetries prometheus.Counter
	DeadLettered   prometheus.Counter
}

// NewMetrics registers all audit metrics on the default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		Emitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trafficase_audit_emitted_total",
			Help: "Audit events emitted by domain logic",
		}),
		Published: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trafficase_audit_published_total",
			Help: "Audit events delivered to the sink",
		}),
		PublishRetries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trafficase_audit_publish_retries_total",
			Help: "Failed sink publishes that were retried",
		}),
		DeadLettered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trafficase_audit_dead_lettered_total",
			Help: "Audit events that exhausted their delivery attempts",
		}),
	}
}
