package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the offense module.
type Metrics struct {
	Recorded   prometheus.Counter
	Duplicates prometheus.Counter
	CacheHits  prometheus.Counter
}

// New registers all offense metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		Recorded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trafficase_offenses_recorded_total",
			Help: "Offense records created",
		}),
		Duplicates: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trafficase_offenses_duplicate_submissions_total",
			Help: "Offense submissions answered from a prior attempt",
		}),
		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trafficase_offenses_cache_hits_total",
			Help: "Offense reads served from the cache",
		}),
	}
}
