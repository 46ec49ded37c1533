package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the idempotency guard and reaper.
type Metrics struct {
	Admitted       prometheus.Counter
	Duplicates     prometheus.Counter
	FailedRetries  prometheus.Counter
	MarkedFailed   prometheus.Counter
	ReapedEntries  prometheus.Counter
	MissingOnMark  prometheus.Counter
}

// New registers all idempotency metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		Admitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trafficase_idempotency_admitted_total",
			Help: "Mutations admitted by the idempotency guard",
		}),
		Duplicates: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trafficase_idempotency_duplicates_total",
			Help: "Mutations short-circuited as duplicates",
		}),
		FailedRetries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trafficase_idempotency_failed_retries_total",
			Help: "FAILED ledger entries re-admitted under the retry policy",
		}),
		MarkedFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trafficase_idempotency_marked_failed_total",
			Help: "Ledger entries marked FAILED after a write error",
		}),
		ReapedEntries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trafficase_idempotency_reaped_total",
			Help: "Stuck PROCESSING entries failed by the lease reaper",
		}),
		MissingOnMark: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trafficase_idempotency_missing_on_mark_total",
			Help: "mark-success/failure calls that found no ledger entry",
		}),
	}
}
