package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the fulfillment counters exposed on /metrics.
type Registry struct {
	OrdersCreated     prometheus.Counter
	OrdersCancelled   *prometheus.CounterVec
	PaymentsCompleted prometheus.Counter
	OrdersDelivered   prometheus.Counter
	SweepRuns         prometheus.Counter
	SweepReclaimed    prometheus.Counter
	SweepErrors       prometheus.Counter
}

func New(service string) *Registry {
	r := &Registry{
		OrdersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fulfillment",
			Subsystem: service,
			Name:      "orders_created_total",
			Help:      "Total number of orders created.",
		}),
		OrdersCancelled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fulfillment",
			Subsystem: service,
			Name:      "orders_cancelled_total",
			Help:      "Total number of orders cancelled, by reason.",
		}, []string{"reason"}),
		PaymentsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fulfillment",
			Subsystem: service,
			Name:      "payments_completed_total",
			Help:      "Total number of payments completed.",
		}),
		OrdersDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fulfillment",
			Subsystem: service,
			Name:      "orders_delivered_total",
			Help:      "Total number of orders delivered via QR validation.",
		}),
		SweepRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fulfillment",
			Subsystem: service,
			Name:      "sweep_runs_total",
			Help:      "Total number of reservation expiry sweep runs.",
		}),
		SweepReclaimed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fulfillment",
			Subsystem: service,
			Name:      "sweep_reclaimed_total",
			Help:      "Total number of expired reservations reclaimed.",
		}),
		SweepErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fulfillment",
			Subsystem: service,
			Name:      "sweep_errors_total",
			Help:      "Total number of per-order failures during sweeps.",
		}),
	}
	prometheus.MustRegister(
		r.OrdersCreated, r.OrdersCancelled, r.PaymentsCompleted,
		r.OrdersDelivered, r.SweepRuns, r.SweepReclaimed, r.SweepErrors,
	)
	return r
}

func Handler() http.Handler {
	return promhttp.Handler()
}
