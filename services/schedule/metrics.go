package schedule

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	phaseApply  = "apply"
	phaseRevert = "revert"
)

type Metrics struct {
	Transitions   *prometheus.CounterVec
	ItemMutations *prometheus.CounterVec
	Execution     *prometheus.HistogramVec
	DueSchedules  *prometheus.GaugeVec
}

// NewMetrics registers the executor metrics with reg. Pass
// prometheus.NewRegistry() in tests to avoid duplicate registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Transitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricing_schedule_transitions_total",
				Help: "Schedule status transitions, including ones lost to a concurrent worker (to=\"stale\")",
			},
			[]string{"from", "to"},
		),
		ItemMutations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricing_item_mutations_total",
				Help: "Catalog price mutations per line item",
			},
			[]string{"phase", "result"},
		),
		Execution: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pricing_schedule_execution_seconds",
				Help:    "Wall time of one apply or revert execution",
				Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"phase"},
		),
		DueSchedules: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pricing_schedules_due",
				Help: "Due schedules found by the last scheduler tick",
			},
			[]string{"phase"},
		),
	}
}
