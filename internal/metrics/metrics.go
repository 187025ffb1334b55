package metrics

import (
	"go-batch-harness/internal/models"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the harness collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	outcomes  *prometheus.CounterVec
	orphans   prometheus.Counter
	executing prometheus.Gauge
	unitTime  *prometheus.HistogramVec
	batches   *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		outcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harness_unit_outcomes_total",
				Help: "Total number of work unit outcomes by kind.",
			},
			[]string{"kind"},
		),
		orphans: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "harness_unit_orphans_total",
			Help: "Work units reported while possibly still running.",
		}),
		executing: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "harness_batch_executing",
			Help: "1 while a batch is in flight, 0 otherwise.",
		}),
		unitTime: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "harness_unit_duration_seconds",
				Help:    "Time until a work unit's outcome was decided.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		batches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harness_batches_total",
				Help: "Total number of settled batches by result.",
			},
			[]string{"result"},
		),
	}
	reg.MustRegister(m.outcomes, m.orphans, m.executing, m.unitTime, m.batches)
	return m
}

func (m *Metrics) ObserveOutcome(o models.Outcome) {
	if m == nil {
		return
	}
	kind := o.Kind.String()
	m.outcomes.WithLabelValues(kind).Inc()
	m.unitTime.WithLabelValues(kind).Observe(o.Elapsed.Seconds())
	if o.Orphaned {
		m.orphans.Inc()
	}
}

func (m *Metrics) SetExecuting(executing bool) {
	if m == nil {
		return
	}
	if executing {
		m.executing.Set(1)
		return
	}
	m.executing.Set(0)
}

// BatchSettled counts a finished batch; err is the orchestration error, if any.
func (m *Metrics) BatchSettled(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.batches.WithLabelValues(result).Inc()
}
