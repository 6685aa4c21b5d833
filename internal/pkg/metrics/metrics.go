package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for payroll calculations.
type Metrics struct {
	// Single-staff calculation outcomes
	CalculationOutcome *prometheus.CounterVec

	// Per-staff results inside batches
	BatchStaffOutcome *prometheus.CounterVec

	// Wall-clock duration of whole batches
	BatchDuration prometheus.Histogram
}

// New registers the payroll metrics with reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		CalculationOutcome: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "payroll_calculations_total",
			Help: "Total payroll calculations by outcome",
		}, []string{"outcome"}), // outcome: "success", "validation", "data_unavailable", "configuration", "error"

		BatchStaffOutcome: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "payroll_batch_staff_total",
			Help: "Staff members processed by batch runs, by result",
		}, []string{"result"}), // result: "succeeded", "failed"

		BatchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "payroll_batch_duration_seconds",
			Help:    "Duration of batch payroll runs",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
	}
}

// IncrementOutcome records one calculation outcome.
func (m *Metrics) IncrementOutcome(outcome string) {
	if m != nil {
		m.CalculationOutcome.WithLabelValues(outcome).Inc()
	}
}

// ObserveBatch records the duration and per-staff counts of a finished batch.
func (m *Metrics) ObserveBatch(d time.Duration, succeeded, failed int) {
	if m == nil {
		return
	}
	m.BatchDuration.Observe(d.Seconds())
	m.BatchStaffOutcome.WithLabelValues("succeeded").Add(float64(succeeded))
	m.BatchStaffOutcome.WithLabelValues("failed").Add(float64(failed))
}
