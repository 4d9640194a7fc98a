package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics instruments the form engine. Every method is safe on a nil
// receiver so forms without instrumentation pay nothing.
type Metrics struct {
	Validations        *prometheus.CounterVec
	StaleResults       prometheus.Counter
	Submits            *prometheus.CounterVec
	ValidationDuration prometheus.Histogram
}

// New creates the collectors and registers them with reg. A nil registerer
// creates unregistered collectors, which is what tests and short lived
// forms usually want.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Validations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "form2_field_validations_total",
			Help: "Field validations applied to field state, by result",
		}, []string{"result"}),
		StaleResults: factory.NewCounter(prometheus.CounterOpts{
			Name: "form2_stale_validation_results_total",
			Help: "Validation results discarded because the field value changed while validating",
		}),
		Submits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "form2_submits_total",
			Help: "Form submissions, by outcome",
		}, []string{"outcome"}),
		ValidationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "form2_field_validation_duration_seconds",
			Help:    "Duration of a field rule chain including async validators",
			Buckets: []float64{0.0001, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
	}
}

// ObserveValidation records an applied validation result.
// Call with time.Now() taken before the rule chain started.
func (m *Metrics) ObserveValidation(start time.Time, valid bool) {
	if m == nil {
		return
	}
	result := "invalid"
	if valid {
		result = "valid"
	}
	m.Validations.WithLabelValues(result).Inc()
	m.ValidationDuration.Observe(time.Since(start).Seconds())
}

// IncrementStale records a discarded validation result.
func (m *Metrics) IncrementStale() {
	if m == nil {
		return
	}
	m.StaleResults.Inc()
}

// IncrementSubmit records a submission outcome.
func (m *Metrics) IncrementSubmit(ok bool) {
	if m == nil {
		return
	}
	outcome := "failed"
	if ok {
		outcome = "finished"
	}
	m.Submits.WithLabelValues(outcome).Inc()
}
