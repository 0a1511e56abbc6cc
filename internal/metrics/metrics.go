package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all the Prometheus metrics for the pandemus API
type Metrics struct {
	SimulationsCreated  prometheus.Counter
	SimulationsDeleted  prometheus.Counter
	ValidationFailures  prometheus.Counter
	NatsPublishErrors   prometheus.Counter
	ScenarioRuns        *prometheus.CounterVec
	ScenarioRunDuration prometheus.Histogram
}

// NewMetrics creates the metrics and registers them on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SimulationsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "simulations_created_total",
			Help: "Total number of simulations stored",
		}),
		SimulationsDeleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "simulations_deleted_total",
			Help: "Total number of simulations deleted",
		}),
		ValidationFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "validation_failures_total",
			Help: "Total number of rejected request bodies",
		}),
		NatsPublishErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "nats_publish_errors_total",
			Help: "Total number of NATS publish errors",
		}),
		ScenarioRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scenario_runs_total",
			Help: "Total number of scenarios computed, by profile and measure",
		}, []string{"profile", "measure"}),
		ScenarioRunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "scenario_run_seconds",
			Help:    "Time spent computing a scenario",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 8),
		}),
	}
}

// IncrementCreated increments the simulations_created_total counter
func (m *Metrics) IncrementCreated() {
	m.SimulationsCreated.Inc()
}

// IncrementDeleted increments the simulations_deleted_total counter
func (m *Metrics) IncrementDeleted() {
	m.SimulationsDeleted.Inc()
}

// IncrementValidationFailures increments the validation_failures_total counter
func (m *Metrics) IncrementValidationFailures() {
	m.ValidationFailures.Inc()
}

// IncrementNatsPublishErrors increments the nats_publish_errors_total counter
func (m *Metrics) IncrementNatsPublishErrors() {
	m.NatsPublishErrors.Inc()
}

// ObserveScenarioRun records one scenario computation
func (m *Metrics) ObserveScenarioRun(profile, measure string, seconds float64) {
	m.ScenarioRuns.WithLabelValues(profile, measure).Inc()
	m.ScenarioRunDuration.Observe(seconds)
}
