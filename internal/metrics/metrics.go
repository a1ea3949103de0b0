package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "plant_analyzer"

// Outcome labels for AnalysesTotal.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
)

// Rejection reasons for RejectedTotal.
const (
	ReasonBusy       = "busy"
	ReasonValidation = "validation"
)

// Metrics holds the analyzer collectors. Each instance registers on its own
// Registerer so tests can use a fresh registry.
type Metrics struct {
	// AnalysesTotal counts finished analyses by backend and outcome.
	AnalysesTotal *prometheus.CounterVec
	// AnalysisDurationSeconds is time from InProgress to a terminal state.
	AnalysisDurationSeconds *prometheus.HistogramVec
	// InFlight is 1 while an analysis is running.
	InFlight prometheus.Gauge
	// RejectedTotal counts submissions refused before a backend was called.
	RejectedTotal *prometheus.CounterVec
	// DegradedRepliesTotal counts model replies that carried no JSON object.
	DegradedRepliesTotal prometheus.Counter
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AnalysesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Total number of finished plant analyses, labeled by backend and outcome.",
		}, []string{"backend", "outcome"}),

		AnalysisDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Time from submission to a terminal state.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}, []string{"backend"}),

		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "in_flight",
			Help:      "Number of analyses currently in progress.",
		}),

		RejectedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejected_total",
			Help:      "Total number of submissions rejected before analysis, labeled by reason.",
		}, []string{"reason"}),

		DegradedRepliesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "degraded_replies_total",
			Help:      "Total number of model replies without a JSON object.",
		}),
	}

	reg.MustRegister(
		m.AnalysesTotal,
		m.AnalysisDurationSeconds,
		m.InFlight,
		m.RejectedTotal,
		m.DegradedRepliesTotal,
	)
	return m
}

// ObserveFinished records one terminal transition.
func (m *Metrics) ObserveFinished(backend, outcome string, elapsed time.Duration) {
	m.AnalysesTotal.WithLabelValues(backend, outcome).Inc()
	m.AnalysisDurationSeconds.WithLabelValues(backend).Observe(elapsed.Seconds())
}

// ObserveRejected records a refused submission.
func (m *Metrics) ObserveRejected(reason string) {
	m.RejectedTotal.WithLabelValues(reason).Inc()
}
