// Package metrics exposes Prometheus instrumentation for tuning runs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/copyleftdev/cvtune/internal/hpt"
)

const namespace = "cvtune"

// Metrics holds the collectors of the tuning service.
type Metrics struct {
	evaluations   *prometheus.CounterVec
	errors        *prometheus.CounterVec
	replacements  *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	bestObjective *prometheus.GaugeVec
	jobs          *prometheus.GaugeVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	labels := []string{"learner", "optimizer"}
	m := &Metrics{
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Cross-validation evaluations performed.",
		}, labels),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluation_errors_total",
			Help:      "Cross-validation evaluations that failed.",
		}, labels),
		replacements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "best_model_replacements_total",
			Help:      "Times a strictly better model replaced the stored best.",
		}, labels),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "evaluation_duration_seconds",
			Help:      "Time spent training and scoring one argument list.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, labels),
		bestObjective: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "best_objective",
			Help:      "Best cross-validation score of a tuning job.",
		}, []string{"job"}),
		jobs: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs",
			Help:      "Tuning jobs by status.",
		}, []string{"status"}),
	}

	for _, c := range []prometheus.Collector{
		m.evaluations, m.errors, m.replacements, m.duration, m.bestObjective, m.jobs,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Observe returns an observer that records the trials of one job.
func (m *Metrics) Observe(job, learner, optimizer string) hpt.Observer {
	evaluations := m.evaluations.WithLabelValues(learner, optimizer)
	failures := m.errors.WithLabelValues(learner, optimizer)
	replacements := m.replacements.WithLabelValues(learner, optimizer)
	duration := m.duration.WithLabelValues(learner, optimizer)
	best := m.bestObjective.WithLabelValues(job)

	return func(t hpt.Trial) {
		evaluations.Inc()
		duration.Observe(t.Duration.Seconds())
		if t.Err != nil {
			failures.Inc()
			return
		}
		if t.Improved {
			replacements.Inc()
			best.Set(t.Objective)
		}
	}
}

// JobStatusChanged moves a job from one status gauge to another. An empty
// from means the job is new.
func (m *Metrics) JobStatusChanged(from, to string) {
	if from != "" {
		m.jobs.WithLabelValues(from).Dec()
	}
	m.jobs.WithLabelValues(to).Inc()
}

// Forget drops the per-job series of a finished job.
func (m *Metrics) Forget(job string) {
	m.bestObjective.DeleteLabelValues(job)
}
