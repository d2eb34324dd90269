package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// AssignmentMetrics tracks order assignment decisions.
type AssignmentMetrics struct {
	outcomes   *prometheus.CounterVec
	fallbacks  prometheus.Counter
	candidates prometheus.Histogram
	duration   *prometheus.HistogramVec
}

// NewAssignmentMetrics registers the assignment metrics on reg. A nil
// registerer yields a recorder that drops every observation.
func NewAssignmentMetrics(reg prometheus.Registerer) *AssignmentMetrics {
	if reg == nil {
		return &AssignmentMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orderdesk_assignment_outcomes_total",
		Help: "Processed orders by outcome and reason.",
	}, []string{"outcome", "reason"})
	fallbacks := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orderdesk_assignment_fallback_total",
		Help: "Orders assigned from the full roster because no agent satisfied the product constraints.",
	})
	candidates := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "orderdesk_assignment_candidates",
		Help:    "Size of the eligible candidate set per decision.",
		Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 21, 34},
	})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "orderdesk_assignment_batch_duration_seconds",
		Help:    "Duration of an ingest batch in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"trigger"})
	reg.MustRegister(outcomes, fallbacks, candidates, duration)
	return &AssignmentMetrics{
		outcomes:   outcomes,
		fallbacks:  fallbacks,
		candidates: candidates,
		duration:   duration,
	}
}

// IncOutcome counts one processed order.
func (m *AssignmentMetrics) IncOutcome(outcome, reason string) {
	if m == nil || m.outcomes == nil {
		return
	}
	m.outcomes.WithLabelValues(normalizeLabel(outcome), normalizeLabel(reason)).Inc()
}

// IncFallback counts an assignment that ignored product constraints.
func (m *AssignmentMetrics) IncFallback() {
	if m == nil || m.fallbacks == nil {
		return
	}
	m.fallbacks.Inc()
}

// ObserveCandidates records the eligible set size of one decision.
func (m *AssignmentMetrics) ObserveCandidates(n int) {
	if m == nil || m.candidates == nil {
		return
	}
	m.candidates.Observe(float64(n))
}

// ObserveBatch records how long a batch took for the given trigger.
func (m *AssignmentMetrics) ObserveBatch(trigger string, d time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(trigger)).Observe(d.Seconds())
}
