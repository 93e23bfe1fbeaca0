package observe

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is an Observer backed by Prometheus collectors.
type Metrics struct {
	attempts     *prometheus.CounterVec
	remediations *prometheus.CounterVec
	degraded     *prometheus.CounterVec
	events       *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	dagQuality   *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "traverse",
			Name:      "attempts_total",
			Help:      "Graded attempts by resulting status.",
		}, []string{"status"}),
		remediations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "traverse",
			Name:      "remediations_total",
			Help:      "Remediation interventions by outcome.",
		}, []string{"outcome"}),
		degraded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "traverse",
			Name:      "gateway_degraded_total",
			Help:      "Content gateway calls answered with a fallback value.",
		}, []string{"op", "reason"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "traverse",
			Name:      "events_total",
			Help:      "Domain events by name.",
		}, []string{"event"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "traverse",
			Name:      "operation_duration_seconds",
			Help:      "Operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op", "outcome"}),
		dagQuality: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "traverse",
			Name:      "dag_quality_score",
			Help:      "Judged quality of generated learning paths, 0-1.",
			Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
		}, []string{"judged"}),
	}
	for _, c := range []prometheus.Collector{m.attempts, m.remediations, m.degraded, m.events, m.duration, m.dagQuality} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) Start(ctx context.Context, op string, _ ...Attr) (context.Context, Finish) {
	start := time.Now()
	return ctx, func(err error) {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		m.duration.WithLabelValues(op, outcome).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) Event(_ context.Context, name string, attrs ...Attr) {
	m.events.WithLabelValues(name).Inc()
	switch name {
	case EventAttemptRecorded:
		m.attempts.WithLabelValues(Lookup(attrs, "status")).Inc()
	case EventRemediationApplied:
		m.remediations.WithLabelValues("applied").Inc()
	case EventRemediationAbandon:
		m.remediations.WithLabelValues("abandoned").Inc()
	case EventGatewayDegraded:
		m.degraded.WithLabelValues(Lookup(attrs, "op"), Lookup(attrs, "reason")).Inc()
	case EventDagQuality:
		// Fallback scores are kept apart so they do not skew the judged ones.
		if score, ok := LookupFloat(attrs, "score"); ok {
			judged := "true"
			if Lookup(attrs, "fallback") == "true" {
				judged = "false"
			}
			m.dagQuality.WithLabelValues(judged).Observe(score)
		}
	}
}
