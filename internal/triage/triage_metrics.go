package triage

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the triage subsystem.
type Metrics struct {
	DecisionsTotal   *prometheus.CounterVec
	DecisionDuration *prometheus.HistogramVec
	Confidence       prometheus.Histogram
	RuleFirings      *prometheus.CounterVec
	ModelCallsTotal  *prometheus.CounterVec
	ModelDuration    prometheus.Histogram
	EscalationsTotal prometheus.Counter
	FailSafesTotal   prometheus.Counter
	SubmitsTotal     *prometheus.CounterVec
}

// NewMetrics registers and returns triage metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		DecisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "acuity_decisions_total",
			Help: "Total triage decisions by path and risk level.",
		}, []string{"path", "risk"}),
		DecisionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "acuity_decision_duration_seconds",
			Help:    "End-to-end decision latency in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms .. ~4s
		}, []string{"path"}),
		Confidence: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "acuity_decision_confidence",
			Help:    "Reported confidence per decision.",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11), // 0 .. 1
		}),
		RuleFirings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "acuity_rule_firings_total",
			Help: "Safety rule firings by rule name.",
		}, []string{"rule"}),
		ModelCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "acuity_model_calls_total",
			Help: "Classifier calls by model and status.",
		}, []string{"model", "status"}),
		ModelDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "acuity_model_call_duration_seconds",
			Help:    "Duration of classifier calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms .. ~4s
		}),
		EscalationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "acuity_escalations_total",
			Help: "Low-confidence decisions raised one risk step.",
		}),
		FailSafesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "acuity_failsafes_total",
			Help: "Decisions that fell back to the fail-safe outcome.",
		}),
		SubmitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "acuity_submits_total",
			Help: "Triage submissions by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(
		m.DecisionsTotal,
		m.DecisionDuration,
		m.Confidence,
		m.RuleFirings,
		m.ModelCallsTotal,
		m.ModelDuration,
		m.EscalationsTotal,
		m.FailSafesTotal,
		m.SubmitsTotal,
	)

	return m
}

// Hooks returns an EngineHooks that increments the corresponding metrics.
func (m *Metrics) Hooks() EngineHooks {
	return EngineHooks{
		OnRuleFired: func(rule string) {
			m.RuleFirings.WithLabelValues(rule).Inc()
		},
		OnModelCall: func(model string, duration float64, err error) {
			status := "success"
			if err != nil {
				status = "error"
			}
			m.ModelCallsTotal.WithLabelValues(model, status).Inc()
			m.ModelDuration.Observe(duration)
		},
		OnEscalation: func(from, to RiskLevel) {
			m.EscalationsTotal.Inc()
		},
		OnDecision: func(e *DecisionEvent) {
			m.DecisionsTotal.WithLabelValues(string(e.Path), string(e.Risk)).Inc()
			m.DecisionDuration.WithLabelValues(string(e.Path)).Observe(e.Duration)
			m.Confidence.Observe(e.Confidence)
			if e.FailSafe {
				m.FailSafesTotal.Inc()
			}
		},
	}
}
