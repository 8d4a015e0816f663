package intake

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the intake subsystem.
type Metrics struct {
	ChatTurnsTotal        prometheus.Counter
	TriageRunsTotal       *prometheus.CounterVec
	TriageDuration        *prometheus.HistogramVec
	TriageFallbacksTotal  prometheus.Counter
	LLMCallsTotal         *prometheus.CounterVec
	LLMPlaceholdersTotal  prometheus.Counter
	StoreRetriesTotal     prometheus.Counter
	SummaryRefreshesTotal *prometheus.CounterVec
}

// NewMetrics registers and returns intake metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ChatTurnsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "intake_chat_turns_total",
			Help: "Total chat turns served.",
		}),
		TriageRunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "intake_triage_runs_total",
			Help: "Total triage runs by strategy and recommendation.",
		}, []string{"strategy", "recommendation"}),
		TriageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "intake_triage_duration_seconds",
			Help:    "Duration of triage runs in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10), // 0.5s .. ~256s
		}, []string{"strategy"}),
		TriageFallbacksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "intake_triage_fallbacks_total",
			Help: "Durable strategy failures that fell back to the local strategy.",
		}),
		LLMCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "intake_llm_calls_total",
			Help: "Total generation calls by model tier and outcome.",
		}, []string{"tier", "outcome"}),
		LLMPlaceholdersTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "intake_llm_placeholders_total",
			Help: "Generations degraded to the fixed placeholder text.",
		}),
		StoreRetriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "intake_store_retries_total",
			Help: "Session store calls retried after a transient failure.",
		}),
		SummaryRefreshesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "intake_summary_refreshes_total",
			Help: "Background summary refreshes by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		m.ChatTurnsTotal,
		m.TriageRunsTotal,
		m.TriageDuration,
		m.TriageFallbacksTotal,
		m.LLMCallsTotal,
		m.LLMPlaceholdersTotal,
		m.StoreRetriesTotal,
		m.SummaryRefreshesTotal,
	)
	return m
}

// OrchestratorHooks returns hooks that record triage run metrics.
func (m *Metrics) OrchestratorHooks() OrchestratorHooks {
	return OrchestratorHooks{
		OnRun: func(strategy, recommendation string, seconds float64) {
			m.TriageRunsTotal.WithLabelValues(strategy, recommendation).Inc()
			m.TriageDuration.WithLabelValues(strategy).Observe(seconds)
		},
		OnFallback: func() {
			m.TriageFallbacksTotal.Inc()
		},
	}
}

// OnLLMCall records one generation attempt. fallback marks the second-tier
// model.
func (m *Metrics) OnLLMCall(_ string, fallback bool, err error) {
	tier := "primary"
	if fallback {
		tier = "fallback"
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.LLMCallsTotal.WithLabelValues(tier, outcome).Inc()
}

// OnSummaryRefresh records one background refresh outcome.
func (m *Metrics) OnSummaryRefresh(ok bool) {
	outcome := "success"
	if !ok {
		outcome = "error"
	}
	m.SummaryRefreshesTotal.WithLabelValues(outcome).Inc()
}
