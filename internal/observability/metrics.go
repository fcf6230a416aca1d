package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	runTotal    *prometheus.CounterVec
	runDuration *prometheus.HistogramVec
	runAborts   *prometheus.CounterVec

	turnTotal     *prometheus.CounterVec
	turnDuration  *prometheus.HistogramVec
	planRevisions *prometheus.CounterVec

	executorAttempts *prometheus.CounterVec
	circuitOpen      *prometheus.GaugeVec

	memoryPersistDuration *prometheus.HistogramVec
	llmCallDuration       *prometheus.HistogramVec
	llmErrorsTotal        *prometheus.CounterVec
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			runTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "session_runs_total",
					Help: "Total orchestrated runs by team and final status.",
				},
				[]string{"team", "status"},
			),
			runDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "session_run_duration_seconds",
					Help:    "Run duration in seconds by team.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"team"},
			),
			runAborts: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "session_run_aborts_total",
					Help: "Runs terminated by an abort signal, by role.",
				},
				[]string{"role"},
			),
			turnTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "session_turns_total",
					Help: "Total executed turns by role and status.",
				},
				[]string{"role", "status"},
			),
			turnDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "session_turn_duration_seconds",
					Help:    "Turn duration in seconds by role.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"role"},
			),
			planRevisions: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "session_plan_revisions_total",
					Help: "Plan revisions inserted by reason.",
				},
				[]string{"reason"},
			),
			executorAttempts: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "executor_attempts_total",
					Help: "Component executor attempts by component and outcome.",
				},
				[]string{"component", "outcome"},
			),
			circuitOpen: prometheus.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "executor_circuit_open",
					Help: "Whether the circuit breaker for a component is open (1) or closed (0).",
				},
				[]string{"component"},
			),
			memoryPersistDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "memory_persist_duration_seconds",
					Help:    "Case memory persist duration in seconds by backend.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"backend"},
			),
			llmCallDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "llm_call_duration_seconds",
					Help:    "Completion call duration in seconds by provider.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"provider"},
			),
			llmErrorsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "llm_errors_total",
					Help: "Completion call failures by provider.",
				},
				[]string{"provider"},
			),
		}

		prometheus.MustRegister(
			m.runTotal,
			m.runDuration,
			m.runAborts,
			m.turnTotal,
			m.turnDuration,
			m.planRevisions,
			m.executorAttempts,
			m.circuitOpen,
			m.memoryPersistDuration,
			m.llmCallDuration,
			m.llmErrorsTotal,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func RecordRun(team, status string, duration time.Duration) {
	m := getMetrics()
	m.runTotal.WithLabelValues(team, status).Inc()
	m.runDuration.WithLabelValues(team).Observe(duration.Seconds())
}

func RecordRunAbort(role string) {
	m := getMetrics()
	m.runAborts.WithLabelValues(role).Inc()
}

func RecordTurn(role string, duration time.Duration, success bool) {
	m := getMetrics()
	status := "failed"
	if success {
		status = "success"
	}
	m.turnTotal.WithLabelValues(role, status).Inc()
	m.turnDuration.WithLabelValues(role).Observe(duration.Seconds())
}

func RecordPlanRevision(reason string) {
	m := getMetrics()
	m.planRevisions.WithLabelValues(reason).Inc()
}

// RecordExecutorAttempt counts one attempt. Outcome is success, retry, partial, abort or exception.
func RecordExecutorAttempt(component, outcome string) {
	m := getMetrics()
	m.executorAttempts.WithLabelValues(component, outcome).Inc()
}

func SetCircuitOpen(component string, open bool) {
	m := getMetrics()
	value := 0.0
	if open {
		value = 1.0
	}
	m.circuitOpen.WithLabelValues(component).Set(value)
}

func RecordMemoryPersist(backend string, duration time.Duration) {
	m := getMetrics()
	m.memoryPersistDuration.WithLabelValues(backend).Observe(duration.Seconds())
}

func RecordLLMCall(provider string, duration time.Duration, success bool) {
	m := getMetrics()
	m.llmCallDuration.WithLabelValues(provider).Observe(duration.Seconds())
	if !success {
		m.llmErrorsTotal.WithLabelValues(provider).Inc()
	}
}
