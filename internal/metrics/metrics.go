// Package metrics registers the Prometheus collectors for guardrail
// evaluation, the engine, model calls and duplicate checks.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	GuardrailEvaluations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "joti_guardrail_evaluations_total",
			Help: "Guardrail evaluations by category, direction and result",
		},
		[]string{"category", "direction", "result"},
	)

	GuardrailEvaluationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "joti_guardrail_evaluation_duration_seconds",
			Help:    "Time spent evaluating one guardrail",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		},
		[]string{"category"},
	)

	EngineOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "joti_engine_outcomes_total",
			Help: "Terminal engine states by GenAI function",
		},
		[]string{"function", "state"},
	)

	EngineFixRetries = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "joti_engine_fix_retries",
			Help:    "Fix-and-revalidate rounds per request",
			Buckets: []float64{0, 1, 2, 3, 5, 8},
		},
	)

	ModelCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "joti_model_calls_total",
			Help: "Model provider calls by provider and result",
		},
		[]string{"provider", "result"},
	)

	ModelCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "joti_model_call_duration_seconds",
			Help:    "Model provider call latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	DuplicateChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "joti_duplicate_checks_total",
			Help: "Duplicate checks by verdict",
		},
		[]string{"result"},
	)

	CandidateCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "joti_duplicate_candidate_cache_total",
			Help: "Candidate window cache lookups by outcome",
		},
		[]string{"outcome"},
	)
)

// RecordEvaluation records one guardrail evaluation.
func RecordEvaluation(category, direction string, passed bool, duration time.Duration) {
	result := "fail"
	if passed {
		result = "pass"
	}
	GuardrailEvaluations.WithLabelValues(category, direction, result).Inc()
	GuardrailEvaluationDuration.WithLabelValues(category).Observe(duration.Seconds())
}

// RecordOutcome records a terminal engine state and its fix rounds.
func RecordOutcome(function, state string, retries int) {
	EngineOutcomes.WithLabelValues(function, state).Inc()
	EngineFixRetries.Observe(float64(retries))
}

// RecordModelCall records one provider attempt.
func RecordModelCall(provider string, err error, duration time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	ModelCalls.WithLabelValues(provider, result).Inc()
	ModelCallDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

func RecordDuplicateCheck(duplicate bool) {
	result := "unique"
	if duplicate {
		result = "duplicate"
	}
	DuplicateChecks.WithLabelValues(result).Inc()
}

// RecordCacheLookup records a candidate cache hit, miss or error.
func RecordCacheLookup(outcome string) {
	CandidateCache.WithLabelValues(outcome).Inc()
}
