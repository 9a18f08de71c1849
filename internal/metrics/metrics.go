// Package metrics registers the Prometheus collectors exported by the
// service at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ExtractionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "studyowl",
		Subsystem: "extraction",
		Name:      "duration_seconds",
		Help:      "Time spent extracting text from uploaded documents.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"file_type"})

	ExtractionFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "studyowl",
		Subsystem: "extraction",
		Name:      "failures_total",
		Help:      "Extraction failures by file type.",
	}, []string{"file_type"})

	AICallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "studyowl",
		Subsystem: "ai",
		Name:      "call_duration_seconds",
		Help:      "Latency of AI provider calls.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"provider", "operation"})

	AICallErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "studyowl",
		Subsystem: "ai",
		Name:      "call_errors_total",
		Help:      "AI provider call failures by error kind.",
	}, []string{"provider", "operation", "kind"})

	ReviewSessionsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "studyowl",
		Subsystem: "review",
		Name:      "sessions_completed_total",
		Help:      "Review sessions run to completion.",
	})

	QuestionsGenerated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "studyowl",
		Subsystem: "quiz",
		Name:      "questions_generated_total",
		Help:      "Questions generated from knowledge base content.",
	})

	AnswersEvaluated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "studyowl",
		Subsystem: "quiz",
		Name:      "answers_evaluated_total",
		Help:      "Answers evaluated and persisted.",
	})
)
