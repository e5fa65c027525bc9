package historyquiz

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	GenerationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_generations_total",
			Help: "Total number of question generation runs",
		},
		[]string{"provider", "outcome"},
	)

	GenerationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quiz_generation_duration_seconds",
			Help:    "Duration of question generation runs",
			Buckets: []float64{1, 5, 10, 30, 60, 120},
		},
		[]string{"provider"},
	)

	SubmissionCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quiz_submissions_total",
			Help: "Total number of submitted quizzes",
		},
	)

	ScoreHistogram = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "quiz_score",
			Help:    "Distribution of submitted quiz scores (0-100)",
			Buckets: prometheus.LinearBuckets(10, 10, 10),
		},
	)

	registerOnce sync.Once
)

// RegisterMetrics registers the quiz collectors with reg. Safe to call more
// than once; only the first call registers.
func RegisterMetrics(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		reg.MustRegister(GenerationCounter, GenerationDuration, SubmissionCounter, ScoreHistogram)
	})
}
