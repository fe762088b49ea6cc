// Package metrics holds the Prometheus collectors of the quiz service.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "cyberhoot"

var (
	SessionsStarted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Quiz sessions started, by mode.",
		},
		[]string{"mode"},
	)

	SessionsFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_finished_total",
			Help:      "Quiz sessions that ended, by outcome (completed, abandoned, expired).",
		},
		[]string{"outcome"},
	)

	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Session runners currently alive.",
		},
	)

	Answers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answers_total",
			Help:      "Recorded answers by question kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	PointsAwarded = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "points_awarded",
			Help:      "Points awarded per answer.",
			Buckets:   []float64{0, 100, 300, 500, 750, 1000, 1400, 1800},
		},
		[]string{"difficulty"},
	)

	QuestionSource = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "question_sets_total",
			Help:      "Question sets served, by the source that produced them.",
		},
		[]string{"source"},
	)

	UpstreamFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_failures_total",
			Help:      "Failed calls to external collaborators.",
		},
		[]string{"upstream"},
	)

	UpstreamLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Latency of calls to external collaborators.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8},
		},
		[]string{"upstream"},
	)

	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status code.",
		},
		[]string{"method", "status"},
	)

	RateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_requests_total",
			Help:      "Requests rejected by the per-participant rate limiter.",
		},
	)
)

var registerOnce sync.Once

// Register adds every collector to reg. Safe to call more than once.
func Register(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		reg.MustRegister(
			SessionsStarted,
			SessionsFinished,
			ActiveSessions,
			Answers,
			PointsAwarded,
			QuestionSource,
			UpstreamFailures,
			UpstreamLatency,
			HTTPRequests,
			RateLimited,
		)
	})
}
