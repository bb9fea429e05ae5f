package runner

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "orchd"

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "runs_total",
		Help:      "Completed runs by final status.",
	}, []string{"status"})

	runsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "runs_active",
		Help:      "Runs currently executing.",
	})

	stepAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "step_attempts_total",
		Help:      "Step attempts by result.",
	}, []string{"result"})

	stepAttemptDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "step_attempt_duration_seconds",
		Help:      "Wall time per step attempt.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	})
)
