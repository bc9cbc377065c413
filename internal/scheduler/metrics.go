package scheduler

import "github.com/prometheus/client_golang/prometheus"

var (
	passesCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "glycofy",
		Subsystem: "scheduler",
		Name:      "passes_total",
		Help:      "Number of completed sync passes, labeled by status.",
	}, []string{"status"})

	passDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "glycofy",
		Subsystem: "scheduler",
		Name:      "pass_duration_seconds",
		Help:      "Wall time spent per sync pass across all accounts.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
	})

	accountsSynced = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "glycofy",
		Subsystem: "scheduler",
		Name:      "accounts_synced_total",
		Help:      "Number of per-account syncs that completed without a terminal error.",
	})
)

func init() {
	prometheus.MustRegister(passesCounter, passDuration, accountsSynced)
}
