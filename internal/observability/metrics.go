// Package observability holds service-level telemetry shared across packages.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	activityPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "glycofy",
		Subsystem: "persistence",
		Name:      "last_activity_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent activity written to Postgres.",
	})
	lastPassGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "glycofy",
		Subsystem: "sync",
		Name:      "last_pass_timestamp_seconds",
		Help:      "Unix timestamp of the most recent completed sync pass.",
	})
)

func init() {
	prometheus.MustRegister(activityPersistGauge, lastPassGauge)
}

// RecordActivityPersisted updates the persistence watermark gauge.
func RecordActivityPersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	activityPersistGauge.Set(float64(ts.Unix()))
}

// RecordPassCompleted updates the sync pass watermark gauge.
func RecordPassCompleted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	lastPassGauge.Set(float64(ts.Unix()))
}
