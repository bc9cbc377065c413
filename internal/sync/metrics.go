package sync

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/marcnester/glycofy-api/internal/domain"
)

var (
	recordsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "glycofy",
		Subsystem: "sync",
		Name:      "records_total",
		Help:      "Number of remote activity records reconciled, labeled by outcome.",
	}, []string{"outcome"})

	pagesCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "glycofy",
		Subsystem: "sync",
		Name:      "pages_fetched_total",
		Help:      "Number of remote feed pages fetched.",
	})

	runsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "glycofy",
		Subsystem: "sync",
		Name:      "runs_total",
		Help:      "Number of per-account sync runs, labeled by terminal status.",
	}, []string{"status"})
)

func init() {
	prometheus.MustRegister(recordsCounter, pagesCounter, runsCounter)
}

func recordRun(result domain.SyncResult) {
	recordsCounter.WithLabelValues("created").Add(float64(result.Created))
	recordsCounter.WithLabelValues("updated").Add(float64(result.Updated))
	recordsCounter.WithLabelValues("skipped").Add(float64(result.Skipped))
	pagesCounter.Add(float64(result.Pages))

	status := "ok"
	switch {
	case errors.Is(result.Err, ErrCredentialInvalid):
		status = "credential_invalid"
	case result.Err != nil:
		status = "fetch_failed"
	}
	runsCounter.WithLabelValues(status).Inc()
}
