// Package metrics exposes Prometheus collectors for the pipeline.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	targetsTotal      *prometheus.CounterVec
	fetchRetriesTotal prometheus.Counter
	reconcileTotal    *prometheus.CounterVec
	runsTotal         *prometheus.CounterVec
	matchCyclesTotal  prometheus.Counter
	deliveriesTotal   *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus collectors. Safe to call multiple times.
func Init() {
	once.Do(func() {
		targetsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobsight_targets_total",
				Help: "Crawl targets processed, labeled by source and outcome.",
			},
			[]string{"source", "outcome"},
		)

		fetchRetriesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "jobsight_fetch_retries_total",
				Help: "Fetch attempts retried after a transient failure.",
			},
		)

		reconcileTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobsight_reconcile_total",
				Help: "Reconciled vacancy records, labeled by status.",
			},
			[]string{"status"},
		)

		runsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobsight_runs_total",
				Help: "Crawl runs finished, labeled by terminal state.",
			},
			[]string{"state"},
		)

		matchCyclesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "jobsight_match_cycles_total",
				Help: "Completed matching/scoring cycles.",
			},
		)

		deliveriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobsight_deliveries_total",
				Help: "Recommendation deliveries, labeled by result.",
			},
			[]string{"result"},
		)
	})
}

// RecordTarget counts one processed crawl target.
func RecordTarget(source, outcome string) {
	if targetsTotal != nil {
		targetsTotal.WithLabelValues(source, outcome).Inc()
	}
}

// RecordFetchRetry counts one retried fetch attempt.
func RecordFetchRetry() {
	if fetchRetriesTotal != nil {
		fetchRetriesTotal.Inc()
	}
}

// RecordReconcile counts one reconciled record by status.
func RecordReconcile(status string) {
	if reconcileTotal != nil {
		reconcileTotal.WithLabelValues(status).Inc()
	}
}

// RecordRun counts one finished run by terminal state.
func RecordRun(state string) {
	if runsTotal != nil {
		runsTotal.WithLabelValues(state).Inc()
	}
}

// RecordMatchCycle counts one completed scoring cycle.
func RecordMatchCycle() {
	if matchCyclesTotal != nil {
		matchCyclesTotal.Inc()
	}
}

// RecordDelivery counts one delivery attempt by result.
func RecordDelivery(result string) {
	if deliveriesTotal != nil {
		deliveriesTotal.WithLabelValues(result).Inc()
	}
}
