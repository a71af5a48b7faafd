// Package metrics exposes the client's Prometheus instrumentation. All
// collectors are registered on the default registry and served by the web
// package.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RefetchesTotal counts full state resynchronizations, by trigger.
	RefetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "borrowfi",
		Name:      "refetches_total",
		Help:      "Full ledger state refetches, labelled by trigger.",
	}, []string{"trigger"})

	// RefetchFailuresTotal counts resynchronizations that aborted without
	// updating the cached snapshot.
	RefetchFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "borrowfi",
		Name:      "refetch_failures_total",
		Help:      "Ledger state refetches that failed and left the cache untouched.",
	})

	// ActionsTotal counts orchestrated actions by kind and outcome.
	ActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "borrowfi",
		Name:      "actions_total",
		Help:      "Orchestrated position actions, labelled by kind and outcome.",
	}, []string{"kind", "outcome"})

	// EventsObservedTotal counts decoded token events, by relevance.
	EventsObservedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "borrowfi",
		Name:      "token_events_total",
		Help:      "Observed token Transfer/Approval events, labelled by relevance.",
	}, []string{"relevant"})

	// ConfirmWaitSeconds observes how long confirmation waits take.
	ConfirmWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "borrowfi",
		Name:      "confirm_wait_seconds",
		Help:      "Time spent waiting for transaction confirmation.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
	})
)
