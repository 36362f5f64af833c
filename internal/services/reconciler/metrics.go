package reconciler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "provider_events_applied_total",
		Help: "Provider events that changed subscription state.",
	}, []string{"type"})

	eventsDiscarded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "provider_events_discarded_total",
		Help: "Provider events ignored as duplicate, stale or inapplicable.",
	}, []string{"type", "reason"})

	eventsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "provider_events_failed_total",
		Help: "Provider events whose application failed with an error.",
	}, []string{"type"})
)
