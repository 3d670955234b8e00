// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	UtterancesHandled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_utterances_total",
			Help: "Utterances handled, by the tier that produced the final reply",
		},
		[]string{"tier"},
	)

	TierEscalations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "assistant_tier_escalations_total",
			Help: "Fast-tier replies rejected by the quality gate and re-run on the capable tier",
		},
	)

	RouteDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_route_decisions_total",
			Help: "Category decisions, by category and by source (model or keyword fallback)",
		},
		[]string{"category", "source"},
	)

	MovementOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_movement_outcomes_total",
			Help: "Movement intents executed, by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	SequencerRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_sequencer_runs_total",
			Help: "Movement sequencer runs, by terminal state",
		},
		[]string{"state"},
	)

	ContinuationEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_continuation_events_total",
			Help: "Pending continuation lifecycle events (resumed, reprompted, superseded, expired)",
		},
		[]string{"event"},
	)

	HandleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "assistant_handle_duration_seconds",
			Help:    "End-to-end utterance handling duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"tier"},
	)
)
