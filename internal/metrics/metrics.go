// Package metrics holds the service's Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "plansync"

// Result label values.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

var (
	// TokenRefreshTotal counts provider token refresh attempts by result.
	TokenRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_refresh_total",
			Help:      "Calendar provider token refresh attempts.",
		},
		[]string{"result"},
	)

	// CalendarEventsCreatedTotal counts remote events created by plan sync.
	CalendarEventsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calendar_events_created_total",
			Help:      "Calendar events created from plan blocks.",
		},
	)

	// CalendarSyncTotal counts sync runs by terminal state.
	CalendarSyncTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calendar_sync_total",
			Help:      "Plan sync runs by terminal state.",
		},
		[]string{"state"},
	)

	// PlanGenerationTotal counts planning calls by kind and result.
	PlanGenerationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plan_generation_total",
			Help:      "Plan generation calls.",
		},
		[]string{"kind", "result"},
	)

	// PlanGenerationDuration observes planning call latency.
	PlanGenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "plan_generation_duration_seconds",
			Help:      "Plan generation latency.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 90, 120},
		},
		[]string{"kind"},
	)
)

// ObserveGeneration records one planning call.
func ObserveGeneration(kind string, started time.Time, err error) {
	result := ResultSuccess
	if err != nil {
		result = ResultFailure
	}
	PlanGenerationTotal.WithLabelValues(kind, result).Inc()
	PlanGenerationDuration.WithLabelValues(kind).Observe(time.Since(started).Seconds())
}
