package projector

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketindexor_projector_events_applied_total",
			Help: "Total number of domain events applied to the projection",
		},
		[]string{"event"},
	)

	eventsDuplicate = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketindexor_projector_duplicates_total",
			Help: "Total number of inserts skipped because the row already existed",
		},
		[]string{"event"},
	)

	eventsMissingTarget = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketindexor_projector_missing_target_total",
			Help: "Total number of updates that matched no proposal or bet row",
		},
		[]string{"event"},
	)

	projectionErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketindexor_projector_errors_total",
			Help: "Total number of failed projection writes",
		},
		[]string{"event"},
	)

	totalsMismatch = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "marketindexor_projector_totals_mismatch_total",
			Help: "Total number of resolved markets whose projected pool totals differ from the event",
		},
	)
)

func appliedInc(kind string) {
	eventsApplied.WithLabelValues(kind).Inc()
}

func duplicateInc(kind string) {
	eventsDuplicate.WithLabelValues(kind).Inc()
}

func missingTargetInc(kind string) {
	eventsMissingTarget.WithLabelValues(kind).Inc()
}

func projectionErrorInc(kind string) {
	projectionErrors.WithLabelValues(kind).Inc()
}

func totalsMismatchInc() {
	totalsMismatch.Inc()
}
