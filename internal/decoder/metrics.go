package decoder

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	decodedLogs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketindexor_decoder_events_total",
			Help: "Total number of logs decoded into domain events by event kind",
		},
		[]string{"event"},
	)

	unrecognizedLogs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketindexor_decoder_unrecognized_total",
			Help: "Total number of skipped logs with an unknown contract or signature",
		},
		[]string{"role"},
	)

	malformedLogs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketindexor_decoder_malformed_total",
			Help: "Total number of logs with a known signature that failed to decode",
		},
		[]string{"event"},
	)
)

func decodedInc(kind string) {
	decodedLogs.WithLabelValues(kind).Inc()
}

func unrecognizedInc(role string) {
	if role == "" {
		role = "unknown"
	}
	unrecognizedLogs.WithLabelValues(role).Inc()
}

func malformedInc(kind string) {
	malformedLogs.WithLabelValues(kind).Inc()
}
