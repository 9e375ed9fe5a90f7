package notifier

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	subscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "marketindexor_notifier_subscribers",
			Help: "Number of connected notification subscribers",
		},
	)

	broadcasts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketindexor_notifier_broadcasts_total",
			Help: "Total number of broadcasts by message type",
		},
		[]string{"type"},
	)

	dropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketindexor_notifier_dropped_subscribers_total",
			Help: "Total number of subscribers dropped after a failed send",
		},
		[]string{"reason"},
	)
)

func subscribersSet(n int) {
	subscribers.Set(float64(n))
}

func broadcastInc(msgType string) {
	broadcasts.WithLabelValues(msgType).Inc()
}

func droppedInc(reason string) {
	dropped.WithLabelValues(reason).Inc()
}
