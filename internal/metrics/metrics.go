package metrics

import (
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Database metrics
	dbQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketindexor_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"db", "operation"},
	)

	dbQueryTime = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "marketindexor_db_query_duration_seconds",
			Help:    "Duration of database queries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"db", "operation"},
	)

	dbErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketindexor_db_errors_total",
			Help: "Total number of database errors",
		},
		[]string{"db", "operation"},
	)

	// Poll loop metrics
	LastProcessedBlock = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "marketindexor_last_processed_block",
			Help: "The last block whose logs were fully projected",
		},
	)

	SafeHeight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "marketindexor_safe_height",
			Help: "Chain height minus the safety buffer at the last cycle",
		},
	)

	BlocksProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "marketindexor_blocks_processed_total",
			Help: "Total number of blocks processed",
		},
	)

	LogsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketindexor_logs_processed_total",
			Help: "Total number of fetched logs by outcome",
		},
		[]string{"outcome"},
	)

	CycleTime = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "marketindexor_cycle_duration_seconds",
			Help:    "Time taken by a completed poll cycle",
			Buckets: prometheus.DefBuckets,
		},
	)

	CycleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketindexor_cycle_errors_total",
			Help: "Total number of failed poll cycles by stage",
		},
		[]string{"stage"},
	)

	IndexingRate = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "marketindexor_indexing_rate_blocks_per_second",
			Help: "Indexing rate of the last completed cycle in blocks per second",
		},
	)

	PollerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "marketindexor_poller_state",
			Help: "Current poll loop state (1 for the active state, 0 otherwise)",
		},
		[]string{"state"},
	)

	// System metrics
	Uptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "marketindexor_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)

	ComponentHealth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "marketindexor_component_health",
			Help: "Component health status (1=healthy, 0=unhealthy)",
		},
		[]string{"component"},
	)

	Goroutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "marketindexor_goroutines",
			Help: "Number of active goroutines",
		},
	)

	MemoryUsage = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "marketindexor_memory_usage_bytes",
			Help: "Memory usage statistics",
		},
		[]string{"type"},
	)

	startTime = time.Now()
)

// DBQueryObserve records one query against db. A non-nil err counts as a failed query.
func DBQueryObserve(db, operation string, start time.Time, err error) {
	dbQueries.WithLabelValues(db, operation).Inc()
	dbQueryTime.WithLabelValues(db, operation).Observe(time.Since(start).Seconds())
	if err != nil {
		dbErrors.WithLabelValues(db, operation).Inc()
	}
}

func LastProcessedBlockSet(blockNum uint64) {
	LastProcessedBlock.Set(float64(blockNum))
}

func SafeHeightSet(blockNum uint64) {
	SafeHeight.Set(float64(blockNum))
}

func BlocksProcessedInc(count uint64) {
	BlocksProcessed.Add(float64(count))
}

func LogsProcessedInc(outcome string, count int) {
	LogsProcessed.WithLabelValues(outcome).Add(float64(count))
}

func CycleTimeLog(duration time.Duration) {
	CycleTime.Observe(duration.Seconds())
}

func CycleErrorsInc(stage string) {
	CycleErrors.WithLabelValues(stage).Inc()
}

func IndexingRateLog(rate float64) {
	IndexingRate.Set(rate)
}

// PollerStateSet marks state as the active poll loop state among all.
func PollerStateSet(state string, all []string) {
	for _, s := range all {
		PollerState.WithLabelValues(s).Set(0)
	}
	PollerState.WithLabelValues(state).Set(1)
}

func ComponentHealthSet(component string, healthy bool) {
	boolAsFloat := float64(1)
	if !healthy {
		boolAsFloat = 0
	}

	ComponentHealth.WithLabelValues(component).Set(boolAsFloat)
}

// UpdateSystemMetrics updates runtime system metrics.
// This should be called periodically (e.g., every 15 seconds).
func UpdateSystemMetrics() {
	Uptime.Set(time.Since(startTime).Seconds())

	Goroutines.Set(float64(runtime.NumGoroutine()))

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	MemoryUsage.WithLabelValues("alloc").Set(float64(m.Alloc))
	MemoryUsage.WithLabelValues("total_alloc").Set(float64(m.TotalAlloc))
	MemoryUsage.WithLabelValues("sys").Set(float64(m.Sys))
	MemoryUsage.WithLabelValues("heap_inuse").Set(float64(m.HeapInuse))
}
