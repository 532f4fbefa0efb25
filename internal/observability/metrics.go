// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Ingestion metrics
	RecordsAppended *prometheus.CounterVec
	RecordsRejected *prometheus.CounterVec
	KafkaLag        prometheus.Gauge

	// Engine metrics
	Computations       *prometheus.CounterVec
	ComputationLatency *prometheus.HistogramVec

	// Cache metrics
	CacheHits      prometheus.Counter
	CacheMisses    prometheus.Counter
	CacheStale     prometheus.Counter
	CacheCoalesced prometheus.Counter
	CacheEntries   prometheus.Gauge

	// API metrics
	QueryDuration     *prometheus.HistogramVec
	StreamSubscribers prometheus.Gauge

	// Health metrics
	LastSuccessfulIngestion prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "cloudboost_metrics"
	}

	return &Metrics{
		RecordsAppended: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "records_appended_total",
			Help:      "Total number of records appended by source and kind",
		}, []string{"source", "kind"}),
		RecordsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "records_rejected_total",
			Help:      "Total number of records rejected by source and reason",
		}, []string{"source", "reason"}),
		KafkaLag: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "kafka_lag",
			Help:      "Consumer lag reported by the Kafka reader",
		}),

		Computations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "computations_total",
			Help:      "Total number of metric computations by metric id",
		}, []string{"metric"}),
		ComputationLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "computation_duration_seconds",
			Help:      "Metric computation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"granularity"}),

		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Snapshot cache hits",
		}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Snapshot cache misses, including stale entries",
		}),
		CacheStale: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "stale_total",
			Help:      "Cached snapshots invalidated by a record count change",
		}),
		CacheCoalesced: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "coalesced_total",
			Help:      "Cache misses served by another caller's in-flight computation",
		}),
		CacheEntries: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "entries",
			Help:      "Number of cached snapshots",
		}),

		QueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "query_duration_seconds",
			Help:      "Query API latency in seconds by operation",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		StreamSubscribers: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "stream_subscribers",
			Help:      "Open metric stream connections",
		}),

		LastSuccessfulIngestion: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_ingestion_timestamp",
			Help:      "Unix timestamp of last successful ingestion",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordAppended counts n records of kind appended from source.
func RecordAppended(source, kind string, n int) {
	DefaultMetrics.RecordsAppended.WithLabelValues(source, kind).Add(float64(n))
	DefaultMetrics.LastSuccessfulIngestion.Set(float64(time.Now().Unix()))
}

// RecordRejected counts a rejected record.
func RecordRejected(source, reason string) {
	DefaultMetrics.RecordsRejected.WithLabelValues(source, reason).Inc()
}

// UpdateKafkaLag sets the consumer lag gauge.
func UpdateKafkaLag(lag int64) {
	DefaultMetrics.KafkaLag.Set(float64(lag))
}

// RecordComputation records one metric computation.
func RecordComputation(metricID, granularity string, d time.Duration) {
	DefaultMetrics.Computations.WithLabelValues(metricID).Inc()
	DefaultMetrics.ComputationLatency.WithLabelValues(granularity).Observe(d.Seconds())
}

// RecordQuery records Query API latency for operation in both the
// Prometheus histogram and the quantile sketch.
func RecordQuery(operation string, d time.Duration) {
	DefaultMetrics.QueryDuration.WithLabelValues(operation).Observe(d.Seconds())
	DefaultLatency.Observe(operation, d)
}

// UpdateStreamSubscribers sets the open stream gauge.
func UpdateStreamSubscribers(n int) {
	DefaultMetrics.StreamSubscribers.Set(float64(n))
}

// CacheObserver reports snapshot cache events to DefaultMetrics.
type CacheObserver struct{}

func (CacheObserver) CacheHit()       { DefaultMetrics.CacheHits.Inc() }
func (CacheObserver) CacheMiss()      { DefaultMetrics.CacheMisses.Inc() }
func (CacheObserver) CacheStale()     { DefaultMetrics.CacheStale.Inc() }
func (CacheObserver) CacheCoalesced() { DefaultMetrics.CacheCoalesced.Inc() }
func (CacheObserver) CacheSize(n int) { DefaultMetrics.CacheEntries.Set(float64(n)) }
