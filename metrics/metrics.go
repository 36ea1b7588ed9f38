// Package metrics provides a Prometheus-backed implementation of
// taggo.MetricsCollector.
//
// Register the collector's registry with an HTTP handler to expose the
// metrics:
//
//	collector := metrics.NewPrometheusCollector(nil)
//	idx := taggo.New(taggo.WithMetricsCollector(collector))
//	http.Handle("/metrics", promhttp.HandlerFor(collector.Registry(), promhttp.HandlerOpts{}))
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/hupe1980/taggo"
)

// Compile time check to ensure PrometheusCollector satisfies the
// MetricsCollector interface.
var _ taggo.MetricsCollector = (*PrometheusCollector)(nil)

// PrometheusCollector exports index metrics to Prometheus.
type PrometheusCollector struct {
	registry *prometheus.Registry

	loadsTotal         *prometheus.CounterVec
	loadRecordsTotal   prometheus.Counter
	loadMalformedTotal prometheus.Counter
	loadDuration       prometheus.Histogram

	queriesTotal  *prometheus.CounterVec
	queryResults  *prometheus.HistogramVec
	queryDuration *prometheus.HistogramVec

	tagLookupsTotal   prometheus.Counter
	tagLookupDuration prometheus.Histogram

	snapshotOpsTotal *prometheus.CounterVec
	snapshotDuration *prometheus.HistogramVec
}

// NewPrometheusCollector creates a collector with all metrics
// registered. A nil registry creates a private one.
func NewPrometheusCollector(reg *prometheus.Registry) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	c := &PrometheusCollector{registry: reg}

	c.loadsTotal = promauto.With(reg).NewCounterVec(
		prometheus.CounterOpts{
			Name: "taggo_loads_total",
			Help: "Total number of incremental loads",
		},
		[]string{"status"},
	)
	c.loadRecordsTotal = promauto.With(reg).NewCounter(
		prometheus.CounterOpts{
			Name: "taggo_load_records_total",
			Help: "Total number of records ingested by incremental loads",
		},
	)
	c.loadMalformedTotal = promauto.With(reg).NewCounter(
		prometheus.CounterOpts{
			Name: "taggo_load_malformed_records_total",
			Help: "Total number of malformed lines skipped during loads",
		},
	)
	c.loadDuration = promauto.With(reg).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "taggo_load_duration_seconds",
			Help:    "Incremental load duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 10.0, 30.0},
		},
	)

	c.queriesTotal = promauto.With(reg).NewCounterVec(
		prometheus.CounterOpts{
			Name: "taggo_queries_total",
			Help: "Total number of queries executed",
		},
		[]string{"op"},
	)
	c.queryResults = promauto.With(reg).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "taggo_query_results",
			Help:    "Number of documents returned per query",
			Buckets: []float64{1, 10, 100, 1000, 10000, 100000},
		},
		[]string{"op"},
	)
	c.queryDuration = promauto.With(reg).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "taggo_query_duration_seconds",
			Help:    "Query duration in seconds",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.1, 0.5, 1.0},
		},
		[]string{"op"},
	)

	c.tagLookupsTotal = promauto.With(reg).NewCounter(
		prometheus.CounterOpts{
			Name: "taggo_tag_lookups_total",
			Help: "Total number of per-document tag lookups",
		},
	)
	c.tagLookupDuration = promauto.With(reg).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "taggo_tag_lookup_duration_seconds",
			Help:    "Tag lookup duration in seconds",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.1, 0.5, 1.0},
		},
	)

	c.snapshotOpsTotal = promauto.With(reg).NewCounterVec(
		prometheus.CounterOpts{
			Name: "taggo_snapshot_operations_total",
			Help: "Total number of snapshot saves and loads",
		},
		[]string{"operation", "status"},
	)
	c.snapshotDuration = promauto.With(reg).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "taggo_snapshot_duration_seconds",
			Help:    "Snapshot operation duration in seconds",
			Buckets: []float64{0.01, 0.1, 0.5, 1.0, 5.0, 30.0, 120.0},
		},
		[]string{"operation"},
	)

	return c
}

// Registry returns the underlying Prometheus registry, for mounting a
// scrape handler.
func (c *PrometheusCollector) Registry() *prometheus.Registry {
	return c.registry
}

// RecordLoad implements taggo.MetricsCollector.
func (c *PrometheusCollector) RecordLoad(records, malformed int, duration time.Duration, err error) {
	c.loadsTotal.WithLabelValues(statusLabel(err)).Inc()
	c.loadRecordsTotal.Add(float64(records))
	c.loadMalformedTotal.Add(float64(malformed))
	c.loadDuration.Observe(duration.Seconds())
}

// RecordQuery implements taggo.MetricsCollector.
func (c *PrometheusCollector) RecordQuery(op string, results int, duration time.Duration) {
	c.queriesTotal.WithLabelValues(op).Inc()
	c.queryResults.WithLabelValues(op).Observe(float64(results))
	c.queryDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordTagsFor implements taggo.MetricsCollector.
func (c *PrometheusCollector) RecordTagsFor(duration time.Duration) {
	c.tagLookupsTotal.Inc()
	c.tagLookupDuration.Observe(duration.Seconds())
}

// RecordSnapshotSave implements taggo.MetricsCollector.
func (c *PrometheusCollector) RecordSnapshotSave(duration time.Duration, err error) {
	c.snapshotOpsTotal.WithLabelValues("save", statusLabel(err)).Inc()
	c.snapshotDuration.WithLabelValues("save").Observe(duration.Seconds())
}

// RecordSnapshotLoad implements taggo.MetricsCollector.
func (c *PrometheusCollector) RecordSnapshotLoad(duration time.Duration, err error) {
	c.snapshotOpsTotal.WithLabelValues("load", statusLabel(err)).Inc()
	c.snapshotDuration.WithLabelValues("load").Observe(duration.Seconds())
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
