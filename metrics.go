package taggo

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems; the
// metrics package ships a Prometheus-backed implementation.
type MetricsCollector interface {
	// RecordLoad is called after each incremental load.
	// records and malformed are the parser counts, duration is the total
	// time taken, err is nil if successful.
	RecordLoad(records, malformed int, duration time.Duration, err error)

	// RecordQuery is called after each query operation.
	// op is the set operation name, results is the number of matching
	// documents, duration is the time taken.
	RecordQuery(op string, results int, duration time.Duration)

	// RecordTagsFor is called after each tag lookup.
	RecordTagsFor(duration time.Duration)

	// RecordSnapshotSave is called after each snapshot save.
	RecordSnapshotSave(duration time.Duration, err error)

	// RecordSnapshotLoad is called after each snapshot load.
	RecordSnapshotLoad(duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordLoad(int, int, time.Duration, error) {}
func (NoopMetricsCollector) RecordQuery(string, int, time.Duration)    {}
func (NoopMetricsCollector) RecordTagsFor(time.Duration)               {}
func (NoopMetricsCollector) RecordSnapshotSave(time.Duration, error)   {}
func (NoopMetricsCollector) RecordSnapshotLoad(time.Duration, error)   {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	LoadCount          atomic.Int64
	LoadErrors         atomic.Int64
	LoadRecords        atomic.Int64
	LoadMalformed      atomic.Int64
	LoadTotalNanos     atomic.Int64
	QueryCount         atomic.Int64
	QueryResults       atomic.Int64
	QueryTotalNanos    atomic.Int64
	TagsForCount       atomic.Int64
	TagsForTotalNanos  atomic.Int64
	SnapshotSaveCount  atomic.Int64
	SnapshotSaveErrors atomic.Int64
	SnapshotLoadCount  atomic.Int64
	SnapshotLoadErrors atomic.Int64
}

// RecordLoad implements MetricsCollector.
func (b *BasicMetricsCollector) RecordLoad(records, malformed int, duration time.Duration, err error) {
	b.LoadCount.Add(1)
	b.LoadRecords.Add(int64(records))
	b.LoadMalformed.Add(int64(malformed))
	b.LoadTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.LoadErrors.Add(1)
	}
}

// RecordQuery implements MetricsCollector.
func (b *BasicMetricsCollector) RecordQuery(op string, results int, duration time.Duration) {
	b.QueryCount.Add(1)
	b.QueryResults.Add(int64(results))
	b.QueryTotalNanos.Add(duration.Nanoseconds())
}

// RecordTagsFor implements MetricsCollector.
func (b *BasicMetricsCollector) RecordTagsFor(duration time.Duration) {
	b.TagsForCount.Add(1)
	b.TagsForTotalNanos.Add(duration.Nanoseconds())
}

// RecordSnapshotSave implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSnapshotSave(duration time.Duration, err error) {
	b.SnapshotSaveCount.Add(1)
	if err != nil {
		b.SnapshotSaveErrors.Add(1)
	}
}

// RecordSnapshotLoad implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSnapshotLoad(duration time.Duration, err error) {
	b.SnapshotLoadCount.Add(1)
	if err != nil {
		b.SnapshotLoadErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		LoadCount:          b.LoadCount.Load(),
		LoadErrors:         b.LoadErrors.Load(),
		LoadRecords:        b.LoadRecords.Load(),
		LoadMalformed:      b.LoadMalformed.Load(),
		QueryCount:         b.QueryCount.Load(),
		QueryResults:       b.QueryResults.Load(),
		QueryAvgNanos:      b.getAvgQueryNanos(),
		TagsForCount:       b.TagsForCount.Load(),
		TagsForAvgNanos:    b.getAvgTagsForNanos(),
		SnapshotSaveCount:  b.SnapshotSaveCount.Load(),
		SnapshotSaveErrors: b.SnapshotSaveErrors.Load(),
		SnapshotLoadCount:  b.SnapshotLoadCount.Load(),
		SnapshotLoadErrors: b.SnapshotLoadErrors.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgQueryNanos() int64 {
	count := b.QueryCount.Load()
	if count == 0 {
		return 0
	}
	return b.QueryTotalNanos.Load() / count
}

func (b *BasicMetricsCollector) getAvgTagsForNanos() int64 {
	count := b.TagsForCount.Load()
	if count == 0 {
		return 0
	}
	return b.TagsForTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	LoadCount          int64
	LoadErrors         int64
	LoadRecords        int64
	LoadMalformed      int64
	QueryCount         int64
	QueryResults       int64
	QueryAvgNanos      int64
	TagsForCount       int64
	TagsForAvgNanos    int64
	SnapshotSaveCount  int64
	SnapshotSaveErrors int64
	SnapshotLoadCount  int64
	SnapshotLoadErrors int64
}
