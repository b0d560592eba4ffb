package memarena

import (
	"sync/atomic"
	"time"
)

// MetricsCollector receives timing and outcome data for every arena
// operation. Implementations bridge to whatever monitoring system the
// embedding process uses.
type MetricsCollector interface {
	// RecordCreateView is called after each view-creation attempt
	// (including the raw-pointer variant). duration is the total time
	// taken, err is nil if successful.
	RecordCreateView(duration time.Duration, err error)

	// RecordRelease is called after each view release attempt.
	RecordRelease(duration time.Duration, err error)

	// RecordFlush is called after each explicit flush attempt.
	RecordFlush(duration time.Duration, err error)

	// RecordProtect is called after each page-protection change attempt.
	RecordProtect(duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordCreateView(time.Duration, error) {}
func (NoopMetricsCollector) RecordRelease(time.Duration, error)    {}
func (NoopMetricsCollector) RecordFlush(time.Duration, error)      {}
func (NoopMetricsCollector) RecordProtect(time.Duration, error)    {}

// BasicMetricsCollector counts operations and failures in memory. Enough
// for debugging and tests; read the atomic fields directly.
type BasicMetricsCollector struct {
	CreateViewCount  atomic.Int64
	CreateViewErrors atomic.Int64
	ReleaseCount     atomic.Int64
	ReleaseErrors    atomic.Int64
	FlushCount       atomic.Int64
	FlushErrors      atomic.Int64
	ProtectCount     atomic.Int64
	ProtectErrors    atomic.Int64
}

// RecordCreateView implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCreateView(_ time.Duration, err error) {
	b.CreateViewCount.Add(1)
	if err != nil {
		b.CreateViewErrors.Add(1)
	}
}

// RecordRelease implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRelease(_ time.Duration, err error) {
	b.ReleaseCount.Add(1)
	if err != nil {
		b.ReleaseErrors.Add(1)
	}
}

// RecordFlush implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFlush(_ time.Duration, err error) {
	b.FlushCount.Add(1)
	if err != nil {
		b.FlushErrors.Add(1)
	}
}

// RecordProtect implements MetricsCollector.
func (b *BasicMetricsCollector) RecordProtect(_ time.Duration, err error) {
	b.ProtectCount.Add(1)
	if err != nil {
		b.ProtectErrors.Add(1)
	}
}
