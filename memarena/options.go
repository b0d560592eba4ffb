package memarena

import "context"

// MemoryAcquirer is a hook for budgeting the arena's backing-store memory
// against a process-wide limit. AcquireMemory is called once at arena
// creation for the full store size and must not block indefinitely;
// ReleaseMemory is called when the arena is closed.
type MemoryAcquirer interface {
	AcquireMemory(ctx context.Context, amount int64) error
	ReleaseMemory(amount int64)
}

type options struct {
	logger    *Logger
	metrics   MetricsCollector
	acquirer  MemoryAcquirer
	storeName string
}

// Option configures Arena construction.
type Option func(*options)

// WithLogger sets the logger. If nil is passed, logging is disabled.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithMetricsCollector sets the metrics collector.
// If nil is passed, NoopMetricsCollector is used.
func WithMetricsCollector(m MetricsCollector) Option {
	return func(o *options) {
		if m == nil {
			m = NoopMetricsCollector{}
		}
		o.metrics = m
	}
}

// WithMemoryAcquirer sets the memory acquirer consulted when the backing
// store is created.
func WithMemoryAcquirer(acquirer MemoryAcquirer) Option {
	return func(o *options) {
		o.acquirer = acquirer
	}
}

// WithStoreName overrides the derived backing-store name. The name only
// exists for the instant between creation and unlink; overriding it is
// mostly useful in tests.
func WithStoreName(name string) Option {
	return func(o *options) {
		o.storeName = name
	}
}
