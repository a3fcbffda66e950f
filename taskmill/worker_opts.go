package taskmill

import (
	"time"

	"github.com/rcrowley/go-metrics"
)

// WorkerOption customizes a Worker.
type WorkerOption func(*workerOptions)

type workerOptions struct {
	concurrency    int
	pollInterval   time.Duration
	batchSize      int
	processTimeout time.Duration
	registry       metrics.Registry
}

func defaultWorkerOptions() workerOptions {
	return workerOptions{
		concurrency:    3,
		pollInterval:   time.Second,
		batchSize:      1,
		processTimeout: 30 * time.Second,
		registry:       metrics.DefaultRegistry,
	}
}

// WithConcurrency sets the number of fetch loops.
// Default: 3.
func WithConcurrency(concurrency int) WorkerOption {
	return func(o *workerOptions) {
		o.concurrency = max(concurrency, 1)
	}
}

// WithPollInterval sets the pause after an empty fetch.
// Default: 1s.
func WithPollInterval(d time.Duration) WorkerOption {
	return func(o *workerOptions) {
		o.pollInterval = d
	}
}

// WithBatchSize sets how many tasks a loop fetches at once.
// Default: 1.
func WithBatchSize(n int) WorkerOption {
	return func(o *workerOptions) {
		o.batchSize = max(n, 1)
	}
}

// WithProcessTimeout bounds a single handler run.
// Default: 30s.
func WithProcessTimeout(d time.Duration) WorkerOption {
	return func(o *workerOptions) {
		o.processTimeout = d
	}
}

// WithMetricsRegistry sets the go-metrics registry for worker counters.
// Default: metrics.DefaultRegistry.
func WithMetricsRegistry(r metrics.Registry) WorkerOption {
	return func(o *workerOptions) {
		o.registry = r
	}
}
