package taskmill

import (
	"time"

	"github.com/rcrowley/go-metrics"
)

const (
	metricProcessed    = "taskmill.tasks.processed"
	metricFailed       = "taskmill.tasks.failed"
	metricRetried      = "taskmill.tasks.retried"
	metricDeadLettered = "taskmill.tasks.dead_lettered"
	metricDuration     = "taskmill.tasks.duration"
)

// WorkerStats is a snapshot of the worker counters.
type WorkerStats struct {
	Processed    int64   `json:"processed"`
	Failed       int64   `json:"failed"`
	Retried      int64   `json:"retried"`
	DeadLettered int64   `json:"dead_lettered"`
	MeanMillis   float64 `json:"mean_ms"`
	P95Millis    float64 `json:"p95_ms"`
}

type workerMetrics struct {
	processed    metrics.Counter
	failed       metrics.Counter
	retried      metrics.Counter
	deadLettered metrics.Counter
	duration     metrics.Timer
}

func newWorkerMetrics(r metrics.Registry) *workerMetrics {
	return &workerMetrics{
		processed:    metrics.GetOrRegisterCounter(metricProcessed, r),
		failed:       metrics.GetOrRegisterCounter(metricFailed, r),
		retried:      metrics.GetOrRegisterCounter(metricRetried, r),
		deadLettered: metrics.GetOrRegisterCounter(metricDeadLettered, r),
		duration:     metrics.GetOrRegisterTimer(metricDuration, r),
	}
}

func (m *workerMetrics) snapshot() WorkerStats {
	d := m.duration.Snapshot()
	return WorkerStats{
		Processed:    m.processed.Snapshot().Count(),
		Failed:       m.failed.Snapshot().Count(),
		Retried:      m.retried.Snapshot().Count(),
		DeadLettered: m.deadLettered.Snapshot().Count(),
		MeanMillis:   d.Mean() / float64(time.Millisecond),
		P95Millis:    d.Percentile(0.95) / float64(time.Millisecond),
	}
}
