package taskmill

import (
	"context"
	"encoding/json"
	"time"
)

// Message is a task as handed to a broker by the enqueuer.
type Message struct {
	// OperationID identifies which handler should process this task.
	OperationID string

	// Meta carries the producer's trace context.
	Meta map[string]string

	// Payload is the JSON encoded business data.
	Payload json.RawMessage

	// IdempotencyKey deduplicates messages within a queue where the broker supports it.
	IdempotencyKey string

	// Priority determines processing order (higher first). Range -100..100.
	Priority int

	// ScheduledAt is when the task becomes available.
	ScheduledAt time.Time

	// ExpiresAt is when an unprocessed task is dead-lettered. nil means never.
	ExpiresAt *time.Time

	// MaxAttempts is the delivery limit before the task is dead-lettered.
	MaxAttempts int
}

// Task is a delivered message.
type Task struct {
	ID          string
	Queue       string
	OperationID string
	Meta        map[string]string
	Payload     json.RawMessage

	// Attempts counts deliveries including the current one.
	Attempts    int
	MaxAttempts int
	ExpiresAt   *time.Time

	// Receipt is broker private state needed to ack or nack the delivery.
	Receipt any `json:"-"`
}

// Broker is the transport behind the enqueuer and the worker.
// Delivery is at least once: a task that is neither acked nor rejected is delivered again.
type Broker interface {
	// Publish durably accepts messages for the queue.
	Publish(ctx context.Context, queue string, msgs []Message) error

	// Fetch returns up to max available tasks. It does not block waiting for new ones.
	Fetch(ctx context.Context, queue string, max int) ([]Task, error)

	// Ack marks the task as done.
	Ack(ctx context.Context, task Task) error

	// Nack schedules a redelivery, or dead-letters the task once its attempts are exhausted.
	Nack(ctx context.Context, task Task, reason map[string]any) error

	// Reject dead-letters the task without retrying.
	Reject(ctx context.Context, task Task, reason map[string]any) error

	// Close releases broker resources.
	Close() error
}

// QueueStats is a point in time view of a queue.
type QueueStats struct {
	Queue     string `json:"queue"`
	Available int64  `json:"available"`
	InFlight  int64  `json:"in_flight"`
	Scheduled int64  `json:"scheduled"`
	InDLQ     int64  `json:"in_dlq"`
}

// StatsProvider is implemented by brokers that can report queue depth.
type StatsProvider interface {
	Stats(ctx context.Context, queue string) (QueueStats, error)
}
