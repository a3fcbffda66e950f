package taskmill

import (
	"time"

	"github.com/google/uuid"
)

// EnqueueOption customizes a single enqueued task.
type EnqueueOption func(*enqueueOptions)

type enqueueOptions struct {
	priority       int
	maxAttempts    int
	scheduledAt    time.Time
	expiresAt      *time.Time
	idempotencyKey string
}

func defaultEnqueueOptions() *enqueueOptions {
	return &enqueueOptions{
		priority:       0,
		maxAttempts:    3,
		scheduledAt:    time.Now(),
		idempotencyKey: uuid.NewString(),
	}
}

// WithPriority specifies the task priority (-100 to 100).
// Default is 0.
func WithPriority(priority int) EnqueueOption {
	return func(o *enqueueOptions) {
		o.priority = priority
	}
}

// WithMaxAttempts specifies the delivery limit.
// Default is 3.
func WithMaxAttempts(maxAttempts int) EnqueueOption {
	return func(o *enqueueOptions) {
		o.maxAttempts = maxAttempts
	}
}

// WithScheduledAt delays availability until t.
func WithScheduledAt(t time.Time) EnqueueOption {
	return func(o *enqueueOptions) {
		o.scheduledAt = t
	}
}

// WithExpiresAt dead-letters the task if it is still unprocessed at t.
func WithExpiresAt(t time.Time) EnqueueOption {
	return func(o *enqueueOptions) {
		o.expiresAt = &t
	}
}

// WithIdempotencyKey replaces the generated uuid key.
// Use it when deduplication must follow business identity.
func WithIdempotencyKey(key string) EnqueueOption {
	return func(o *enqueueOptions) {
		o.idempotencyKey = key
	}
}

// BatchTask is one entry of EnqueueBatch.
type BatchTask struct {
	OperationID string
	Payload     any
	Options     []EnqueueOption
}
