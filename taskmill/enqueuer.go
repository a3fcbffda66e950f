package taskmill

import (
	"context"
	"encoding/json"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/code19m/errx"
	"github.com/rise-and-shine/filesmanager/observability/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// Enqueuer publishes tasks to a queue.
// It is called by use cases and by the scheduler.
type Enqueuer interface {
	// Enqueue publishes a single task. It returns once the broker accepted it.
	Enqueue(ctx context.Context, operationID string, payload any, opts ...EnqueueOption) error

	// EnqueueBatch publishes several tasks in one broker call.
	EnqueueBatch(ctx context.Context, tasks []BatchTask) error
}

// EnqueuerOption customizes an Enqueuer.
type EnqueuerOption func(*enqueuer)

// WithPublishRetry sets how many times a failed publish is attempted and the initial delay.
// Default: 3 attempts, 200ms.
func WithPublishRetry(attempts uint, delay time.Duration) EnqueuerOption {
	return func(e *enqueuer) {
		e.attempts = attempts
		e.delay = delay
	}
}

// NewEnqueuer creates an Enqueuer publishing to queueName through broker.
func NewEnqueuer(broker Broker, queueName string, opts ...EnqueuerOption) Enqueuer {
	e := &enqueuer{
		broker:    broker,
		queueName: queueName,
		attempts:  3,
		delay:     200 * time.Millisecond,
		logger:    logger.Named("taskmill.enqueuer"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type enqueuer struct {
	broker    Broker
	queueName string
	attempts  uint
	delay     time.Duration
	logger    logger.Logger
}

func (e *enqueuer) Enqueue(ctx context.Context, operationID string, payload any, opts ...EnqueueOption) error {
	return e.EnqueueBatch(ctx, []BatchTask{{OperationID: operationID, Payload: payload, Options: opts}})
}

func (e *enqueuer) EnqueueBatch(ctx context.Context, tasks []BatchTask) error {
	if len(tasks) == 0 {
		return nil
	}

	// shared by every task of the batch
	meta := buildMeta(ctx)

	msgs := make([]Message, 0, len(tasks))
	for _, task := range tasks {
		msg, err := buildMessage(task, meta)
		if err != nil {
			return errx.Wrap(err)
		}
		msgs = append(msgs, msg)
	}

	logger := e.logger.WithContext(ctx)

	err := retry.Do(
		func() error {
			return e.broker.Publish(ctx, e.queueName, msgs)
		},
		retry.Attempts(e.attempts),
		retry.Delay(e.delay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return !errx.IsCodeIn(err, CodeDuplicateTask)
		}),
		retry.OnRetry(func(n uint, err error) {
			logger.With("attempt", n+1, "error", err).Warn("[enqueuer]: publish failed, retrying")
		}),
		retry.Context(ctx),
	)
	return errx.Wrap(err)
}

func buildMessage(task BatchTask, meta map[string]string) (Message, error) {
	if task.OperationID == "" {
		return Message{}, errx.New("[enqueuer]: operation id is required", errx.WithCode(CodeInvalidPayload))
	}

	o := defaultEnqueueOptions()
	for _, opt := range task.Options {
		opt(o)
	}
	if o.priority < -100 || o.priority > 100 {
		return Message{}, errx.New("[enqueuer]: priority must be between -100 and 100",
			errx.WithCode(CodeInvalidPayload))
	}
	if o.maxAttempts < 1 {
		return Message{}, errx.New("[enqueuer]: max attempts must be >= 1", errx.WithCode(CodeInvalidPayload))
	}

	payload, err := json.Marshal(task.Payload)
	if err != nil {
		return Message{}, errx.Wrap(err, errx.WithCode(CodeInvalidPayload))
	}

	return Message{
		OperationID:    task.OperationID,
		Meta:           meta,
		Payload:        payload,
		IdempotencyKey: o.idempotencyKey,
		Priority:       o.priority,
		ScheduledAt:    o.scheduledAt,
		ExpiresAt:      o.expiresAt,
		MaxAttempts:    o.maxAttempts,
	}, nil
}

// buildMeta injects the current trace context into a fresh map.
func buildMeta(ctx context.Context) map[string]string {
	carrier := make(map[string]string)
	otel.GetTextMapPropagator().Inject(ctx, propagation.MapCarrier(carrier))
	return carrier
}
