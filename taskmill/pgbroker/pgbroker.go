// Package pgbroker is the PostgreSQL taskmill broker.
//
// Tasks live in a single table. Fetch claims rows with FOR UPDATE SKIP LOCKED and
// hides them for a visibility timeout, so a worker that dies mid-task loses the
// claim and the task is delivered again. Nack pushes visible_at forward by the
// retry strategy delay; exhausted and rejected tasks stay in the table with dlq_at set.
package pgbroker

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/code19m/errx"
	"github.com/uptrace/bun"

	"github.com/rise-and-shine/filesmanager/pg/hooks"
	"github.com/rise-and-shine/filesmanager/taskmill"
)

const (
	// CodeTaskNotFound is returned when an acked or nacked task no longer exists.
	CodeTaskNotFound = "TASK_NOT_FOUND"

	// DefaultSchema is the schema holding the queue table.
	DefaultSchema = "taskmill"
)

var _ taskmill.Broker = (*Broker)(nil)
var _ taskmill.StatsProvider = (*Broker)(nil)

// Option customizes a Broker.
type Option func(*Broker)

// WithSchema sets the schema of the queue table.
// Default: taskmill.
func WithSchema(schema string) Option {
	return func(b *Broker) {
		b.schema = schema
	}
}

// WithVisibilityTimeout sets how long a fetched task stays hidden from other workers.
// Default: 1m.
func WithVisibilityTimeout(d time.Duration) Option {
	return func(b *Broker) {
		b.visibilityTimeout = d
	}
}

// WithRetryStrategy sets the redelivery policy used by Nack.
// Default: exponential backoff.
func WithRetryStrategy(s taskmill.RetryStrategy) Option {
	return func(b *Broker) {
		b.retryStrategy = s
	}
}

// Broker implements taskmill.Broker on PostgreSQL.
type Broker struct {
	db                *bun.DB
	schema            string
	visibilityTimeout time.Duration
	retryStrategy     taskmill.RetryStrategy
}

// New creates a Broker. The caller owns db; Close does not close it.
func New(db *bun.DB, opts ...Option) (*Broker, error) {
	b := &Broker{
		db:                db,
		schema:            DefaultSchema,
		visibilityTimeout: time.Minute,
		retryStrategy:     taskmill.NewExponentialBackoffStrategy(),
	}
	for _, opt := range opts {
		opt(b)
	}

	if b.schema == "" {
		return nil, errx.New("[pgbroker]: schema is required")
	}
	if b.visibilityTimeout < time.Second {
		return nil, errx.New("[pgbroker]: visibility timeout must be at least 1s")
	}
	return b, nil
}

func (b *Broker) Publish(ctx context.Context, queue string, msgs []taskmill.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	return b.insertTasks(ctx, b.db, queue, msgs)
}

// Fetch claims available tasks. Expired tasks and tasks past max attempts are
// dead-lettered in the same transaction and not returned.
func (b *Broker) Fetch(ctx context.Context, queue string, maxTasks int) ([]taskmill.Task, error) {
	if maxTasks < 1 || maxTasks > 100 {
		return nil, errx.New("[pgbroker]: batch size must be between 1 and 100")
	}

	// polling would otherwise flood the debug log
	ctx = hooks.WithSuppressedQueryLogs(ctx)

	tx, err := b.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, errx.Wrap(err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	rows, err := b.dequeueTasks(ctx, tx, queue, maxTasks)
	if err != nil {
		return nil, errx.Wrap(err)
	}

	tasks := make([]taskmill.Task, 0, len(rows))
	now := time.Now()

	for _, row := range rows {
		if row.ExpiresAt != nil && row.ExpiresAt.Before(now) {
			err = b.moveToDLQ(ctx, tx, row.ID, map[string]any{
				"reason": "task's expires_at timestamp has been reached before it could be processed",
			})
			if err != nil {
				return nil, errx.Wrap(err)
			}
			continue
		}

		// attempts was incremented by the claim, so a crashed last attempt shows up here
		if row.MaxAttempts > 0 && row.Attempts > row.MaxAttempts {
			err = b.moveToDLQ(ctx, tx, row.ID, map[string]any{
				"reason": "task's attempt counter has exceeded max_attempts limit",
			})
			if err != nil {
				return nil, errx.Wrap(err)
			}
			continue
		}

		tasks = append(tasks, toTask(row))
	}

	if err = tx.Commit(); err != nil {
		return nil, errx.Wrap(err)
	}
	return tasks, nil
}

func (b *Broker) Ack(ctx context.Context, task taskmill.Task) error {
	id, err := taskID(task)
	if err != nil {
		return errx.Wrap(err)
	}

	n, err := b.deleteTask(ctx, b.db, id)
	if err != nil {
		return errx.Wrap(err)
	}
	if n == 0 {
		return errx.New("[pgbroker]: no rows affected", errx.WithCode(CodeTaskNotFound),
			errx.WithDetails(errx.D{"task_id": id}))
	}
	return nil
}

func (b *Broker) Nack(ctx context.Context, task taskmill.Task, reason map[string]any) error {
	id, err := taskID(task)
	if err != nil {
		return errx.Wrap(err)
	}

	row, err := b.selectTaskByID(ctx, b.db, id)
	if err != nil {
		return errx.Wrap(err)
	}
	if row.DLQAt != nil {
		return errx.New("[pgbroker]: task is already in dead letter queue")
	}

	if b.retryStrategy.ShouldRetry(row.Attempts, row.MaxAttempts) {
		visibleAt := time.Now().Add(b.retryStrategy.NextRetryDelay(row.Attempts))
		return b.updateTaskVisibility(ctx, b.db, id, visibleAt)
	}

	return b.moveToDLQ(ctx, b.db, id, reason)
}

func (b *Broker) Reject(ctx context.Context, task taskmill.Task, reason map[string]any) error {
	id, err := taskID(task)
	if err != nil {
		return errx.Wrap(err)
	}
	return b.moveToDLQ(ctx, b.db, id, reason)
}

func (b *Broker) Stats(ctx context.Context, queue string) (taskmill.QueueStats, error) {
	row, err := b.getQueueStats(hooks.WithSuppressedQueryLogs(ctx), b.db, queue)
	if err != nil {
		return taskmill.QueueStats{}, errx.Wrap(err)
	}
	return taskmill.QueueStats{
		Queue:     queue,
		Available: row.Available,
		InFlight:  row.InFlight,
		Scheduled: row.Scheduled,
		InDLQ:     row.InDLQ,
	}, nil
}

func (b *Broker) Close() error {
	return nil
}

func toTask(row taskRow) taskmill.Task {
	return taskmill.Task{
		ID:          strconv.FormatInt(row.ID, 10),
		Queue:       row.QueueName,
		OperationID: row.OperationID,
		Meta:        row.Meta,
		Payload:     row.Payload,
		Attempts:    row.Attempts,
		MaxAttempts: row.MaxAttempts,
		ExpiresAt:   row.ExpiresAt,
		Receipt:     row.ID,
	}
}

func taskID(task taskmill.Task) (int64, error) {
	if id, ok := task.Receipt.(int64); ok {
		return id, nil
	}
	id, err := strconv.ParseInt(task.ID, 10, 64)
	if err != nil {
		return 0, errx.Wrap(err, errx.WithDetails(errx.D{"task_id": task.ID}))
	}
	return id, nil
}
