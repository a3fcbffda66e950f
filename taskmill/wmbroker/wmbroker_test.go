package wmbroker_test

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/code19m/errx"
	"github.com/rcrowley/go-metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rise-and-shine/filesmanager/internal/pgtest"
	"github.com/rise-and-shine/filesmanager/taskmill"
	"github.com/rise-and-shine/filesmanager/taskmill/wmbroker"
)

func msg(maxAttempts int) taskmill.Message {
	return taskmill.Message{
		OperationID:    "generate-thumbnails",
		Meta:           map[string]string{"traceparent": "00-abc"},
		Payload:        json.RawMessage(`{"file_id":1,"owner_id":2}`),
		IdempotencyKey: "k1",
		MaxAttempts:    maxAttempts,
	}
}

func fetchOne(t *testing.T, b taskmill.Broker, queue string) taskmill.Task {
	t.Helper()

	var tasks []taskmill.Task
	require.Eventually(t, func() bool {
		var err error
		tasks, err = b.Fetch(t.Context(), queue, 1)
		require.NoError(t, err)
		return len(tasks) == 1
	}, 5*time.Second, 5*time.Millisecond)
	return tasks[0]
}

func TestMemoryPublishFetchAck(t *testing.T) {
	b := wmbroker.NewMemory()
	t.Cleanup(func() { _ = b.Close() })

	require.NoError(t, b.Publish(t.Context(), "files", []taskmill.Message{msg(3)}))

	task := fetchOne(t, b, "files")
	assert.Equal(t, "generate-thumbnails", task.OperationID)
	assert.Equal(t, 1, task.Attempts)
	assert.Equal(t, 3, task.MaxAttempts)
	assert.Equal(t, "00-abc", task.Meta["traceparent"])
	assert.JSONEq(t, `{"file_id":1,"owner_id":2}`, string(task.Payload))

	require.NoError(t, b.Ack(t.Context(), task))

	tasks, err := b.Fetch(t.Context(), "files", 1)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestMemoryNackRedeliversThenDeadLetters(t *testing.T) {
	b := wmbroker.NewMemory()
	t.Cleanup(func() { _ = b.Close() })
	ctx := t.Context()

	require.NoError(t, b.Publish(ctx, "files", []taskmill.Message{msg(2)}))

	first := fetchOne(t, b, "files")
	assert.Equal(t, 1, first.Attempts)
	require.NoError(t, b.Nack(ctx, first, map[string]any{"message": "db down"}))

	second := fetchOne(t, b, "files")
	assert.Equal(t, 2, second.Attempts)
	require.NoError(t, b.Nack(ctx, second, map[string]any{"message": "db down"}))

	dead := fetchOne(t, b, "files"+wmbroker.DLQSuffix)
	assert.Equal(t, "generate-thumbnails", dead.OperationID)
	require.NoError(t, b.Ack(ctx, dead))
}

func TestMemoryReject(t *testing.T) {
	b := wmbroker.NewMemory()
	t.Cleanup(func() { _ = b.Close() })

	require.NoError(t, b.Publish(t.Context(), "files", []taskmill.Message{msg(5)}))
	task := fetchOne(t, b, "files")
	require.NoError(t, b.Reject(t.Context(), task, map[string]any{"message": "record gone"}))

	dead := fetchOne(t, b, "files"+wmbroker.DLQSuffix)
	assert.Equal(t, task.OperationID, dead.OperationID)
}

func TestAckForeignTask(t *testing.T) {
	b := wmbroker.NewMemory()
	t.Cleanup(func() { _ = b.Close() })

	require.Error(t, b.Ack(t.Context(), taskmill.Task{ID: "x", Receipt: "nope"}))
	require.Error(t, b.Ack(t.Context(), taskmill.Task{ID: "x", Receipt: (*message.Message)(nil)}))
}

type countingTask struct {
	calls    atomic.Int32
	failOnce atomic.Bool
}

func (c *countingTask) OperationID() string { return "generate-thumbnails" }

func (c *countingTask) Execute(_ context.Context, _ *struct {
	FileID int64 `json:"file_id"`
}) error {
	c.calls.Add(1)
	if c.failOnce.CompareAndSwap(true, false) {
		return errx.New("transient")
	}
	return nil
}

// End to end through the enqueuer and the worker, with one transient failure.
func TestMemoryWithWorker(t *testing.T) {
	b := wmbroker.NewMemory()
	t.Cleanup(func() { _ = b.Close() })

	task := &countingTask{}
	task.failOnce.Store(true)

	w := taskmill.NewWorker(b, "files",
		taskmill.WithConcurrency(2),
		taskmill.WithPollInterval(5*time.Millisecond),
		taskmill.WithMetricsRegistry(metrics.NewRegistry()),
	)
	taskmill.ForwardToAsyncTask(w, task)

	go func() { _ = w.Start(t.Context()) }()
	t.Cleanup(func() { _ = w.Stop() })

	enq := taskmill.NewEnqueuer(b, "files")
	require.NoError(t, enq.Enqueue(t.Context(), task.OperationID(), map[string]int64{"file_id": 5}))

	require.Eventually(t, func() bool {
		return w.Stats().Processed == 1
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, int32(2), task.calls.Load())
	assert.Equal(t, int64(1), w.Stats().Retried)
}

func TestSQLPublishFetchAck(t *testing.T) {
	db, _ := pgtest.DB(t)

	b, err := wmbroker.NewSQL(db.DB, wmbroker.SQLConfig{
		ConsumerGroup:  "filesmanager",
		PollInterval:   50 * time.Millisecond,
		RetryInterval:  50 * time.Millisecond,
		ResendInterval: 50 * time.Millisecond,
		BatchSize:      10,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	require.NoError(t, b.Publish(t.Context(), "files", []taskmill.Message{msg(3)}))

	task := fetchOne(t, b, "files")
	assert.Equal(t, "generate-thumbnails", task.OperationID)
	require.NoError(t, b.Ack(t.Context(), task))
}
