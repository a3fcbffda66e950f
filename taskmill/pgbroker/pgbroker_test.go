package pgbroker_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/code19m/errx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rise-and-shine/filesmanager/internal/pgtest"
	"github.com/rise-and-shine/filesmanager/taskmill"
	"github.com/rise-and-shine/filesmanager/taskmill/pgbroker"
)

func newBroker(t *testing.T, opts ...pgbroker.Option) *pgbroker.Broker {
	t.Helper()

	db, _ := pgtest.DB(t)
	b, err := pgbroker.New(db, opts...)
	require.NoError(t, err)
	require.NoError(t, b.Migrate(t.Context()))
	return b
}

func message(key string, maxAttempts int) taskmill.Message {
	return taskmill.Message{
		OperationID:    "generate-thumbnails",
		Meta:           map[string]string{"traceparent": "00-abc"},
		Payload:        json.RawMessage(`{"file_id":1,"owner_id":2}`),
		IdempotencyKey: key,
		ScheduledAt:    time.Now().Add(-time.Second),
		MaxAttempts:    maxAttempts,
	}
}

func TestNewValidation(t *testing.T) {
	_, err := pgbroker.New(nil, pgbroker.WithSchema(""))
	require.Error(t, err)

	_, err = pgbroker.New(nil, pgbroker.WithVisibilityTimeout(time.Millisecond))
	require.Error(t, err)
}

func TestPublishFetchAck(t *testing.T) {
	b := newBroker(t)
	ctx := t.Context()

	require.NoError(t, b.Publish(ctx, "files", []taskmill.Message{message("k1", 3)}))

	tasks, err := b.Fetch(ctx, "files", 10)
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	task := tasks[0]
	assert.Equal(t, "generate-thumbnails", task.OperationID)
	assert.Equal(t, 1, task.Attempts)
	assert.Equal(t, "00-abc", task.Meta["traceparent"])
	assert.JSONEq(t, `{"file_id":1,"owner_id":2}`, string(task.Payload))

	// claimed tasks are invisible to other fetchers
	again, err := b.Fetch(ctx, "files", 10)
	require.NoError(t, err)
	assert.Empty(t, again)

	require.NoError(t, b.Ack(ctx, task))

	stats, err := b.Stats(ctx, "files")
	require.NoError(t, err)
	assert.Equal(t, taskmill.QueueStats{Queue: "files"}, stats)
}

func TestPublishDuplicate(t *testing.T) {
	b := newBroker(t)
	ctx := t.Context()

	require.NoError(t, b.Publish(ctx, "files", []taskmill.Message{message("slot-1", 3)}))

	err := b.Publish(ctx, "files", []taskmill.Message{message("slot-1", 3)})
	require.Error(t, err)
	assert.True(t, errx.IsCodeIn(err, taskmill.CodeDuplicateTask))
}

func TestNackRetriesThenDeadLetters(t *testing.T) {
	b := newBroker(t, pgbroker.WithRetryStrategy(taskmill.NewFixedDelayStrategy(0)))
	ctx := t.Context()

	require.NoError(t, b.Publish(ctx, "files", []taskmill.Message{message("k1", 2)}))

	for attempt := 1; attempt <= 2; attempt++ {
		tasks, err := b.Fetch(ctx, "files", 1)
		require.NoError(t, err)
		require.Len(t, tasks, 1)
		assert.Equal(t, attempt, tasks[0].Attempts)
		require.NoError(t, b.Nack(ctx, tasks[0], map[string]any{"code": "INTERNAL"}))
	}

	tasks, err := b.Fetch(ctx, "files", 1)
	require.NoError(t, err)
	assert.Empty(t, tasks)

	stats, err := b.Stats(ctx, "files")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.InDLQ)
}

func TestRejectDeadLettersImmediately(t *testing.T) {
	b := newBroker(t)
	ctx := t.Context()

	require.NoError(t, b.Publish(ctx, "files", []taskmill.Message{message("k1", 5)}))

	tasks, err := b.Fetch(ctx, "files", 1)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	require.NoError(t, b.Reject(ctx, tasks[0], map[string]any{"code": "FILE_NOT_FOUND"}))

	stats, err := b.Stats(ctx, "files")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.InDLQ)
	assert.Equal(t, int64(0), stats.Available)
}

func TestExpiredTaskIsNotDelivered(t *testing.T) {
	b := newBroker(t)
	ctx := t.Context()

	msg := message("k1", 3)
	expired := time.Now().Add(-time.Millisecond)
	msg.ExpiresAt = &expired
	require.NoError(t, b.Publish(ctx, "files", []taskmill.Message{msg}))

	tasks, err := b.Fetch(ctx, "files", 1)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestFetchBatchSize(t *testing.T) {
	b := newBroker(t)

	_, err := b.Fetch(t.Context(), "files", 0)
	require.Error(t, err)
}
