package kafkabroker

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rise-and-shine/filesmanager/observability/logger"
	"github.com/rise-and-shine/filesmanager/taskmill"
)

type fakeSession struct {
	sarama.ConsumerGroupSession

	ctx    context.Context
	mu     sync.Mutex
	marked []int64
}

func (s *fakeSession) Context() context.Context { return s.ctx }

func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	s.mu.Lock()
	s.marked = append(s.marked, msg.Offset)
	s.mu.Unlock()
}

func (s *fakeSession) markedOffsets() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.marked...)
}

type fakeClaim struct {
	sarama.ConsumerGroupClaim

	messages chan *sarama.ConsumerMessage
}

func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.messages }

// newTestBroker wires a broker to a mock producer and a consumer fed by claim.
func newTestBroker(t *testing.T) (*Broker, *mocks.SyncProducer, *fakeSession, *fakeClaim) {
	t.Helper()

	cfg := mocks.NewTestConfig()
	cfg.Producer.Return.Successes = true
	producer := mocks.NewSyncProducer(t, cfg)

	b := &Broker{
		cfg:       Config{DLQSuffix: ".dlq"},
		saramaCfg: cfg,
		producer:  producer,
		consumers: make(map[string]*consumer),
		logger:    logger.Named("test"),
	}

	c := newConsumer(nil, "files", b.logger)
	b.consumers["files"] = c

	session := &fakeSession{ctx: t.Context()}
	claim := &fakeClaim{messages: make(chan *sarama.ConsumerMessage, 10)}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.ConsumeClaim(session, claim)
	}()
	t.Cleanup(func() {
		close(claim.messages)
		<-done
	})

	return b, producer, session, claim
}

func record(offset int64, attempts, maxAttempts string) *sarama.ConsumerMessage {
	return &sarama.ConsumerMessage{
		Topic:     "files",
		Partition: 0,
		Offset:    offset,
		Key:       []byte("key-1"),
		Value:     []byte(`{"file_id":1,"owner_id":2}`),
		Headers: []*sarama.RecordHeader{
			{Key: []byte(headerOperationID), Value: []byte("generate-thumbnails")},
			{Key: []byte(headerAttempts), Value: []byte(attempts)},
			{Key: []byte(headerMaxAttempts), Value: []byte(maxAttempts)},
			{Key: []byte(headerMetaPrefix + "traceparent"), Value: []byte("00-abc")},
		},
	}
}

func fetchOne(t *testing.T, b *Broker) taskmill.Task {
	t.Helper()

	var tasks []taskmill.Task
	require.Eventually(t, func() bool {
		var err error
		tasks, err = b.Fetch(t.Context(), "files", 1)
		require.NoError(t, err)
		return len(tasks) == 1
	}, 2*time.Second, 5*time.Millisecond)
	return tasks[0]
}

func TestPublishEncodesHeaders(t *testing.T) {
	b, producer, _, _ := newTestBroker(t)

	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(m *sarama.ProducerMessage) error {
		headers := lo.SliceToMap(m.Headers, func(h sarama.RecordHeader) (string, string) {
			return string(h.Key), string(h.Value)
		})
		assert.Equal(t, "files", m.Topic)
		assert.Equal(t, "generate-thumbnails", headers[headerOperationID])
		assert.Equal(t, "0", headers[headerAttempts])
		assert.Equal(t, "3", headers[headerMaxAttempts])
		assert.Equal(t, "00-abc", headers[headerMetaPrefix+"traceparent"])
		return nil
	})

	err := b.Publish(t.Context(), "files", []taskmill.Message{{
		OperationID:    "generate-thumbnails",
		Meta:           map[string]string{"traceparent": "00-abc"},
		Payload:        json.RawMessage(`{}`),
		IdempotencyKey: "k1",
		MaxAttempts:    3,
	}})
	require.NoError(t, err)
}

func TestFetchDecodesAndAckMarks(t *testing.T) {
	b, _, session, claim := newTestBroker(t)

	claim.messages <- record(41, "0", "3")

	task := fetchOne(t, b)
	assert.Equal(t, "files/0/41", task.ID)
	assert.Equal(t, "generate-thumbnails", task.OperationID)
	assert.Equal(t, 1, task.Attempts)
	assert.Equal(t, 3, task.MaxAttempts)
	assert.Equal(t, "00-abc", task.Meta["traceparent"])

	require.NoError(t, b.Ack(t.Context(), task))
	assert.Equal(t, []int64{41}, session.markedOffsets())
}

func TestNackRepublishesWithAttempts(t *testing.T) {
	b, producer, session, claim := newTestBroker(t)

	claim.messages <- record(7, "0", "3")
	task := fetchOne(t, b)

	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(m *sarama.ProducerMessage) error {
		headers := lo.SliceToMap(m.Headers, func(h sarama.RecordHeader) (string, string) {
			return string(h.Key), string(h.Value)
		})
		assert.Equal(t, "files", m.Topic)
		assert.Equal(t, "1", headers[headerAttempts])
		return nil
	})

	require.NoError(t, b.Nack(t.Context(), task, map[string]any{"message": "db down"}))
	assert.Equal(t, []int64{7}, session.markedOffsets())
}

func TestExhaustedNackGoesToDLQ(t *testing.T) {
	b, producer, session, claim := newTestBroker(t)

	claim.messages <- record(9, "2", "3")
	task := fetchOne(t, b)
	assert.Equal(t, 3, task.Attempts)

	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(m *sarama.ProducerMessage) error {
		assert.Equal(t, "files.dlq", m.Topic)
		return nil
	})

	require.NoError(t, b.Nack(t.Context(), task, map[string]any{"message": "still down"}))
	assert.Equal(t, []int64{9}, session.markedOffsets())
}

func TestRejectGoesToDLQ(t *testing.T) {
	b, producer, _, claim := newTestBroker(t)

	claim.messages <- record(3, "0", "3")
	task := fetchOne(t, b)

	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(m *sarama.ProducerMessage) error {
		assert.Equal(t, "files.dlq", m.Topic)
		return nil
	})
	require.NoError(t, b.Reject(t.Context(), task, map[string]any{"message": "record gone"}))
}

func TestFetchIsNonBlocking(t *testing.T) {
	b, _, _, _ := newTestBroker(t)

	tasks, err := b.Fetch(t.Context(), "files", 5)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestAckForeignTask(t *testing.T) {
	b, _, _, _ := newTestBroker(t)

	err := b.Ack(t.Context(), taskmill.Task{ID: "1"})
	require.Error(t, err)
}
