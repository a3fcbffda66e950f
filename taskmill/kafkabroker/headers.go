package kafkabroker

import (
	"strconv"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/samber/lo"
	"github.com/spf13/cast"

	"github.com/rise-and-shine/filesmanager/taskmill"
)

const (
	headerOperationID = "x-operation-id"
	headerAttempts    = "x-attempts"
	headerMaxAttempts = "x-max-attempts"
	headerExpiresAt   = "x-expires-at"
	headerDLQReason   = "x-dlq-reason"
	headerMetaPrefix  = "x-meta-"
)

// toProducerMessage encodes a message. attempts is the number of deliveries already made.
func toProducerMessage(topic string, m taskmill.Message, attempts int) *sarama.ProducerMessage {
	headers := []sarama.RecordHeader{
		{Key: []byte(headerOperationID), Value: []byte(m.OperationID)},
		{Key: []byte(headerAttempts), Value: []byte(strconv.Itoa(attempts))},
		{Key: []byte(headerMaxAttempts), Value: []byte(strconv.Itoa(m.MaxAttempts))},
	}
	if m.ExpiresAt != nil {
		headers = append(headers, sarama.RecordHeader{
			Key:   []byte(headerExpiresAt),
			Value: []byte(m.ExpiresAt.UTC().Format(time.RFC3339Nano)),
		})
	}
	for k, v := range m.Meta {
		headers = append(headers, sarama.RecordHeader{Key: []byte(headerMetaPrefix + k), Value: []byte(v)})
	}

	return &sarama.ProducerMessage{
		Topic:   topic,
		Key:     sarama.StringEncoder(m.IdempotencyKey),
		Value:   sarama.ByteEncoder(m.Payload),
		Headers: headers,
	}
}

// toTask decodes a consumed record. Attempts counts the current delivery.
func toTask(queue string, msg *sarama.ConsumerMessage) taskmill.Task {
	headers := lo.SliceToMap(msg.Headers, func(h *sarama.RecordHeader) (string, string) {
		return string(h.Key), string(h.Value)
	})

	task := taskmill.Task{
		ID:          topicPartitionOffset(msg),
		Queue:       queue,
		OperationID: headers[headerOperationID],
		Meta:        make(map[string]string),
		Payload:     msg.Value,
		Attempts:    cast.ToInt(headers[headerAttempts]) + 1,
		MaxAttempts: cast.ToInt(headers[headerMaxAttempts]),
	}

	if v, ok := headers[headerExpiresAt]; ok {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			task.ExpiresAt = &t
		}
	}
	for k, v := range headers {
		if name, ok := strings.CutPrefix(k, headerMetaPrefix); ok {
			task.Meta[name] = v
		}
	}
	return task
}

// toMessage rebuilds the original message of a delivered task for republishing.
func toMessage(task taskmill.Task, key []byte) taskmill.Message {
	return taskmill.Message{
		OperationID:    task.OperationID,
		Meta:           task.Meta,
		Payload:        task.Payload,
		IdempotencyKey: string(key),
		ExpiresAt:      task.ExpiresAt,
		MaxAttempts:    task.MaxAttempts,
	}
}

func topicPartitionOffset(msg *sarama.ConsumerMessage) string {
	return msg.Topic + "/" + strconv.Itoa(int(msg.Partition)) + "/" + strconv.FormatInt(msg.Offset, 10)
}
