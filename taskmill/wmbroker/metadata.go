package wmbroker

import (
	"strconv"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/spf13/cast"

	"github.com/rise-and-shine/filesmanager/taskmill"
)

const (
	metadataOperationID    = "operation_id"
	metadataAttempts       = "attempts"
	metadataMaxAttempts    = "max_attempts"
	metadataExpiresAt      = "expires_at"
	metadataIdempotencyKey = "idempotency_key"
	metadataDLQReason      = "dlq_reason"
	metadataMetaPrefix     = "meta."
)

// toWatermill encodes m. attempts is the number of deliveries already made.
func toWatermill(m taskmill.Message, attempts int) *message.Message {
	msg := message.NewMessage(watermill.NewUUID(), message.Payload(m.Payload))

	msg.Metadata.Set(metadataOperationID, m.OperationID)
	msg.Metadata.Set(metadataAttempts, strconv.Itoa(attempts))
	msg.Metadata.Set(metadataMaxAttempts, strconv.Itoa(m.MaxAttempts))
	msg.Metadata.Set(metadataIdempotencyKey, m.IdempotencyKey)
	if m.ExpiresAt != nil {
		msg.Metadata.Set(metadataExpiresAt, m.ExpiresAt.UTC().Format(time.RFC3339Nano))
	}
	for k, v := range m.Meta {
		msg.Metadata.Set(metadataMetaPrefix+k, v)
	}
	return msg
}

func toTask(queue string, msg *message.Message) taskmill.Task {
	task := taskmill.Task{
		ID:          msg.UUID,
		Queue:       queue,
		OperationID: msg.Metadata.Get(metadataOperationID),
		Meta:        make(map[string]string),
		Payload:     []byte(msg.Payload),
		Attempts:    cast.ToInt(msg.Metadata.Get(metadataAttempts)) + 1,
		MaxAttempts: cast.ToInt(msg.Metadata.Get(metadataMaxAttempts)),
		Receipt:     msg,
	}

	if v := msg.Metadata.Get(metadataExpiresAt); v != "" {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			task.ExpiresAt = &t
		}
	}
	for k, v := range msg.Metadata {
		if name, ok := strings.CutPrefix(k, metadataMetaPrefix); ok {
			task.Meta[name] = v
		}
	}
	return task
}

func toMessage(task taskmill.Task) taskmill.Message {
	var key string
	if msg, ok := task.Receipt.(*message.Message); ok {
		key = msg.Metadata.Get(metadataIdempotencyKey)
	}
	return taskmill.Message{
		OperationID:    task.OperationID,
		Meta:           task.Meta,
		Payload:        task.Payload,
		IdempotencyKey: key,
		ExpiresAt:      task.ExpiresAt,
		MaxAttempts:    task.MaxAttempts,
	}
}
