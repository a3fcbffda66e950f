// Package wmbroker runs taskmill on watermill pub/sub.
//
// NewMemory uses the gochannel driver and keeps everything in process.
// NewSQL uses watermill-sql on PostgreSQL. Nack republishes the message with an
// incremented attempts counter, exhausted and rejected messages are published to
// the "<queue>_dlq" topic. Redelivery is immediate.
package wmbroker

import (
	"context"
	stdsql "database/sql"
	"errors"
	"sync"
	"time"

	wsql "github.com/ThreeDotsLabs/watermill-sql/v3/pkg/sql"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/code19m/errx"

	"github.com/rise-and-shine/filesmanager/observability/logger"
	"github.com/rise-and-shine/filesmanager/taskmill"
)

// DLQSuffix is appended to the queue name to form the dead letter topic.
const DLQSuffix = "_dlq"

var _ taskmill.Broker = (*Broker)(nil)

// Broker implements taskmill.Broker on a watermill publisher and subscriber.
type Broker struct {
	publisher  message.Publisher
	subscriber message.Subscriber

	subs      map[string]<-chan *message.Message
	subCtx    context.Context
	subCancel context.CancelFunc
	mu        sync.Mutex
	closed    bool
}

// New wraps an existing publisher and subscriber. Close closes both.
func New(publisher message.Publisher, subscriber message.Subscriber) *Broker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Broker{
		publisher:  publisher,
		subscriber: subscriber,
		subs:       make(map[string]<-chan *message.Message),
		subCtx:     ctx,
		subCancel:  cancel,
	}
}

// NewMemory creates an in-process broker. Messages are lost on restart.
func NewMemory() *Broker {
	pubSub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 64,
		// keep messages published before the worker subscribes
		Persistent: true,
	}, newLoggerAdapter(logger.Named("taskmill.watermill")))

	return New(pubSub, pubSub)
}

// SQLConfig configures the watermill-sql driver.
type SQLConfig struct {
	ConsumerGroup  string        `yaml:"consumer_group"`
	PollInterval   time.Duration `yaml:"poll_interval"   default:"500ms"`
	RetryInterval  time.Duration `yaml:"retry_interval"  default:"1s"`
	ResendInterval time.Duration `yaml:"resend_interval" default:"1s"`
	BatchSize      int           `yaml:"batch_size"      default:"10"`
}

// NewSQL creates a broker storing messages in PostgreSQL tables managed by watermill-sql.
func NewSQL(db *stdsql.DB, cfg SQLConfig) (*Broker, error) {
	loggerAdapter := newLoggerAdapter(logger.Named("taskmill.watermill"))
	beginner := db

	publisher, err := wsql.NewPublisher(beginner, wsql.PublisherConfig{
		SchemaAdapter:        wsql.DefaultPostgreSQLSchema{},
		AutoInitializeSchema: true,
	}, loggerAdapter)
	if err != nil {
		return nil, errx.Wrap(err)
	}

	subscriber, err := wsql.NewSubscriber(beginner, wsql.SubscriberConfig{
		ConsumerGroup:  cfg.ConsumerGroup,
		BackoffManager: wsql.NewDefaultBackoffManager(cfg.PollInterval, cfg.RetryInterval),
		ResendInterval: cfg.ResendInterval,
		SchemaAdapter: wsql.DefaultPostgreSQLSchema{
			SubscribeBatchSize: cfg.BatchSize,
		},
		OffsetsAdapter:   wsql.DefaultPostgreSQLOffsetsAdapter{},
		InitializeSchema: true,
	}, loggerAdapter)
	if err != nil {
		return nil, errx.Wrap(err)
	}

	return New(publisher, subscriber), nil
}

func (b *Broker) Publish(_ context.Context, queue string, msgs []taskmill.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	out := make([]*message.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toWatermill(m, 0))
	}

	return errx.Wrap(b.publisher.Publish(queue, out...), errx.WithDetails(errx.D{"topic": queue}))
}

// Fetch drains up to max messages already waiting on the subscription.
func (b *Broker) Fetch(ctx context.Context, queue string, maxTasks int) ([]taskmill.Task, error) {
	ch, err := b.subscription(queue)
	if err != nil {
		return nil, errx.Wrap(err)
	}

	tasks := make([]taskmill.Task, 0, maxTasks)
	for len(tasks) < maxTasks {
		select {
		case <-ctx.Done():
			return tasks, nil
		case msg, ok := <-ch:
			if !ok {
				return tasks, errx.New("[wmbroker]: subscription closed")
			}

			task := toTask(queue, msg)
			if task.ExpiresAt != nil && task.ExpiresAt.Before(time.Now()) {
				err = b.deadLetter(queue, task, msg, map[string]any{
					"reason": "task's expires_at timestamp has been reached before it could be processed",
				})
				if err != nil {
					return tasks, errx.Wrap(err)
				}
				continue
			}

			tasks = append(tasks, task)
		default:
			return tasks, nil
		}
	}
	return tasks, nil
}

func (b *Broker) Ack(_ context.Context, task taskmill.Task) error {
	msg, err := receipt(task)
	if err != nil {
		return errx.Wrap(err)
	}
	msg.Ack()
	return nil
}

func (b *Broker) Nack(_ context.Context, task taskmill.Task, reason map[string]any) error {
	msg, err := receipt(task)
	if err != nil {
		return errx.Wrap(err)
	}

	if task.Attempts >= task.MaxAttempts {
		return b.deadLetter(task.Queue, task, msg, reason)
	}

	err = b.publisher.Publish(task.Queue, toWatermill(toMessage(task), task.Attempts))
	if err != nil {
		// the subscriber redelivers the original instead
		msg.Nack()
		return errx.Wrap(err)
	}
	msg.Ack()
	return nil
}

func (b *Broker) Reject(_ context.Context, task taskmill.Task, reason map[string]any) error {
	msg, err := receipt(task)
	if err != nil {
		return errx.Wrap(err)
	}
	return b.deadLetter(task.Queue, task, msg, reason)
}

func (b *Broker) deadLetter(queue string, task taskmill.Task, msg *message.Message, reason map[string]any) error {
	dlq := toWatermill(toMessage(task), task.Attempts)
	dlq.Metadata.Set(metadataDLQReason, reasonString(reason))

	if err := b.publisher.Publish(queue+DLQSuffix, dlq); err != nil {
		msg.Nack()
		return errx.Wrap(err)
	}
	msg.Ack()
	return nil
}

func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	b.subCancel()

	errs := []error{b.subscriber.Close()}
	// gochannel uses one value for both sides
	if any(b.publisher) != any(b.subscriber) {
		errs = append(errs, b.publisher.Close())
	}
	return errx.Wrap(errors.Join(errs...))
}

func (b *Broker) subscription(queue string) (<-chan *message.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, errx.New("[wmbroker]: broker is closed")
	}
	if ch, ok := b.subs[queue]; ok {
		return ch, nil
	}

	ch, err := b.subscriber.Subscribe(b.subCtx, queue)
	if err != nil {
		return nil, errx.Wrap(err)
	}
	b.subs[queue] = ch
	return ch, nil
}

func receipt(task taskmill.Task) (*message.Message, error) {
	msg, ok := task.Receipt.(*message.Message)
	if !ok || msg == nil {
		return nil, errx.New("[wmbroker]: task was not fetched from this broker",
			errx.WithDetails(errx.D{"task_id": task.ID}))
	}
	return msg, nil
}

func reasonString(reason map[string]any) string {
	if msg, ok := reason["message"].(string); ok {
		return msg
	}
	if r, ok := reason["reason"].(string); ok {
		return r
	}
	return ""
}
