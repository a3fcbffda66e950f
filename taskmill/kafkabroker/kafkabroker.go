// Package kafkabroker is the Kafka taskmill broker.
//
// Each queue is a topic consumed by one consumer group. A partition hands out one
// record at a time and waits until the worker settles it, so offsets are committed
// in order. Nack republishes the record with an incremented attempts header; once
// attempts are exhausted, and on Reject, the record goes to the dead letter topic.
// Redelivery is immediate; Kafka has no per-record delay.
package kafkabroker

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/code19m/errx"
	"github.com/rcrowley/go-metrics"
	"github.com/samber/lo"

	"github.com/rise-and-shine/filesmanager/observability/logger"
	"github.com/rise-and-shine/filesmanager/taskmill"
)

var _ taskmill.Broker = (*Broker)(nil)

// Broker implements taskmill.Broker on Kafka.
type Broker struct {
	cfg       Config
	saramaCfg *sarama.Config
	producer  sarama.SyncProducer
	newGroup  func() (sarama.ConsumerGroup, error)

	consumers map[string]*consumer
	mu        sync.Mutex
	closed    bool

	logger logger.Logger
}

// Option customizes a Broker.
type Option func(*Broker)

// WithMetricsRegistry makes sarama report its client metrics into r.
func WithMetricsRegistry(r metrics.Registry) Option {
	return func(b *Broker) {
		b.saramaCfg.MetricRegistry = r
	}
}

// New connects the producer. Consumer groups are created on the first Fetch of a queue.
func New(cfg Config, serviceName string, opts ...Option) (*Broker, error) {
	if cfg.GroupID == "" {
		cfg.GroupID = serviceName
	}
	if cfg.DLQSuffix == "" {
		cfg.DLQSuffix = ".dlq"
	}

	saramaCfg, err := cfg.saramaConfig(serviceName)
	if err != nil {
		return nil, errx.Wrap(err)
	}

	b := &Broker{
		cfg:       cfg,
		saramaCfg: saramaCfg,
		consumers: make(map[string]*consumer),
		logger:    logger.Named("taskmill.kafka"),
	}
	for _, opt := range opts {
		opt(b)
	}

	brokers := strings.Split(cfg.Brokers, ",")
	b.producer, err = sarama.NewSyncProducer(brokers, saramaCfg)
	if err != nil {
		return nil, errx.Wrap(err)
	}
	b.newGroup = func() (sarama.ConsumerGroup, error) {
		return sarama.NewConsumerGroup(brokers, cfg.GroupID, saramaCfg)
	}

	return b, nil
}

func (b *Broker) Publish(_ context.Context, queue string, msgs []taskmill.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	records := lo.Map(msgs, func(m taskmill.Message, _ int) *sarama.ProducerMessage {
		return toProducerMessage(queue, m, 0)
	})

	err := b.producer.SendMessages(records)
	return errx.Wrap(err, errx.WithDetails(errx.D{"topic": queue, "count": len(records)}))
}

// Fetch returns the records currently handed out by the partition consumers.
func (b *Broker) Fetch(ctx context.Context, queue string, maxTasks int) ([]taskmill.Task, error) {
	c, err := b.consumerFor(queue)
	if err != nil {
		return nil, errx.Wrap(err)
	}

	tasks := make([]taskmill.Task, 0, maxTasks)
	for len(tasks) < maxTasks {
		select {
		case <-ctx.Done():
			return tasks, nil
		case d := <-c.deliveries:
			task := toTask(queue, d.msg)
			task.Receipt = d

			if task.ExpiresAt != nil && task.ExpiresAt.Before(time.Now()) {
				err = b.deadLetter(task, map[string]any{
					"reason": "task's expires_at timestamp has been reached before it could be processed",
				})
				if err != nil {
					d.release()
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
	d, err := receipt(task)
	if err != nil {
		return errx.Wrap(err)
	}
	d.commit()
	return nil
}

func (b *Broker) Nack(_ context.Context, task taskmill.Task, reason map[string]any) error {
	d, err := receipt(task)
	if err != nil {
		return errx.Wrap(err)
	}

	if task.Attempts >= task.MaxAttempts {
		return b.deadLetter(task, reason)
	}

	_, _, err = b.producer.SendMessage(toProducerMessage(d.msg.Topic, toMessage(task, d.msg.Key), task.Attempts))
	if err != nil {
		// the record stays uncommitted and comes back after a rebalance
		d.release()
		return errx.Wrap(err)
	}
	d.commit()
	return nil
}

func (b *Broker) Reject(_ context.Context, task taskmill.Task, reason map[string]any) error {
	return b.deadLetter(task, reason)
}

func (b *Broker) deadLetter(task taskmill.Task, reason map[string]any) error {
	d, err := receipt(task)
	if err != nil {
		return errx.Wrap(err)
	}

	record := toProducerMessage(d.msg.Topic+b.cfg.DLQSuffix, toMessage(task, d.msg.Key), task.Attempts)
	record.Headers = append(record.Headers, sarama.RecordHeader{
		Key:   []byte(headerDLQReason),
		Value: []byte(reasonString(reason)),
	})

	if _, _, err = b.producer.SendMessage(record); err != nil {
		d.release()
		return errx.Wrap(err)
	}
	d.commit()
	return nil
}

func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	var errs []error
	for _, c := range b.consumers {
		errs = append(errs, c.close())
	}
	errs = append(errs, b.producer.Close())

	return errx.Wrap(errors.Join(errs...))
}

func (b *Broker) consumerFor(queue string) (*consumer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, errx.New("[kafkabroker]: broker is closed")
	}
	if c, ok := b.consumers[queue]; ok {
		return c, nil
	}

	group, err := b.newGroup()
	if err != nil {
		return nil, errx.Wrap(err)
	}

	c := newConsumer(group, queue, b.logger)
	b.consumers[queue] = c
	c.start()

	return c, nil
}

func receipt(task taskmill.Task) (*delivery, error) {
	d, ok := task.Receipt.(*delivery)
	if !ok || d == nil {
		return nil, errx.New("[kafkabroker]: task was not fetched from this broker",
			errx.WithDetails(errx.D{"task_id": task.ID}))
	}
	return d, nil
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
