package kafkabroker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/rise-and-shine/filesmanager/observability/logger"
)

const consumeRetryDelay = time.Second

// delivery is a record waiting to be settled by the worker.
type delivery struct {
	msg     *sarama.ConsumerMessage
	session sarama.ConsumerGroupSession
	done    chan bool
	once    sync.Once
}

// commit marks the offset and lets the partition move on.
func (d *delivery) commit() {
	d.once.Do(func() {
		d.session.MarkMessage(d.msg, "")
		d.done <- true
	})
}

// release lets the partition stop without marking the offset.
func (d *delivery) release() {
	d.once.Do(func() {
		d.done <- false
	})
}

type consumer struct {
	group      sarama.ConsumerGroup
	topic      string
	deliveries chan *delivery

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger logger.Logger
}

func newConsumer(group sarama.ConsumerGroup, topic string, l logger.Logger) *consumer {
	ctx, cancel := context.WithCancel(context.Background())
	return &consumer{
		group:      group,
		topic:      topic,
		deliveries: make(chan *delivery),
		ctx:        ctx,
		cancel:     cancel,
		logger:     l.With("topic", topic),
	}
}

func (c *consumer) start() {
	c.wg.Add(1)
	go c.run()
}

// run is the main consume loop, parent of the ConsumeClaim partition loops.
func (c *consumer) run() {
	defer c.wg.Done()

	for {
		err := c.group.Consume(c.ctx, []string{c.topic}, c)
		switch {
		case errors.Is(err, sarama.ErrClosedConsumerGroup), c.ctx.Err() != nil:
			return
		case err != nil:
			c.logger.With("error", err).Error("[kafkabroker]: consume failed")
			select {
			case <-c.ctx.Done():
				return
			case <-time.After(consumeRetryDelay):
			}
		default:
			c.logger.Info("[kafkabroker]: rebalancing occurred, waiting for new messages")
		}
	}
}

func (c *consumer) close() error {
	c.cancel()
	err := c.group.Close()
	c.wg.Wait()
	return err
}

// Setup implements sarama.ConsumerGroupHandler.
func (c *consumer) Setup(_ sarama.ConsumerGroupSession) error {
	return nil
}

// Cleanup implements sarama.ConsumerGroupHandler.
func (c *consumer) Cleanup(_ sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim hands records to Fetch one at a time and waits for each to be settled.
// A released record ends the claim so that its offset is not skipped.
func (c *consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	// ConsumeClaim already runs in its own goroutine per partition
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}

			d := &delivery{msg: msg, session: session, done: make(chan bool, 1)}

			select {
			case c.deliveries <- d:
			case <-session.Context().Done():
				return nil
			}

			select {
			case committed := <-d.done:
				if !committed {
					return nil
				}
			case <-session.Context().Done():
				return nil
			}

		// returning late on rebalance raises ErrRebalanceInProgress
		case <-session.Context().Done():
			return nil
		}
	}
}
