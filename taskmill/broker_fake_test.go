package taskmill_test

import (
	"context"
	"strconv"
	"sync"

	"github.com/code19m/errx"

	"github.com/rise-and-shine/filesmanager/taskmill"
)

// fakeBroker keeps tasks in memory and records how each one was settled.
type fakeBroker struct {
	mu sync.Mutex

	seq        int
	pending    []taskmill.Task
	published  []taskmill.Message
	keys       map[string]bool
	publishErr []error

	acked    []taskmill.Task
	nacked   []taskmill.Task
	rejected []taskmill.Task
	settled  chan struct{}
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{
		keys:    make(map[string]bool),
		settled: make(chan struct{}, 100),
	}
}

func (b *fakeBroker) Publish(_ context.Context, queue string, msgs []taskmill.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.publishErr) > 0 {
		err := b.publishErr[0]
		b.publishErr = b.publishErr[1:]
		return err
	}

	for _, m := range msgs {
		if b.keys[m.IdempotencyKey] {
			return errx.New("duplicate", errx.WithCode(taskmill.CodeDuplicateTask))
		}
	}

	for _, m := range msgs {
		b.seq++
		b.keys[m.IdempotencyKey] = true
		b.published = append(b.published, m)
		b.pending = append(b.pending, taskmill.Task{
			ID:          strconv.Itoa(b.seq),
			Queue:       queue,
			OperationID: m.OperationID,
			Meta:        m.Meta,
			Payload:     m.Payload,
			Attempts:    1,
			MaxAttempts: m.MaxAttempts,
			ExpiresAt:   m.ExpiresAt,
		})
	}
	return nil
}

func (b *fakeBroker) Fetch(_ context.Context, _ string, maxTasks int) ([]taskmill.Task, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := min(maxTasks, len(b.pending))
	out := b.pending[:n:n]
	b.pending = b.pending[n:]
	return out, nil
}

func (b *fakeBroker) Ack(_ context.Context, task taskmill.Task) error {
	b.mu.Lock()
	b.acked = append(b.acked, task)
	b.mu.Unlock()
	b.settled <- struct{}{}
	return nil
}

func (b *fakeBroker) Nack(_ context.Context, task taskmill.Task, _ map[string]any) error {
	b.mu.Lock()
	b.nacked = append(b.nacked, task)
	b.mu.Unlock()
	b.settled <- struct{}{}
	return nil
}

func (b *fakeBroker) Reject(_ context.Context, task taskmill.Task, _ map[string]any) error {
	b.mu.Lock()
	b.rejected = append(b.rejected, task)
	b.mu.Unlock()
	b.settled <- struct{}{}
	return nil
}

func (b *fakeBroker) Close() error { return nil }

func (b *fakeBroker) counts() (acked, nacked, rejected int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.acked), len(b.nacked), len(b.rejected)
}
