package taskmill_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/code19m/errx"
	"github.com/rcrowley/go-metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rise-and-shine/filesmanager/taskmill"
)

type thumbTask struct {
	calls atomic.Int32
	err   error
	panic bool
	seen  atomic.Pointer[thumbPayload]
}

func (t *thumbTask) OperationID() string { return "generate-thumbnails" }

func (t *thumbTask) Execute(_ context.Context, p *thumbPayload) error {
	t.calls.Add(1)
	t.seen.Store(p)
	if t.panic {
		panic("boom")
	}
	return t.err
}

type reconcileJob struct {
	calls atomic.Int32
}

func (j *reconcileJob) OperationID() string { return "reconcile-thumbnails" }

func (j *reconcileJob) Execute(context.Context) error {
	j.calls.Add(1)
	return nil
}

func runWorker(t *testing.T, b *fakeBroker, register func(taskmill.Worker)) taskmill.Worker {
	t.Helper()

	w := taskmill.NewWorker(b, "files",
		taskmill.WithConcurrency(1),
		taskmill.WithPollInterval(5*time.Millisecond),
		taskmill.WithMetricsRegistry(metrics.NewRegistry()),
	)
	register(w)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Start(t.Context())
	}()

	t.Cleanup(func() {
		require.NoError(t, w.Stop())
		<-done
	})
	return w
}

func waitSettled(t *testing.T, b *fakeBroker, n int) {
	t.Helper()
	for range n {
		select {
		case <-b.settled:
		case <-time.After(5 * time.Second):
			t.Fatal("task was not settled in time")
		}
	}
}

func TestWorkerSettlesTasks(t *testing.T) {
	tests := []struct {
		name         string
		task         *thumbTask
		op           string
		payload      any
		wantAcked    int
		wantNacked   int
		wantRejected int
	}{
		{
			name:      "success is acked",
			task:      &thumbTask{},
			op:        "generate-thumbnails",
			payload:   thumbPayload{FileID: 1, OwnerID: 2},
			wantAcked: 1,
		},
		{
			name:       "transient error is nacked",
			task:       &thumbTask{err: errx.New("db unavailable")},
			op:         "generate-thumbnails",
			payload:    thumbPayload{FileID: 1, OwnerID: 2},
			wantNacked: 1,
		},
		{
			name:         "permanent error is rejected",
			task:         &thumbTask{err: taskmill.Permanent(errx.New("record gone"))},
			op:           "generate-thumbnails",
			payload:      thumbPayload{FileID: 1, OwnerID: 2},
			wantRejected: 1,
		},
		{
			name:         "unknown operation is rejected",
			task:         &thumbTask{},
			op:           "resize-video",
			payload:      struct{}{},
			wantRejected: 1,
		},
		{
			name:         "undecodable payload is rejected",
			task:         &thumbTask{},
			op:           "generate-thumbnails",
			payload:      "not an object",
			wantRejected: 1,
		},
		{
			name:       "panic is nacked",
			task:       &thumbTask{panic: true},
			op:         "generate-thumbnails",
			payload:    thumbPayload{FileID: 1, OwnerID: 2},
			wantNacked: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newFakeBroker()
			require.NoError(t, taskmill.NewEnqueuer(b, "files").Enqueue(t.Context(), tt.op, tt.payload))

			runWorker(t, b, func(w taskmill.Worker) {
				taskmill.ForwardToAsyncTask(w, tt.task)
			})
			waitSettled(t, b, 1)

			acked, nacked, rejected := b.counts()
			assert.Equal(t, tt.wantAcked, acked)
			assert.Equal(t, tt.wantNacked, nacked)
			assert.Equal(t, tt.wantRejected, rejected)
		})
	}
}

func TestWorkerDecodesPayload(t *testing.T) {
	b := newFakeBroker()
	task := &thumbTask{}
	require.NoError(t, taskmill.NewEnqueuer(b, "files").
		Enqueue(t.Context(), task.OperationID(), thumbPayload{FileID: 10, OwnerID: 20}))

	w := runWorker(t, b, func(w taskmill.Worker) {
		taskmill.ForwardToAsyncTask(w, task)
	})
	waitSettled(t, b, 1)

	got := task.seen.Load()
	require.NotNil(t, got)
	assert.Equal(t, thumbPayload{FileID: 10, OwnerID: 20}, *got)

	stats := w.Stats()
	assert.Equal(t, int64(1), stats.Processed)
	assert.Equal(t, int64(0), stats.Failed)
}

func TestWorkerRunsScheduledJob(t *testing.T) {
	b := newFakeBroker()
	job := &reconcileJob{}
	require.NoError(t, taskmill.NewEnqueuer(b, "files").Enqueue(t.Context(), job.OperationID(), struct{}{}))

	runWorker(t, b, func(w taskmill.Worker) {
		taskmill.ForwardToScheduledJob(w, job)
	})
	waitSettled(t, b, 1)

	assert.Equal(t, int32(1), job.calls.Load())
}

func TestWorkerStopWithoutStart(t *testing.T) {
	w := taskmill.NewWorker(newFakeBroker(), "files", taskmill.WithMetricsRegistry(metrics.NewRegistry()))
	assert.NoError(t, w.Stop())
	assert.NoError(t, w.Stop())
}

func TestIsPermanent(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "plain", err: errx.New("boom"), want: false},
		{name: "marked", err: taskmill.Permanent(errx.New("boom", errx.WithCode("FILE_NOT_FOUND"))), want: true},
		{name: "marked then wrapped", err: errx.Wrap(taskmill.Permanent(errx.New("boom"))), want: true},
		{name: "invalid payload", err: errx.New("bad", errx.WithCode(taskmill.CodeInvalidPayload)), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, taskmill.IsPermanent(tt.err))
		})
	}
}

func TestPermanentKeepsCode(t *testing.T) {
	err := taskmill.Permanent(errx.New("missing", errx.WithCode("FILE_NOT_FOUND")))
	assert.True(t, errx.IsCodeIn(err, "FILE_NOT_FOUND"))
}
