package taskmill

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/code19m/errx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/rise-and-shine/filesmanager/meta"
	"github.com/rise-and-shine/filesmanager/observability/alert"
	"github.com/rise-and-shine/filesmanager/observability/logger"
	"github.com/rise-and-shine/filesmanager/observability/tracing"
)

// Worker consumes tasks of one queue and dispatches them to registered handlers.
type Worker interface {
	// Register adds a handler. Use ForwardToAsyncTask or ForwardToScheduledJob to build one.
	Register(h Handler)

	// Start runs the fetch loops. Blocks until Stop is called or ctx is cancelled.
	Start(ctx context.Context) error

	// Stop signals the loops to finish the task in hand and waits for them.
	Stop() error

	// Stats returns the worker counters.
	Stats() WorkerStats
}

// Handler executes tasks of one operation.
type Handler interface {
	OperationID() string
	Handle(ctx context.Context, payload []byte) error
}

// NewWorker creates a Worker for queueName.
func NewWorker(broker Broker, queueName string, opts ...WorkerOption) Worker {
	o := defaultWorkerOptions()
	for _, opt := range opts {
		opt(&o)
	}

	return &worker{
		broker:         broker,
		queueName:      queueName,
		concurrency:    o.concurrency,
		pollInterval:   o.pollInterval,
		batchSize:      o.batchSize,
		processTimeout: o.processTimeout,
		metrics:        newWorkerMetrics(o.registry),

		handlers:  make(map[string]Handler),
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
		logger:    logger.Named("taskmill.worker"),
	}
}

const (
	extendedContextTimeout = 3 * time.Second
	shutdownTimeout        = 10 * time.Second
)

type worker struct {
	broker    Broker
	queueName string

	concurrency    int
	pollInterval   time.Duration
	batchSize      int
	processTimeout time.Duration
	metrics        *workerMetrics

	handlers map[string]Handler
	mu       sync.RWMutex

	started   atomic.Bool
	stopOnce  sync.Once
	stopCh    chan struct{}
	stoppedCh chan struct{}

	logger logger.Logger
}

func (w *worker) Register(h Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.handlers[h.OperationID()] = h
}

func (w *worker) Start(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return errx.New("[worker]: already started")
	}
	defer close(w.stoppedCh)

	var wg sync.WaitGroup
	for range w.concurrency {
		wg.Go(func() {
			w.workerLoop(ctx)
		})
	}
	wg.Wait()

	return nil
}

func (w *worker) Stop() error {
	w.stopOnce.Do(func() { close(w.stopCh) })
	if !w.started.Load() {
		return nil
	}

	select {
	case <-w.stoppedCh:
		return nil
	case <-time.After(shutdownTimeout):
		return errx.New("[worker]: shutdown timeout exceeded")
	}
}

func (w *worker) Stats() WorkerStats {
	return w.metrics.snapshot()
}

func (w *worker) workerLoop(ctx context.Context) {
	chain := w.buildProcessChain()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		default:
		}

		tasks, err := w.broker.Fetch(ctx, w.queueName, w.batchSize)
		if err != nil {
			w.logger.With("error", err).Error("[worker]: failed to fetch tasks")
			w.pause(ctx)
			continue
		}

		if len(tasks) == 0 {
			w.pause(ctx)
			continue
		}

		for _, task := range tasks {
			err = chain(ctx, task)
			w.settle(ctx, task, err)
		}
	}
}

// pause waits for pollInterval unless the worker is stopping.
func (w *worker) pause(ctx context.Context) {
	t := time.NewTimer(w.pollInterval)
	defer t.Stop()

	select {
	case <-ctx.Done():
	case <-w.stopCh:
	case <-t.C:
	}
}

// settle acks, rejects or nacks the task depending on the handler outcome.
func (w *worker) settle(ctx context.Context, task Task, err error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), extendedContextTimeout)
	defer cancel()

	var (
		settleErr error
		action    string
	)

	switch {
	case err == nil:
		action = "ack"
		w.metrics.processed.Inc(1)
		settleErr = w.broker.Ack(ctx, task)
	case IsPermanent(err):
		action = "reject"
		w.metrics.failed.Inc(1)
		w.metrics.deadLettered.Inc(1)
		settleErr = w.broker.Reject(ctx, task, errxToMap(err))
	default:
		action = "nack"
		w.metrics.failed.Inc(1)
		if task.Attempts < task.MaxAttempts {
			w.metrics.retried.Inc(1)
		} else {
			w.metrics.deadLettered.Inc(1)
		}
		settleErr = w.broker.Nack(ctx, task, errxToMap(err))
	}

	if settleErr != nil {
		w.logger.With(
			"operation_id", task.OperationID,
			"task_id", task.ID,
			"error", settleErr,
		).Errorf("[worker]: failed to %s task", action)
	}
}

type handleFunc func(context.Context, Task) error

func (w *worker) processTask(ctx context.Context, task Task) error {
	if task.OperationID == "" {
		return errx.New("[worker]: task missing operation_id",
			errx.WithCode(CodeInvalidPayload),
			errx.WithDetails(errx.D{"task_id": task.ID}))
	}

	w.mu.RLock()
	h, exists := w.handlers[task.OperationID]
	w.mu.RUnlock()

	if !exists {
		return errx.New("[worker]: task not registered",
			errx.WithCode(CodeTaskNotRegistered),
			errx.WithDetails(errx.D{"operation_id": task.OperationID}))
	}

	start := time.Now()
	defer w.metrics.duration.UpdateSince(start)

	return executeWithRecovery(ctx, h, task.Payload)
}

func (w *worker) buildProcessChain() handleFunc {
	p := w.processTask

	// last wrapper executes first
	p = w.processWithLogging(p)       // 6. logging
	p = w.processWithAlerting(p)      // 5. alerting
	p = w.processWithMetaInjection(p) // 4. meta injection
	p = w.processWithTimeout(p)       // 3. timeout
	p = w.processWithTracing(p)       // 2. tracing
	p = w.processWithRecovery(p)      // 1. recovery (outermost)

	return p
}

func (w *worker) processWithLogging(next handleFunc) handleFunc {
	return func(ctx context.Context, t Task) error {
		start := time.Now()

		err := next(ctx, t)

		logger := w.logger.Named("access_logger").WithContext(ctx).With(
			"operation_id", t.OperationID,
			"task_id", t.ID,
			"attempts", t.Attempts,
			"max_attempts", t.MaxAttempts,
			"duration", time.Since(start).Round(time.Microsecond),
		)

		if err != nil {
			logger.Errorx(err)
		} else {
			logger.Info("[worker]: task processed successfully")
		}

		return err
	}
}

func (w *worker) processWithAlerting(next handleFunc) handleFunc {
	return func(ctx context.Context, t Task) error {
		err := next(ctx, t)
		if err == nil {
			return nil
		}

		e := errx.AsErrorX(err)
		if e.Type() != errx.T_Internal {
			return err
		}

		operation := fmt.Sprintf("async-task: %s", t.OperationID)
		details := make(map[string]string)
		for k, v := range meta.ExtractMetaFromContext(ctx) {
			details[string(k)] = v
		}
		details["error_trace"] = e.Trace()

		alertCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), extendedContextTimeout)
		logger := w.logger.Named("alerting").WithContext(ctx)

		go func() {
			defer cancel()

			senderr := alert.SendError(alertCtx, e.Code(), err.Error(), operation, details)
			if senderr != nil {
				logger.With("alert_send_error", senderr).Warn("[worker]: failed to send error alert")
			}
		}()

		return err
	}
}

func (w *worker) processWithMetaInjection(next handleFunc) handleFunc {
	return func(ctx context.Context, t Task) error {
		ctx = meta.InjectMetaToContext(ctx, map[meta.ContextKey]string{
			meta.TraceID:        tracing.GetStartingTraceID(ctx),
			meta.TaskID:         t.ID,
			meta.OperationID:    t.OperationID,
			meta.ServiceName:    meta.GetServiceName(),
			meta.ServiceVersion: meta.GetServiceVersion(),
		})
		return next(ctx, t)
	}
}

func (w *worker) processWithTimeout(next handleFunc) handleFunc {
	return func(ctx context.Context, t Task) error {
		timeout := w.processTimeout
		if t.ExpiresAt != nil {
			timeout = min(timeout, time.Until(*t.ExpiresAt))
		}
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return next(ctx, t)
	}
}

func (w *worker) processWithTracing(next handleFunc) handleFunc {
	return func(ctx context.Context, t Task) error {
		ctx = extractTraceContext(ctx, t.Meta)

		ctx, span := otel.Tracer("").Start(ctx, fmt.Sprintf("PROCESS %s", t.OperationID),
			trace.WithAttributes(
				semconv.MessagingOperationProcess,
				semconv.MessagingDestinationName(t.Queue),
				semconv.MessagingMessageID(t.ID),
			),
			trace.WithSpanKind(trace.SpanKindConsumer),
		)
		defer span.End()

		err := next(ctx, t)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return err
	}
}

// extractTraceContext restores the producer's trace context from task meta.
func extractTraceContext(ctx context.Context, m map[string]string) context.Context {
	if len(m) == 0 {
		return ctx
	}
	return otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(m))
}

func (w *worker) processWithRecovery(next handleFunc) handleFunc {
	return func(ctx context.Context, t Task) (err error) {
		defer func() {
			if r := recover(); r != nil {
				w.logger.With("recover", r, "task_id", t.ID, "operation_id", t.OperationID).
					Error("[worker]: panicked at recovery wrapper")

				alertCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), extendedContextTimeout)
				operation := fmt.Sprintf("async-task: %s", t.OperationID)

				go func() {
					defer cancel()
					_ = alert.SendError(alertCtx, "PANIC", "[worker]: panicked at recovery wrapper", operation,
						map[string]string{"recover": fmt.Sprintf("%v", r)})
				}()

				err = errx.New("[worker]: panicked at recovery wrapper", errx.WithDetails(errx.D{
					"panic": fmt.Sprintf("%v", r),
				}))
			}
		}()
		return next(ctx, t)
	}
}

func executeWithRecovery(ctx context.Context, h Handler, payload []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			stackTrace := make([]byte, 4096)
			stackTrace = stackTrace[:runtime.Stack(stackTrace, false)]

			err = errx.New("[worker]: panicked at task execution", errx.WithDetails(errx.D{
				"stack_trace":   string(stackTrace),
				"panic_message": fmt.Sprintf("%v", r),
			}))
		}
	}()
	return h.Handle(ctx, payload)
}

func errxToMap(err error) map[string]any {
	e := errx.AsErrorX(err)
	return map[string]any{
		"code":    e.Code(),
		"type":    e.Type().String(),
		"message": e.Error(),
		"trace":   e.Trace(),
		"details": e.Details(),
	}
}
