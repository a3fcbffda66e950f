package taskmill

import (
	"context"
	"encoding/json"
	"reflect"

	"github.com/code19m/errx"

	"github.com/rise-and-shine/filesmanager/ucdef"
)

// ForwardToAsyncTask registers a typed AsyncTask[P] with the worker.
// P must be a pointer to a struct. Payloads that do not decode into P are rejected as permanent failures.
func ForwardToAsyncTask[P any](w Worker, task ucdef.AsyncTask[P]) {
	w.Register(&asyncTaskAdapter[P]{uc: task})
}

// ForwardToScheduledJob registers a ScheduledJob with the worker. The task payload is ignored.
func ForwardToScheduledJob(w Worker, job ucdef.ScheduledJob) {
	w.Register(&scheduledJobAdapter{uc: job})
}

type asyncTaskAdapter[P any] struct {
	uc ucdef.AsyncTask[P]
}

func (a *asyncTaskAdapter[P]) OperationID() string {
	return a.uc.OperationID()
}

func (a *asyncTaskAdapter[P]) Handle(ctx context.Context, raw []byte) error {
	payload, err := newPayload[P]()
	if err != nil {
		return errx.Wrap(err, errx.WithCode(CodeInvalidPayload))
	}

	if len(raw) == 0 {
		return errx.New("[worker]: received empty task payload", errx.WithCode(CodeInvalidPayload))
	}

	if err = json.Unmarshal(raw, payload); err != nil {
		return errx.Wrap(err, errx.WithCode(CodeInvalidPayload))
	}

	return a.uc.Execute(ctx, payload)
}

type scheduledJobAdapter struct {
	uc ucdef.ScheduledJob
}

func (a *scheduledJobAdapter) OperationID() string {
	return a.uc.OperationID()
}

func (a *scheduledJobAdapter) Handle(ctx context.Context, _ []byte) error {
	return a.uc.Execute(ctx)
}

func newPayload[P any]() (P, error) {
	var payload P
	payloadType := reflect.TypeOf((*P)(nil)).Elem()
	if payloadType.Kind() != reflect.Pointer || payloadType.Elem().Kind() != reflect.Struct {
		return payload, errx.New("payload type P must be a pointer to a struct")
	}

	payload, ok := reflect.New(payloadType.Elem()).Interface().(P)
	if !ok {
		return payload, errx.New("failed to create payload instance")
	}

	return payload, nil
}
