// Package ucdef defines the use case shapes shared by the transports and workers.
package ucdef

import "context"

// Use case types.
const (
	TypeUserAction   = "user_action"
	TypeAsyncTask    = "async_task"
	TypeScheduledJob = "scheduled_job"
)

// UserAction represents a synchronous operation triggered by an HTTP request.
// The caller waits for the result, and errors are rendered directly as the response.
//
// Type parameters:
//   - I: Input data type (request payload)
//   - O: Output data type (response body)
//
// Examples: UploadFile, ListFiles, PublishFile, CreateUser
type UserAction[I, O any] interface {
	// OperationID returns a unique identifier for the use case.
	OperationID() string

	// Execute executes the use case.
	Execute(ctx context.Context, in I) (O, error)
}

// AsyncTask represents an operation executed by a queue worker.
// Tasks must tolerate redelivery: a task may run more than once when the
// worker crashes between completion and acknowledgement.
//
// Type parameters:
//   - P: Payload type decoded from the task message
//
// Examples: GenerateThumbnails
type AsyncTask[P any] interface {
	// OperationID returns a unique identifier for the use case.
	// The same identifier is used as the task operation name on the queue.
	OperationID() string

	// Execute processes one task payload.
	Execute(ctx context.Context, payload P) error
}

// ScheduledJob represents a time-triggered operation run by the scheduler.
// Jobs take no input and fetch what they need from their dependencies.
//
// Examples: ReconcileThumbnails
type ScheduledJob interface {
	// OperationID returns a unique identifier for the use case.
	OperationID() string

	// Execute executes the scheduled job.
	Execute(ctx context.Context) error
}
