package taskmill

import "github.com/code19m/errx"

// Error codes for taskmill operations.
const (
	// CodeTaskNotRegistered is returned when a delivered task has no registered handler.
	CodeTaskNotRegistered = "TASK_NOT_REGISTERED"

	// CodeInvalidPayload is returned when the task payload is invalid or malformed.
	CodeInvalidPayload = "INVALID_PAYLOAD"

	// CodeDuplicateTask is returned by brokers that detect an idempotency key collision.
	CodeDuplicateTask = "DUPLICATE_TASK"

	// CodePermanent marks failures that retrying cannot fix.
	CodePermanent = "PERMANENT_FAILURE"
)

const detailPermanent = "permanent"

// Permanent marks err as non-retryable while keeping its own code.
// The worker dead-letters such tasks immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return errx.Wrap(err, errx.WithDetails(errx.D{detailPermanent: true}))
}

// IsPermanent reports whether err was marked by Permanent or carries CodePermanent,
// CodeInvalidPayload or CodeTaskNotRegistered.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}
	if errx.IsCodeIn(err, CodePermanent, CodeInvalidPayload, CodeTaskNotRegistered) {
		return true
	}
	flag, ok := errx.AsErrorX(err).Details()[detailPermanent].(bool)
	return ok && flag
}
