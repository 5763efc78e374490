package model

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound marks a requested entity as absent.
var ErrNotFound = errors.New("not found")

// ValidationError reports a violated precondition on caller input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a ValidationError for field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// RemoteError is a failure talking to the remote platform: transport errors,
// timeouts, GraphQL errors, userErrors or an unexpected response shape.
type RemoteError struct {
	Op        string
	Retryable bool
	Err       error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote %s: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// NewRemoteError wraps err for op. Deadline and cancellation errors are
// flagged retryable.
func NewRemoteError(op string, err error) *RemoteError {
	return &RemoteError{
		Op:        op,
		Retryable: errors.Is(err, context.DeadlineExceeded),
		Err:       err,
	}
}

// OperationError is the coarse error returned from a public operation. Its
// message never contains the cause; the cause is kept for logging and for
// errors.Is / errors.As at the transport boundary.
type OperationError struct {
	Message string
	Err     error
}

func (e *OperationError) Error() string { return e.Message }

func (e *OperationError) Unwrap() error { return e.Err }

// NewOperationError builds an OperationError with a formatted coarse message.
func NewOperationError(err error, format string, args ...interface{}) *OperationError {
	return &OperationError{Message: fmt.Sprintf(format, args...), Err: err}
}

// IsRetryable reports whether err wraps a retryable remote failure.
func IsRetryable(err error) bool {
	var remoteErr *RemoteError
	return errors.As(err, &remoteErr) && remoteErr.Retryable
}
