package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownPolicy is returned when a dialogue state names a policy that is not registered.
	ErrUnknownPolicy = errors.New("unknown dialogue policy")

	// ErrInvalidPolicy is returned when registering a policy without a name.
	ErrInvalidPolicy = errors.New("invalid dialogue policy")

	// ErrPolicyExists is returned when registering a policy name twice.
	ErrPolicyExists = errors.New("dialogue policy already registered")

	// ErrClosed is returned by the arbiter once the conversation has shut down.
	ErrClosed = errors.New("conversation closed")

	// ErrInvalidItem is returned when a queue item is submitted through the wrong entry point.
	ErrInvalidItem = errors.New("invalid queue item")

	// ErrNotFound is returned when a snapshot or conversation cannot be found.
	ErrNotFound = errors.New("not found")

	// ErrNotExecutable is returned when asked to run a statement with unresolved slots.
	ErrNotExecutable = errors.New("statement is not executable")

	// ErrUnexpectedAnswer is returned when an answer does not fit the pending question.
	ErrUnexpectedAnswer = errors.New("unexpected answer")
)

// CancellationError aborts the current turn. It is not a defect.
// When Intent is set, the loop replays it against a reset state.
type CancellationError struct {
	Intent    Intent
	Confident bool
}

func (e *CancellationError) Error() string {
	if e.Intent != nil {
		return "cancelled: switching to " + DescribeIntent(e.Intent)
	}
	return "cancelled by user"
}

// Cancelled returns a plain cancellation.
func Cancelled() *CancellationError {
	return &CancellationError{}
}

// SwitchTo returns a cancellation that reinjects intent.
func SwitchTo(intent Intent, confident bool) *CancellationError {
	return &CancellationError{Intent: intent, Confident: confident}
}

// IsCancellation reports whether err is, or wraps, a CancellationError.
func IsCancellation(err error) (*CancellationError, bool) {
	var ce *CancellationError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// InvariantError reports a broken engine invariant, such as a completion
// handle resolved twice. It is never recoverable.
type InvariantError struct {
	Reason string
	Err    error
}

func (e *InvariantError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invariant violated: %s: %v", e.Reason, e.Err)
	}
	return "invariant violated: " + e.Reason
}

func (e *InvariantError) Unwrap() error {
	return e.Err
}

// ExecutionError wraps a failure to start a statement.
type ExecutionError struct {
	Statement string
	Err       error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("failed to execute %s: %v", e.Statement, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}
