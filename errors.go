package gate

import (
	"errors"
	"fmt"
)

// ErrSilentAbort terminates a dispatch with no handler invocation, no
// propagated failure, and no result. Return it (or wrap it) from an action
// to stop quietly. Only the original action's abort is silent: a silent
// abort returned by an error handler propagates like any other error.
var ErrSilentAbort = errors.New("gate: silent abort")

// ErrNoStore is returned when an engine is built without a policy store.
var ErrNoStore = errors.New("gate: no store configured")

// UserError carries a message meant for end-user display. When Dialog is
// set (the default from NewUserError), the error pipeline appends it to
// the user-facing error queue and swallows it; the dispatch caller sees no
// error. When Dialog is cleared it propagates like an ordinary failure.
type UserError struct {
	// Message is the user-facing text.
	Message string

	// Dialog marks the error for queued dialog presentation instead of
	// propagation.
	Dialog bool

	// Cause is the underlying error, if any.
	Cause error
}

// NewUserError creates a UserError flagged for dialog presentation.
func NewUserError(message string) *UserError {
	return &UserError{Message: message, Dialog: true}
}

// Error implements error.
func (e *UserError) Error() string { return e.Message }

// Unwrap exposes the underlying cause to errors.Is / errors.As.
func (e *UserError) Unwrap() error { return e.Cause }

// PanicError wraps a panic recovered from an action or hook. Stack holds
// the goroutine stack captured at the panic site so downstream logging
// shows the original failure location.
type PanicError struct {
	Value any
	Stack Trace
}

// Error implements error.
func (e *PanicError) Error() string {
	return fmt.Sprintf("gate: panic: %v", e.Value)
}
