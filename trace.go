package gate

import "runtime/debug"

// Trace is a captured goroutine stack. The error pipeline pins the trace
// captured at the original failure to any error a handler substitutes, so
// logs point at the original failure location rather than the handler.
type Trace string

// CaptureTrace records the current goroutine stack.
func CaptureTrace() Trace {
	return Trace(debug.Stack())
}

// ErrorHandler is a per-dispatch local error handler. Returning nil
// suppresses the error (the dispatch yields no result and no error);
// returning a non-nil error, the same one or a different one, makes that
// error the new terminal error. The substituted error keeps the trace the
// handler received.
type ErrorHandler func(err error, trace Trace) error

// GlobalErrorHandler is the process-wide last line of defense, invoked
// after the local handler with the dispatch key. Same suppress/propagate
// contract as ErrorHandler.
type GlobalErrorHandler func(err error, trace Trace, key Key) error
