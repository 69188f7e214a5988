// Package middleware provides composable middleware for dispatch attempt
// execution.
//
// A [Middleware] is a function that wraps an attempt of the action body.
// Middleware are composed into a chain using [Chain] and applied once per
// attempt — the retry engine re-runs the full chain for every retry. They
// are applied right-to-left: the first middleware in the slice is the
// outermost wrapper.
//
//	// logging → recover → action
//	chain := middleware.Chain(middleware.Logging(logger), middleware.Recover(logger))
//
// # Built-in Middleware
//
//   - [Recover] — catches panics, converting them to errors that keep the
//     stack captured at the panic site
//   - [Logging] — logs attempt start, duration, and outcome
//   - [Timeout] — cancels the attempt context after the dispatch timeout
//   - [Tracing] — wraps the attempt in an OpenTelemetry span
//   - [Metrics] — records per-attempt duration and outcome counters
//
// # Writing Custom Middleware
//
//	func MyMiddleware() middleware.Middleware {
//	    return func(ctx context.Context, d *gate.Dispatch, next middleware.Handler) error {
//	        // pre-processing
//	        err := next(ctx)
//	        // post-processing
//	        return err
//	    }
//	}
//
// Middleware MUST call next to continue the chain unless intentionally
// short-circuiting.
package middleware
