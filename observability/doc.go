// Package observability provides the OpenTelemetry-based metrics
// extension for Gate. The MetricsExtension implements lifecycle hooks to
// record system-wide counters for dispatch start, completion, failure,
// retry, and every admission outcome (superseded, blocked, throttled,
// fresh, limited, queued, dropped), plus queued user-facing errors.
//
// For per-attempt tracing and metrics, see the middleware package:
// middleware.Tracing() and middleware.Metrics().
package observability
