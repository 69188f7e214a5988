// Package gate provides the shared vocabulary for the Gate control core:
// keys, traces, error kinds, per-policy configurations, per-call options,
// and the dispatch descriptor.
//
// Gate decides whether, when, and how many times to run a caller-supplied
// action, coordinating that decision against other concurrent or recent
// dispatches sharing an identifying key. Policies compose per call:
// debounce, non-reentrancy, throttling, freshness caching, rate limiting,
// sequential queueing, and retry with exponential backoff.
//
// # Quick Start
//
//	eng, err := engine.New(
//	    engine.WithLogger(logger),
//	    engine.WithDefaults(gate.DefaultConfig()),
//	)
//
//	v, ok, err := engine.Dispatch(ctx, eng, "load-profile", loadProfile,
//	    gate.WithNonReentrant(gate.LockConfig{}),
//	    gate.WithRetry(gate.RetryConfig{MaxRetries: 3}),
//	)
//
// # Architecture
//
// Gate follows a composable subsystem pattern: the policy state store
// (store, store/memory), backoff strategies (backoff), the sequential
// queue and rate limiter (queue), lifecycle extensions (ext), per-attempt
// middleware (middleware), and the engine package that wires them together
// and hosts the dispatch pipeline.
//
// All policy state is process-local and in-memory. Gate does not persist
// across restarts and does not coordinate across processes.
package gate
