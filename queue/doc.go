// Package queue provides the per-key sequential FIFO and the per-key
// token-bucket rate limiter.
//
// # Sequential queueing
//
// [Manager] serializes dispatches that share a key: closures for one key
// execute strictly in arrival order, one at a time, while different keys
// run fully independently. A dispatch whose predecessor is still executing
// waits in a bounded FIFO; when the queue is full, either the newest
// arrival is refused or the oldest pending entry is dropped, as the
// sequential policy configures.
//
//	admitted, err := m.Enter(ctx, key, cfg)
//	if admitted {
//	    defer m.Leave(key)
//	    // run the action
//	}
//
// # Rate limiting
//
// [Limiter] enforces a sustained dispatches-per-second rate per key using
// a token bucket (golang.org/x/time/rate). Dispatches that exceed the
// rate are rejected, not delayed.
package queue
