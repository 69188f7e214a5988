// Package ext defines the extension system for Gate.
//
// Extensions observe dispatch lifecycle events and can react to them —
// recording metrics, writing audit logs, surfacing dropped work, etc.
// Each lifecycle hook is a separate interface so extensions opt in only
// to the events they care about. Hook errors are logged and discarded;
// an observer can never change a dispatch's outcome.
//
// # Implementing an Extension
//
//	type MyExtension struct{}
//
//	func (e *MyExtension) Name() string { return "my-extension" }
//
//	// Opt in to specific hooks by implementing their interfaces.
//	func (e *MyExtension) OnDispatchCompleted(ctx context.Context, d *gate.Dispatch, metrics any, elapsed time.Duration) error {
//	    log.Printf("dispatch %s completed in %s", d.ID, elapsed)
//	    return nil
//	}
//
// # Dispatch Lifecycle Hooks
//
//   - [DispatchStarted] — dispatch entered the admission chain
//   - [DispatchCompleted] — dispatch ended with a result or a clean abort
//   - [DispatchFailed] — dispatch ended with a terminal error
//   - [DispatchRetrying] — an attempt failed and a retry is scheduled
//
// # Admission Hooks
//
//   - [DispatchSuperseded] — a later debounced dispatch took this one's place
//   - [DispatchBlocked] — the non-reentrancy policy rejected the dispatch
//   - [DispatchThrottled] — the throttle lockout rejected the dispatch
//   - [DispatchFresh] — the freshness window skipped the dispatch
//   - [DispatchLimited] — the rate limit rejected the dispatch
//   - [DispatchQueued] — the dispatch started waiting in a sequential queue
//   - [DispatchDropped] — the dispatch was dropped from a full queue
//
// # Other Hooks
//
//   - [UserErrorQueued] — the error pipeline queued a user-facing error
//   - [Reset] — the engine's full-reset operation ran
package ext
