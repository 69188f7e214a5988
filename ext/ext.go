package ext

import (
	"context"
	"time"

	"github.com/xraph/gate"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// ──────────────────────────────────────────────────
// Dispatch lifecycle hooks
// ──────────────────────────────────────────────────

// DispatchStarted is called once when a dispatch enters the admission
// chain. metrics is the payload produced by the dispatch's metrics
// callback, or nil if none was configured.
type DispatchStarted interface {
	OnDispatchStarted(ctx context.Context, d *gate.Dispatch, metrics any) error
}

// DispatchCompleted is called once when a dispatch ends without a
// terminal error: with a result, or aborted by an admission gate, or
// with its error suppressed or queued.
type DispatchCompleted interface {
	OnDispatchCompleted(ctx context.Context, d *gate.Dispatch, metrics any, elapsed time.Duration) error
}

// DispatchFailed is called once when a dispatch ends with a terminal
// error that propagates to the caller.
type DispatchFailed interface {
	OnDispatchFailed(ctx context.Context, d *gate.Dispatch, metrics any, err error, trace gate.Trace, elapsed time.Duration) error
}

// DispatchRetrying is called when an attempt fails and a retry is
// scheduled. attempt is the upcoming attempt number (1-indexed).
type DispatchRetrying interface {
	OnDispatchRetrying(ctx context.Context, d *gate.Dispatch, attempt int, delay time.Duration) error
}

// ──────────────────────────────────────────────────
// Admission hooks
// ──────────────────────────────────────────────────

// DispatchSuperseded is called when a later debounced dispatch for the
// same key supersedes this one.
type DispatchSuperseded interface {
	OnDispatchSuperseded(ctx context.Context, d *gate.Dispatch) error
}

// DispatchBlocked is called when the non-reentrancy policy rejects a
// dispatch because its key is already running.
type DispatchBlocked interface {
	OnDispatchBlocked(ctx context.Context, d *gate.Dispatch) error
}

// DispatchThrottled is called when the throttle lockout rejects a
// dispatch.
type DispatchThrottled interface {
	OnDispatchThrottled(ctx context.Context, d *gate.Dispatch, remaining time.Duration) error
}

// DispatchFresh is called when the freshness window skips a dispatch.
type DispatchFresh interface {
	OnDispatchFresh(ctx context.Context, d *gate.Dispatch, remaining time.Duration) error
}

// DispatchLimited is called when the rate limit rejects a dispatch.
type DispatchLimited interface {
	OnDispatchLimited(ctx context.Context, d *gate.Dispatch) error
}

// DispatchQueued is called when a dispatch starts waiting in a
// sequential queue behind an in-flight predecessor.
type DispatchQueued interface {
	OnDispatchQueued(ctx context.Context, d *gate.Dispatch, depth int) error
}

// DispatchDropped is called when a dispatch is dropped from a full
// sequential queue.
type DispatchDropped interface {
	OnDispatchDropped(ctx context.Context, d *gate.Dispatch) error
}

// ──────────────────────────────────────────────────
// Other lifecycle hooks
// ──────────────────────────────────────────────────

// UserErrorQueued is called when the error pipeline queues a user-facing
// error instead of propagating it.
type UserErrorQueued interface {
	OnUserErrorQueued(ctx context.Context, d *gate.Dispatch, e *gate.UserError) error
}

// Reset is called when the engine's full-reset operation runs.
type Reset interface {
	OnReset(ctx context.Context) error
}
