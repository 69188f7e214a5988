package ext

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/gate"
)

// Named entry types pair a hook implementation with the extension name
// captured at registration time. This avoids type-asserting back to
// Extension inside the emit methods.
type startedEntry struct {
	name string
	hook DispatchStarted
}

type completedEntry struct {
	name string
	hook DispatchCompleted
}

type failedEntry struct {
	name string
	hook DispatchFailed
}

type retryingEntry struct {
	name string
	hook DispatchRetrying
}

type supersededEntry struct {
	name string
	hook DispatchSuperseded
}

type blockedEntry struct {
	name string
	hook DispatchBlocked
}

type throttledEntry struct {
	name string
	hook DispatchThrottled
}

type freshEntry struct {
	name string
	hook DispatchFresh
}

type limitedEntry struct {
	name string
	hook DispatchLimited
}

type queuedEntry struct {
	name string
	hook DispatchQueued
}

type droppedEntry struct {
	name string
	hook DispatchDropped
}

type userErrorEntry struct {
	name string
	hook UserErrorQueued
}

type resetEntry struct {
	name string
	hook Reset
}

// Registry holds registered extensions and dispatches lifecycle events
// to them. It type-caches extensions at registration time so emit calls
// iterate only over extensions that implement the relevant hook.
//
// Register may be called while dispatches are emitting: the caches are
// read under a shared lock and snapshotted before hooks run, so an
// in-flight dispatch sees a consistent extension set and a late
// registration takes effect on the next event.
type Registry struct {
	mu         sync.RWMutex
	extensions []Extension
	logger     *slog.Logger

	// Type-cached slices for each lifecycle hook. Mutated only under mu;
	// emit methods copy the slice header under RLock and iterate outside
	// the lock, so a hook may itself call Register without deadlocking.
	started    []startedEntry
	completed  []completedEntry
	failed     []failedEntry
	retrying   []retryingEntry
	superseded []supersededEntry
	blocked    []blockedEntry
	throttled  []throttledEntry
	fresh      []freshEntry
	limited    []limitedEntry
	queued     []queuedEntry
	dropped    []droppedEntry
	userError  []userErrorEntry
	reset      []resetEntry
}

// NewRegistry creates an extension registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{logger: logger}
}

// Register adds an extension and type-asserts it into all applicable
// hook caches. Extensions are notified in registration order. Safe for
// concurrent use with the emit methods.
func (r *Registry) Register(e Extension) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.extensions = append(r.extensions, e)
	name := e.Name()

	if h, ok := e.(DispatchStarted); ok {
		r.started = append(r.started, startedEntry{name, h})
	}
	if h, ok := e.(DispatchCompleted); ok {
		r.completed = append(r.completed, completedEntry{name, h})
	}
	if h, ok := e.(DispatchFailed); ok {
		r.failed = append(r.failed, failedEntry{name, h})
	}
	if h, ok := e.(DispatchRetrying); ok {
		r.retrying = append(r.retrying, retryingEntry{name, h})
	}
	if h, ok := e.(DispatchSuperseded); ok {
		r.superseded = append(r.superseded, supersededEntry{name, h})
	}
	if h, ok := e.(DispatchBlocked); ok {
		r.blocked = append(r.blocked, blockedEntry{name, h})
	}
	if h, ok := e.(DispatchThrottled); ok {
		r.throttled = append(r.throttled, throttledEntry{name, h})
	}
	if h, ok := e.(DispatchFresh); ok {
		r.fresh = append(r.fresh, freshEntry{name, h})
	}
	if h, ok := e.(DispatchLimited); ok {
		r.limited = append(r.limited, limitedEntry{name, h})
	}
	if h, ok := e.(DispatchQueued); ok {
		r.queued = append(r.queued, queuedEntry{name, h})
	}
	if h, ok := e.(DispatchDropped); ok {
		r.dropped = append(r.dropped, droppedEntry{name, h})
	}
	if h, ok := e.(UserErrorQueued); ok {
		r.userError = append(r.userError, userErrorEntry{name, h})
	}
	if h, ok := e.(Reset); ok {
		r.reset = append(r.reset, resetEntry{name, h})
	}
}

// Extensions returns the registered extensions in registration order.
func (r *Registry) Extensions() []Extension {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Extension(nil), r.extensions...)
}

// snapshot copies a hook cache's slice header under the read lock so the
// caller can iterate without holding it.
func snapshot[E any](r *Registry, cache *[]E) []E {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return *cache
}

// ──────────────────────────────────────────────────
// Dispatch event emitters
// ──────────────────────────────────────────────────

// EmitDispatchStarted notifies all extensions that implement DispatchStarted.
func (r *Registry) EmitDispatchStarted(ctx context.Context, d *gate.Dispatch, metrics any) {
	for _, e := range snapshot(r, &r.started) {
		if err := e.hook.OnDispatchStarted(ctx, d, metrics); err != nil {
			r.logHookError("OnDispatchStarted", e.name, err)
		}
	}
}

// EmitDispatchCompleted notifies all extensions that implement DispatchCompleted.
func (r *Registry) EmitDispatchCompleted(ctx context.Context, d *gate.Dispatch, metrics any, elapsed time.Duration) {
	for _, e := range snapshot(r, &r.completed) {
		if err := e.hook.OnDispatchCompleted(ctx, d, metrics, elapsed); err != nil {
			r.logHookError("OnDispatchCompleted", e.name, err)
		}
	}
}

// EmitDispatchFailed notifies all extensions that implement DispatchFailed.
func (r *Registry) EmitDispatchFailed(ctx context.Context, d *gate.Dispatch, metrics any, dispatchErr error, trace gate.Trace, elapsed time.Duration) {
	for _, e := range snapshot(r, &r.failed) {
		if err := e.hook.OnDispatchFailed(ctx, d, metrics, dispatchErr, trace, elapsed); err != nil {
			r.logHookError("OnDispatchFailed", e.name, err)
		}
	}
}

// EmitDispatchRetrying notifies all extensions that implement DispatchRetrying.
func (r *Registry) EmitDispatchRetrying(ctx context.Context, d *gate.Dispatch, attempt int, delay time.Duration) {
	for _, e := range snapshot(r, &r.retrying) {
		if err := e.hook.OnDispatchRetrying(ctx, d, attempt, delay); err != nil {
			r.logHookError("OnDispatchRetrying", e.name, err)
		}
	}
}

// EmitDispatchSuperseded notifies all extensions that implement DispatchSuperseded.
func (r *Registry) EmitDispatchSuperseded(ctx context.Context, d *gate.Dispatch) {
	for _, e := range snapshot(r, &r.superseded) {
		if err := e.hook.OnDispatchSuperseded(ctx, d); err != nil {
			r.logHookError("OnDispatchSuperseded", e.name, err)
		}
	}
}

// EmitDispatchBlocked notifies all extensions that implement DispatchBlocked.
func (r *Registry) EmitDispatchBlocked(ctx context.Context, d *gate.Dispatch) {
	for _, e := range snapshot(r, &r.blocked) {
		if err := e.hook.OnDispatchBlocked(ctx, d); err != nil {
			r.logHookError("OnDispatchBlocked", e.name, err)
		}
	}
}

// EmitDispatchThrottled notifies all extensions that implement DispatchThrottled.
func (r *Registry) EmitDispatchThrottled(ctx context.Context, d *gate.Dispatch, remaining time.Duration) {
	for _, e := range snapshot(r, &r.throttled) {
		if err := e.hook.OnDispatchThrottled(ctx, d, remaining); err != nil {
			r.logHookError("OnDispatchThrottled", e.name, err)
		}
	}
}

// EmitDispatchFresh notifies all extensions that implement DispatchFresh.
func (r *Registry) EmitDispatchFresh(ctx context.Context, d *gate.Dispatch, remaining time.Duration) {
	for _, e := range snapshot(r, &r.fresh) {
		if err := e.hook.OnDispatchFresh(ctx, d, remaining); err != nil {
			r.logHookError("OnDispatchFresh", e.name, err)
		}
	}
}

// EmitDispatchLimited notifies all extensions that implement DispatchLimited.
func (r *Registry) EmitDispatchLimited(ctx context.Context, d *gate.Dispatch) {
	for _, e := range snapshot(r, &r.limited) {
		if err := e.hook.OnDispatchLimited(ctx, d); err != nil {
			r.logHookError("OnDispatchLimited", e.name, err)
		}
	}
}

// EmitDispatchQueued notifies all extensions that implement DispatchQueued.
func (r *Registry) EmitDispatchQueued(ctx context.Context, d *gate.Dispatch, depth int) {
	for _, e := range snapshot(r, &r.queued) {
		if err := e.hook.OnDispatchQueued(ctx, d, depth); err != nil {
			r.logHookError("OnDispatchQueued", e.name, err)
		}
	}
}

// EmitDispatchDropped notifies all extensions that implement DispatchDropped.
func (r *Registry) EmitDispatchDropped(ctx context.Context, d *gate.Dispatch) {
	for _, e := range snapshot(r, &r.dropped) {
		if err := e.hook.OnDispatchDropped(ctx, d); err != nil {
			r.logHookError("OnDispatchDropped", e.name, err)
		}
	}
}

// EmitUserErrorQueued notifies all extensions that implement UserErrorQueued.
func (r *Registry) EmitUserErrorQueued(ctx context.Context, d *gate.Dispatch, userErr *gate.UserError) {
	for _, e := range snapshot(r, &r.userError) {
		if err := e.hook.OnUserErrorQueued(ctx, d, userErr); err != nil {
			r.logHookError("OnUserErrorQueued", e.name, err)
		}
	}
}

// EmitReset notifies all extensions that implement Reset.
func (r *Registry) EmitReset(ctx context.Context) {
	for _, e := range snapshot(r, &r.reset) {
		if err := e.hook.OnReset(ctx); err != nil {
			r.logHookError("OnReset", e.name, err)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
// Hook errors never affect the dispatch outcome.
func (r *Registry) logHookError(hook, extName string, err error) {
	r.logger.Warn("extension hook error",
		slog.String("hook", hook),
		slog.String("extension", extName),
		slog.String("error", err.Error()),
	)
}
