package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/xraph/gate"
	"github.com/xraph/gate/ext"
)

// Action computes a typed result. It may suspend via the context and may
// fail; the engine decides whether, when, and how many times it runs.
type Action[T any] func(ctx context.Context) (T, error)

// Dispatch runs action under the policies configured by opts, keyed by
// key. It returns the action's result and true, or the zero value and
// false when the dispatch was aborted by an admission gate or its error
// was suppressed or queued, or the zero value, false, and the terminal
// error when one propagates.
//
// The action receives a context carrying the dispatch descriptor;
// retrieve it with gate.FromContext.
func Dispatch[T any](ctx context.Context, eng *Engine, key gate.Key, action Action[T], opts ...gate.Option) (T, bool, error) {
	var result T
	ok, err := eng.dispatch(ctx, key, func(ctx context.Context) error {
		v, err := action(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	}, opts)
	if !ok {
		var zero T
		return zero, false, err
	}
	return result, true, nil
}

// Do runs a result-less action under the policies configured by opts.
// Same contract as Dispatch without the value.
func (eng *Engine) Do(ctx context.Context, key gate.Key, action func(ctx context.Context) error, opts ...gate.Option) (bool, error) {
	return eng.dispatch(ctx, key, action, opts)
}

// dispatch is the untyped pipeline: resolve options, notify observers,
// run the admission chain around the retry loop, classify the terminal
// error, notify observers again. ok reports whether the action body ran
// to successful completion.
func (eng *Engine) dispatch(ctx context.Context, key gate.Key, body func(context.Context) error, opts []gate.Option) (ok bool, err error) {
	o := eng.resolveOptions(opts)
	d := &gate.Dispatch{
		ID:        uuid.New(),
		Key:       key,
		Name:      o.Name,
		StartedAt: time.Now(),
		Options:   &o,
	}
	ctx = gate.NewContext(ctx, d)

	exts := eng.extensions()
	metrics := captureMetrics(o.Metrics)
	start := time.Now()
	exts.EmitDispatchStarted(ctx, d, metrics)

	succeeded, termErr, trace := eng.admitAndRun(ctx, d, body, &o, exts)

	finalErr := eng.resolveError(ctx, d, termErr, trace, &o, exts)

	elapsed := time.Since(start)
	switch {
	case finalErr != nil:
		exts.EmitDispatchFailed(ctx, d, metrics, finalErr, trace, elapsed)
		return false, finalErr
	case succeeded || termErr != nil:
		// Every dispatch whose body ran gets an end event: a terminal
		// error that was suppressed, queued, or silently aborted still
		// closes the started/ended bracket.
		exts.EmitDispatchCompleted(ctx, d, metrics, elapsed)
		return succeeded, nil
	default:
		// Admission abort: the specific event was already emitted.
		return false, nil
	}
}

// resolveOptions layers per-call options over the engine's ambient
// configuration and normalizes the result.
func (eng *Engine) resolveOptions(opts []gate.Option) gate.Options {
	var o gate.Options
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	// A dispatch that enables retries without its own delays or strategy
	// inherits the engine-level strategy, when one was configured.
	if eng.bo != nil && o.Retry != nil && o.Strategy == nil &&
		o.Retry.InitialDelay == 0 && o.Retry.Multiplier == 0 && o.Retry.MaxDelay == 0 {
		o.Strategy = eng.bo
	}
	o.Finalize(eng.ambient)
	return o
}

// policyKey resolves a policy's key override against the dispatch key.
func policyKey(override, dispatchKey gate.Key) gate.Key {
	if override != nil {
		return override
	}
	return dispatchKey
}

// admitAndRun walks the admission chain in its fixed order and, once
// admitted, runs the hooks and the retry loop. Order matters: debounce
// must resolve before any lock is taken, since superseded dispatches must
// never acquire or disturb other policies' state; non-reentrancy precedes
// throttle and freshness so a still-running duplicate reports blocked,
// not throttled or fresh; the sequential queue is the final gate because
// it only delays, never aborts.
//
// Every check-and-set below is a single non-suspending critical section
// inside the store or queue manager; the only suspension points are the
// debounce sleep and the sequential wait, both strictly after the
// relevant state is committed.
func (eng *Engine) admitAndRun(ctx context.Context, d *gate.Dispatch, body func(context.Context) error, o *gate.Options, exts *ext.Registry) (bool, error, gate.Trace) {
	st := eng.st

	// 1. Debounce.
	if c := o.Debounce; c != nil {
		k := policyKey(c.Key, d.Key)
		gen := st.DebounceBump(k)
		if err := sleep(ctx, c.Delay); err != nil {
			return false, err, gate.CaptureTrace()
		}
		if st.DebounceCurrent(k) != gen {
			if c.OnSuperseded != nil {
				c.OnSuperseded(k)
			}
			exts.EmitDispatchSuperseded(ctx, d)
			return false, nil, ""
		}
	}

	// 2. Non-reentrancy.
	if c := o.Lock; c != nil {
		k := policyKey(c.Key, d.Key)
		if !st.TryAcquire(k) {
			if c.OnBlocked != nil {
				c.OnBlocked(k)
			}
			exts.EmitDispatchBlocked(ctx, d)
			return false, nil, ""
		}
		// The flag must clear on every exit path, including panics in
		// hooks further down.
		defer st.Release(k)
	}

	// 3. Throttle.
	var throttleKey gate.Key
	if c := o.Throttle; c != nil {
		k := policyKey(c.Key, d.Key)
		throttleKey = k
		now := time.Now()
		if !c.Ignore {
			if rem := st.ThrottleRemaining(k, now); rem > 0 {
				if c.OnThrottled != nil {
					c.OnThrottled(k, rem)
				}
				exts.EmitDispatchThrottled(ctx, d, rem)
				return false, nil, ""
			}
		}
		// Lockout is set before the action runs, by the admitted
		// dispatch only.
		st.SetThrottle(k, now.Add(c.Window))
	}

	// 4. Freshness.
	var undoFresh func()
	if c := o.Fresh; c != nil {
		k := policyKey(c.Key, d.Key)
		now := time.Now()
		if !c.Ignore {
			if rem := st.FreshRemaining(k, now); rem > 0 {
				if c.OnFresh != nil {
					c.OnFresh(k, rem)
				}
				exts.EmitDispatchFresh(ctx, d, rem)
				return false, nil, ""
			}
		}
		gen, prev, had := st.SetFresh(k, now.Add(c.Window))
		if c.Ignore {
			// Bypassed check: a failure marks the key stale rather than
			// restoring a window this dispatch never observed.
			undoFresh = func() { st.ClearFresh(k) }
		} else {
			undoFresh = func() { st.RollbackFresh(k, gen, prev, had) }
		}
	}

	// 5. Rate limit.
	if c := o.Limit; c != nil {
		k := policyKey(c.Key, d.Key)
		if !eng.limiter.Allow(k, c.Rate, c.Burst) {
			if c.OnLimited != nil {
				c.OnLimited(k)
			}
			exts.EmitDispatchLimited(ctx, d)
			return false, nil, ""
		}
	}

	// 6. Sequential queue.
	if c := o.Sequential; c != nil {
		k := policyKey(c.Key, d.Key)
		cfg := *c
		cfg.OnQueued = func(qk gate.Key, depth int) {
			if c.OnQueued != nil {
				c.OnQueued(qk, depth)
			}
			exts.EmitDispatchQueued(ctx, d, depth)
		}
		cfg.OnDropped = func(qk gate.Key) {
			if c.OnDropped != nil {
				c.OnDropped(qk)
			}
			exts.EmitDispatchDropped(ctx, d)
		}
		admitted, err := eng.queues.Enter(ctx, k, cfg)
		if err != nil {
			return false, err, gate.CaptureTrace()
		}
		if !admitted {
			return false, nil, ""
		}
		defer eng.queues.Leave(k)
	}

	succeeded, termErr, trace := eng.run(ctx, d, body, o, exts)

	if termErr != nil {
		if o.Throttle != nil && o.Throttle.ClearOnError {
			st.ClearThrottle(throttleKey)
		}
		if undoFresh != nil {
			undoFresh()
		}
	}
	return succeeded, termErr, trace
}

// run brackets the retry loop with the Before and After hooks. Both run
// exactly once per dispatch regardless of retry count. A Before failure
// is treated identically to an action failure without ever invoking the
// action body. An After failure on a successful dispatch becomes the
// terminal error; on a failed dispatch it is logged and the action's
// error wins.
func (eng *Engine) run(ctx context.Context, d *gate.Dispatch, body func(context.Context) error, o *gate.Options, exts *ext.Registry) (bool, error, gate.Trace) {
	var termErr error
	var trace gate.Trace

	if o.Before != nil {
		if err := callHook(ctx, o.Before); err != nil {
			termErr, trace = err, traceOf(err)
		}
	}

	succeeded := false
	if termErr == nil {
		termErr, trace = eng.retryLoop(ctx, d, body, o, exts)
		succeeded = termErr == nil
	}

	if o.After != nil {
		if err := callHook(ctx, o.After); err != nil {
			if termErr == nil {
				termErr, trace = err, traceOf(err)
				succeeded = false
			} else {
				eng.logger.Warn("after hook failed",
					slog.String("dispatch_id", d.ID.String()),
					slog.String("error", err.Error()),
				)
			}
		}
	}

	return succeeded, termErr, trace
}

// retryLoop runs the middleware chain and the per-call wrapper around the
// action body, retrying failed attempts per the resolved retry policy.
// Intermediate failures never surface to callers or hooks; only the last
// error and trace are returned, exactly once. A silent abort from the
// action breaks the loop immediately and is never retried.
func (eng *Engine) retryLoop(ctx context.Context, d *gate.Dispatch, body func(context.Context) error, o *gate.Options, exts *ext.Registry) (error, gate.Trace) {
	handler := body
	if o.Wrap != nil {
		wrap, inner := o.Wrap, handler
		handler = func(ctx context.Context) error {
			return wrap(ctx, inner)
		}
	}

	strategy := o.BackoffStrategy()
	maxRetries := o.MaxRetries()
	attempt := 0
	for {
		d.Attempt = attempt

		err := eng.chain(ctx, d, handler)
		if err == nil {
			return nil, ""
		}
		trace := traceOf(err)

		if errors.Is(err, gate.ErrSilentAbort) {
			return err, trace
		}
		if maxRetries != gate.Unlimited && attempt >= maxRetries {
			return err, trace
		}

		next := attempt + 1
		var delay time.Duration
		if strategy != nil {
			delay = strategy.Delay(next)
		}
		if o.Retry != nil && o.Retry.OnRetry != nil {
			o.Retry.OnRetry(next, delay, err, trace)
		}
		exts.EmitDispatchRetrying(ctx, d, next, delay)

		if sleepErr := sleep(ctx, delay); sleepErr != nil {
			return sleepErr, gate.CaptureTrace()
		}
		attempt = next
	}
}

// resolveError is the error pipeline: silent-abort short-circuit, local
// handler, global handler, then user-error queueing or propagation. The
// trace pinned to a propagated error is always the one captured at the
// original failure, not one captured inside a handler.
func (eng *Engine) resolveError(ctx context.Context, d *gate.Dispatch, termErr error, trace gate.Trace, o *gate.Options, exts *ext.Registry) error {
	if termErr == nil {
		return nil
	}

	// Only the original action's abort is silent. A silent abort
	// substituted by a handler below propagates normally.
	if errors.Is(termErr, gate.ErrSilentAbort) {
		return nil
	}

	err := termErr
	if o.OnError != nil {
		err = callHandler(func() error { return o.OnError(err, trace) })
		if err == nil {
			return nil
		}
	}

	if gh := eng.global(); gh != nil {
		err = callHandler(func() error { return gh(err, trace, d.Key) })
		if err == nil {
			return nil
		}
	}

	var ue *gate.UserError
	if errors.As(err, &ue) && ue.Dialog {
		eng.st.PushUserError(ue)
		exts.EmitUserErrorQueued(ctx, d, ue)
		return nil
	}
	return err
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

// sleep waits for d or until ctx ends, whichever comes first.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// callHook invokes a lifecycle hook, converting a panic into a
// PanicError carrying the panic-site stack.
func callHook(ctx context.Context, f func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &gate.PanicError{Value: r, Stack: gate.CaptureTrace()}
		}
	}()
	return f(ctx)
}

// callHandler invokes an error handler with the same panic conversion.
func callHandler(f func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &gate.PanicError{Value: r, Stack: gate.CaptureTrace()}
		}
	}()
	return f()
}

// captureMetrics runs the metrics callback; a panicking callback yields
// its panic value as the payload rather than aborting the dispatch.
func captureMetrics(f gate.MetricsFunc) (payload any) {
	if f == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			payload = r
		}
	}()
	return f()
}

// traceOf prefers the stack captured at a panic site; for ordinary
// errors the stack is captured where the failure was observed.
func traceOf(err error) gate.Trace {
	var pe *gate.PanicError
	if errors.As(err, &pe) {
		return pe.Stack
	}
	return gate.CaptureTrace()
}
