// Package optimistic implements the optimistic-command pattern on top of
// the engine's non-reentrant policy: apply a value to local state
// immediately, send it to the authority in the background, and roll back
// or reload when the send fails.
package optimistic

import (
	"context"
	"errors"

	"github.com/xraph/gate"
	"github.com/xraph/gate/engine"
)

// Command describes one optimistic update. S is the optimistic value's
// type, R the authority's response type.
//
// Apply and Send are required; the rest are optional. When Rollback is
// nil a failed send leaves the applied value in place. The predicates
// default to "always" when nil.
type Command[S, R any] struct {
	// Key identifies the command for the non-reentrant policy: a second
	// Run with the same key while one is in flight is refused.
	Key gate.Key

	// Value is the optimistic value applied before the send.
	Value S

	// Apply writes the value into local state.
	Apply func(value S)

	// Send delivers the value to the authority.
	Send func(ctx context.Context) (R, error)

	// Rollback restores local state after a failed send. It receives
	// the value that was optimistically applied.
	Rollback func(value S)

	// ShouldRollback gates Rollback on the send error. Nil means roll
	// back on every failure.
	ShouldRollback func(err error) bool

	// Reload fetches the authoritative value after a failed send.
	Reload func(ctx context.Context) (S, error)

	// ShouldReload gates Reload on the send error. Nil means reload on
	// every failure, when Reload is set.
	ShouldReload func(err error) bool

	// ApplyReload writes the reloaded value into local state. Nil falls
	// back to Apply.
	ApplyReload func(value S)
}

// Run applies cmd.Value immediately, then issues one dispatch through
// eng to deliver it. On terminal send failure it rolls back and reloads
// per the command's predicates, in that order, before the error continues
// through the engine's error pipeline. With a retry policy, intermediate
// attempt failures keep the optimistic value in place; recovery runs
// exactly once, after the attempt that exhausts the policy.
//
// The response and true are returned when the send succeeded; the zero
// response and false when the dispatch was refused as a duplicate or its
// error was suppressed or queued.
func Run[S, R any](ctx context.Context, eng *engine.Engine, cmd Command[S, R], opts ...gate.Option) (R, bool, error) {
	cmd.Apply(cmd.Value)

	opts = append(opts, gate.WithNonReentrant(gate.LockConfig{}))
	return engine.Dispatch(ctx, eng, cmd.Key, func(ctx context.Context) (R, error) {
		resp, err := cmd.Send(ctx)
		if err == nil {
			return resp, nil
		}
		if terminalAttempt(ctx, err) {
			cmd.recover(ctx, err)
		}
		var zero R
		return zero, err
	}, opts...)
}

// terminalAttempt reports whether a failed attempt is the dispatch's
// last: a silent abort is never retried, and an attempt at the retry
// ceiling exhausts the policy. Unlimited retries never reach a terminal
// attempt, so recovery waits for eventual success.
func terminalAttempt(ctx context.Context, sendErr error) bool {
	if errors.Is(sendErr, gate.ErrSilentAbort) {
		return true
	}
	d, ok := gate.FromContext(ctx)
	if !ok {
		return true
	}
	ceiling := d.Options.MaxRetries()
	return ceiling != gate.Unlimited && d.Attempt >= ceiling
}

// recover undoes a failed optimistic apply. Rollback runs first so a
// reload always overwrites the restored value, never the optimistic one.
func (cmd Command[S, R]) recover(ctx context.Context, sendErr error) {
	if cmd.Rollback != nil && (cmd.ShouldRollback == nil || cmd.ShouldRollback(sendErr)) {
		cmd.Rollback(cmd.Value)
	}
	if cmd.Reload == nil || (cmd.ShouldReload != nil && !cmd.ShouldReload(sendErr)) {
		return
	}
	fresh, err := cmd.Reload(ctx)
	if err != nil {
		return
	}
	apply := cmd.ApplyReload
	if apply == nil {
		apply = cmd.Apply
	}
	apply(fresh)
}
