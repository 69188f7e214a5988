// Package store defines the policy state store interface. The store owns
// every per-key policy map — debounce generations, running flags, throttle
// lockouts, freshness windows — and the user-facing error queue. It is
// deliberately dumb: get, set, delete, prune. Gating decisions live in the
// engine.
//
// Every method is a non-blocking critical section; implementations must
// apply each check-and-set atomically with respect to other dispatches
// sharing the key, and must never suspend while holding that atomicity.
package store

import (
	"time"

	"github.com/xraph/gate"
)

// Store holds all per-key policy state for one engine. Implementations
// must be safe for concurrent use.
type Store interface {
	// ──────────────────────────────────────────────
	// Debounce generations
	// ──────────────────────────────────────────────

	// DebounceBump increments and returns the generation for key. The
	// counter wraps around safely; admission compares generations for
	// equality only.
	DebounceBump(key gate.Key) uint64

	// DebounceCurrent returns the current generation for key.
	DebounceCurrent(key gate.Key) uint64

	// ──────────────────────────────────────────────
	// Non-reentrant running flags
	// ──────────────────────────────────────────────

	// TryAcquire atomically marks key as running. It reports false if the
	// key was already running.
	TryAcquire(key gate.Key) bool

	// Release clears the running flag for key.
	Release(key gate.Key)

	// Running reports whether key is marked running. Diagnostic read with
	// no side effects.
	Running(key gate.Key) bool

	// ──────────────────────────────────────────────
	// Throttle lockouts
	// ──────────────────────────────────────────────

	// ThrottleRemaining returns how much of key's lockout remains at now,
	// or zero if the lockout has expired or was never set.
	ThrottleRemaining(key gate.Key, now time.Time) time.Duration

	// SetThrottle sets key's lockout-until timestamp.
	SetThrottle(key gate.Key, until time.Time)

	// ClearThrottle removes key's lockout.
	ClearThrottle(key gate.Key)

	// ──────────────────────────────────────────────
	// Freshness windows
	// ──────────────────────────────────────────────

	// FreshRemaining returns how much of key's freshness window remains
	// at now, or zero if expired or never set.
	FreshRemaining(key gate.Key, now time.Time) time.Duration

	// SetFresh sets key's expiry and returns a write generation together
	// with the previous entry (for rollback). had reports whether a
	// previous entry existed.
	SetFresh(key gate.Key, until time.Time) (gen uint64, prev time.Time, had bool)

	// RollbackFresh restores key's pre-dispatch freshness entry, but only
	// if the entry's write generation still equals gen; a later writer
	// wins otherwise.
	RollbackFresh(key gate.Key, gen uint64, prev time.Time, had bool)

	// ClearFresh removes key's freshness entry.
	ClearFresh(key gate.Key)

	// ClearAllFresh removes every freshness entry.
	ClearAllFresh()

	// ──────────────────────────────────────────────
	// User-facing error queue
	// ──────────────────────────────────────────────

	// PushUserError appends a user-facing error to the queue.
	PushUserError(e *gate.UserError)

	// UserErrors returns the queued user-facing errors in append order
	// without draining them.
	UserErrors() []*gate.UserError

	// TakeUserErrors drains the queue, returning the queued errors in
	// append order.
	TakeUserErrors() []*gate.UserError

	// ──────────────────────────────────────────────
	// Lifecycle
	// ──────────────────────────────────────────────

	// Reset clears every policy map and the user-facing error queue.
	Reset()
}
