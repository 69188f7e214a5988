// Package memory provides the in-memory policy state store. All Gate
// policy state is process-local, so this is the store every engine uses;
// there is no durable backend.
package memory

import (
	"sync"
	"time"

	"github.com/xraph/gate"
	"github.com/xraph/gate/store"
)

// Ensure Store implements store.Store at compile time.
var _ store.Store = (*Store)(nil)

// freshEntry pairs an expiry with a write generation so a failed dispatch
// can tell whether its own write is still current before rolling back.
type freshEntry struct {
	until time.Time
	gen   uint64
}

// Store is the in-memory implementation of store.Store. Safe for
// concurrent use. Entries are created lazily on first use of a policy for
// a key and pruned when they no longer carry state.
type Store struct {
	mu sync.Mutex

	debounce   map[gate.Key]uint64
	running    map[gate.Key]bool
	throttle   map[gate.Key]time.Time
	fresh      map[gate.Key]*freshEntry
	freshGen   uint64
	userErrors []*gate.UserError
}

// New returns a new empty Store.
func New() *Store {
	s := &Store{}
	s.init()
	return s
}

// init allocates the policy maps. Callers must hold mu or have exclusive
// access.
func (s *Store) init() {
	s.debounce = make(map[gate.Key]uint64)
	s.running = make(map[gate.Key]bool)
	s.throttle = make(map[gate.Key]time.Time)
	s.fresh = make(map[gate.Key]*freshEntry)
	s.userErrors = nil
}

// ──────────────────────────────────────────────────
// Debounce generations
// ──────────────────────────────────────────────────

// DebounceBump increments and returns the generation for key.
func (s *Store) DebounceBump(key gate.Key) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.debounce[key]++
	return s.debounce[key]
}

// DebounceCurrent returns the current generation for key.
func (s *Store) DebounceCurrent(key gate.Key) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.debounce[key]
}

// ──────────────────────────────────────────────────
// Non-reentrant running flags
// ──────────────────────────────────────────────────

// TryAcquire atomically marks key as running.
func (s *Store) TryAcquire(key gate.Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running[key] {
		return false
	}
	s.running[key] = true
	return true
}

// Release clears the running flag for key.
func (s *Store) Release(key gate.Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, key)
}

// Running reports whether key is marked running.
func (s *Store) Running(key gate.Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running[key]
}

// ──────────────────────────────────────────────────
// Throttle lockouts
// ──────────────────────────────────────────────────

// ThrottleRemaining returns the remaining lockout for key at now.
func (s *Store) ThrottleRemaining(key gate.Key, now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	until, ok := s.throttle[key]
	if !ok {
		return 0
	}
	if !now.Before(until) {
		// Expired lockouts are pruned on read.
		delete(s.throttle, key)
		return 0
	}
	return until.Sub(now)
}

// SetThrottle sets key's lockout-until timestamp.
func (s *Store) SetThrottle(key gate.Key, until time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.throttle[key] = until
}

// ClearThrottle removes key's lockout.
func (s *Store) ClearThrottle(key gate.Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.throttle, key)
}

// ──────────────────────────────────────────────────
// Freshness windows
// ──────────────────────────────────────────────────

// FreshRemaining returns the remaining freshness window for key at now.
func (s *Store) FreshRemaining(key gate.Key, now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.fresh[key]
	if !ok || !now.Before(e.until) {
		return 0
	}
	return e.until.Sub(now)
}

// SetFresh sets key's expiry and returns the write generation and the
// previous entry for rollback.
func (s *Store) SetFresh(key gate.Key, until time.Time) (uint64, time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var prev time.Time
	var had bool
	if e, ok := s.fresh[key]; ok {
		prev, had = e.until, true
	}
	// Generations are store-global so a delete-then-set by another
	// dispatch can never collide with a stale rollback token.
	s.freshGen++
	gen := s.freshGen
	s.fresh[key] = &freshEntry{until: until, gen: gen}
	return gen, prev, had
}

// RollbackFresh restores key's pre-dispatch entry if this dispatch's write
// is still current; a later writer wins otherwise.
func (s *Store) RollbackFresh(key gate.Key, gen uint64, prev time.Time, had bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.fresh[key]
	if !ok || e.gen != gen {
		return
	}
	if !had {
		delete(s.fresh, key)
		return
	}
	s.fresh[key] = &freshEntry{until: prev, gen: gen}
}

// ClearFresh removes key's freshness entry.
func (s *Store) ClearFresh(key gate.Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.fresh, key)
}

// ClearAllFresh removes every freshness entry.
func (s *Store) ClearAllFresh() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fresh = make(map[gate.Key]*freshEntry)
}

// ──────────────────────────────────────────────────
// User-facing error queue
// ──────────────────────────────────────────────────

// PushUserError appends a user-facing error to the queue.
func (s *Store) PushUserError(e *gate.UserError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userErrors = append(s.userErrors, e)
}

// UserErrors returns the queued errors in append order without draining.
func (s *Store) UserErrors() []*gate.UserError {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*gate.UserError, len(s.userErrors))
	copy(out, s.userErrors)
	return out
}

// TakeUserErrors drains the queue.
func (s *Store) TakeUserErrors() []*gate.UserError {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.userErrors
	s.userErrors = nil
	return out
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

// Reset clears every policy map and the user-facing error queue.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.init()
}
