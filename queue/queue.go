package queue

import (
	"context"
	"sync"

	"github.com/xraph/gate"
)

// waiter is one pending dispatch. Exactly one of its channels is closed:
// ready when it is the waiter's turn, dropped when it is evicted from a
// full queue or the manager is reset.
type waiter struct {
	ready   chan struct{}
	dropped chan struct{}
}

// keyState tracks runtime state for a single key.
type keyState struct {
	running bool
	waiters []*waiter
}

// Manager serializes dispatches per key in strict arrival order, one at a
// time. It is safe for concurrent use. The zero state holds no keys;
// entries are created lazily and pruned once idle.
type Manager struct {
	mu   sync.Mutex
	keys map[gate.Key]*keyState
}

// NewManager creates an empty sequential queue manager.
func NewManager() *Manager {
	return &Manager{keys: make(map[gate.Key]*keyState)}
}

// Enter admits the dispatch for key, waiting behind any in-flight
// dispatch for the same key. It reports false without error when the
// dispatch is dropped from a full queue, and returns the context error if
// ctx ends while waiting. After a true return the caller MUST call Leave
// when the dispatch completes, via any exit path.
//
// The admit-or-enqueue decision is one critical section; waiting happens
// strictly after the queue mutation is committed.
func (m *Manager) Enter(ctx context.Context, key gate.Key, cfg gate.SequentialConfig) (bool, error) {
	m.mu.Lock()
	st := m.keys[key]
	if st == nil {
		st = &keyState{}
		m.keys[key] = st
	}

	if !st.running {
		st.running = true
		m.mu.Unlock()
		return true, nil
	}

	var evicted *waiter
	if cfg.MaxPending > 0 && len(st.waiters) >= cfg.MaxPending {
		if !cfg.DropOldest {
			// Newest arrival is refused.
			m.mu.Unlock()
			if cfg.OnDropped != nil {
				cfg.OnDropped(key)
			}
			return false, nil
		}
		evicted = st.waiters[0]
		st.waiters = st.waiters[1:]
	}

	w := &waiter{ready: make(chan struct{}), dropped: make(chan struct{})}
	st.waiters = append(st.waiters, w)
	depth := len(st.waiters)
	m.mu.Unlock()

	if evicted != nil {
		close(evicted.dropped)
	}
	if cfg.OnQueued != nil {
		cfg.OnQueued(key, depth)
	}

	select {
	case <-w.ready:
		return true, nil
	case <-w.dropped:
		if cfg.OnDropped != nil {
			cfg.OnDropped(key)
		}
		return false, nil
	case <-ctx.Done():
		m.abandon(key, w)
		return false, ctx.Err()
	}
}

// Leave marks the current dispatch for key as finished and promotes the
// next waiter, if any, preserving arrival order.
func (m *Manager) Leave(key gate.Key) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.keys[key]
	if st == nil {
		return
	}
	if len(st.waiters) > 0 {
		next := st.waiters[0]
		st.waiters = st.waiters[1:]
		// The key stays running; ownership passes to the promoted waiter.
		close(next.ready)
		return
	}
	st.running = false
	delete(m.keys, key)
}

// abandon removes a waiter whose context ended. If the waiter was already
// promoted before the cancellation was observed, the slot it owns is
// passed on so the key never deadlocks.
func (m *Manager) abandon(key gate.Key, w *waiter) {
	m.mu.Lock()
	st := m.keys[key]
	if st != nil {
		for i, x := range st.waiters {
			if x == w {
				st.waiters = append(st.waiters[:i], st.waiters[i+1:]...)
				m.mu.Unlock()
				return
			}
		}
	}
	m.mu.Unlock()

	select {
	case <-w.ready:
		// Promoted concurrently with cancellation; release the slot.
		m.Leave(key)
	default:
	}
}

// Depth returns the number of dispatches waiting for key. Diagnostic read
// with no side effects.
func (m *Manager) Depth(key gate.Key) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st := m.keys[key]; st != nil {
		return len(st.waiters)
	}
	return 0
}

// Reset drops every pending waiter and clears all key state. In-flight
// dispatches keep running; their Leave calls find no state and are no-ops.
func (m *Manager) Reset() {
	m.mu.Lock()
	var pending []*waiter
	for _, st := range m.keys {
		pending = append(pending, st.waiters...)
	}
	m.keys = make(map[gate.Key]*keyState)
	m.mu.Unlock()

	for _, w := range pending {
		close(w.dropped)
	}
}
