package gate

import "sync"

// Consumable holds a value that can be observed exactly once. It signals
// state-transition effects (show a dialog, play a sound, navigate) that
// must fire on the transition that produced them and never again, for
// example when the same state is re-rendered.
type Consumable[T any] struct {
	mu       sync.Mutex
	value    T
	consumed bool
}

// NewConsumable wraps value in an unconsumed Consumable.
func NewConsumable[T any](value T) *Consumable[T] {
	return &Consumable[T]{value: value}
}

// Consume returns the value and marks it consumed. Only the first call
// reports true; later calls return the zero value and false.
func (c *Consumable[T]) Consume() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.consumed {
		var zero T
		return zero, false
	}
	c.consumed = true
	return c.value, true
}

// Peek returns the value without consuming it, and whether it is still
// unconsumed.
func (c *Consumable[T]) Peek() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value, !c.consumed
}
