package gate

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Dispatch describes one invocation of the control core: its identity, the
// resolved per-call options, and the current retry attempt. The engine
// injects the descriptor into the action's context; retrieve it with
// FromContext.
//
// Attempt is updated in place between retry attempts. The descriptor is
// owned by the dispatch that created it and must not be read concurrently
// from other goroutines.
type Dispatch struct {
	// ID uniquely identifies this dispatch in logs and traces.
	ID uuid.UUID

	// Key is the dispatch's identifying key.
	Key Key

	// Name is the optional label from WithName.
	Name string

	// Attempt is the current attempt number; 0 is the first try.
	Attempt int

	// StartedAt is when the dispatch entered the admission chain.
	StartedAt time.Time

	// Options is the resolved per-call configuration.
	Options *Options
}

type dispatchCtxKey struct{}

// NewContext returns a context carrying the dispatch descriptor.
func NewContext(ctx context.Context, d *Dispatch) context.Context {
	return context.WithValue(ctx, dispatchCtxKey{}, d)
}

// FromContext returns the dispatch descriptor injected by the engine, if
// the context belongs to a running dispatch.
func FromContext(ctx context.Context) (*Dispatch, bool) {
	d, ok := ctx.Value(dispatchCtxKey{}).(*Dispatch)
	return d, ok
}
