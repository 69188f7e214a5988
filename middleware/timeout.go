package middleware

import (
	"context"

	"github.com/xraph/gate"
)

// Timeout returns middleware that enforces a per-attempt execution
// deadline. If the dispatch has a non-zero Timeout, a context.WithTimeout
// wraps the handler call; when the deadline is exceeded the context is
// cancelled and the action should return context.DeadlineExceeded.
func Timeout() Middleware {
	return func(ctx context.Context, d *gate.Dispatch, next Handler) error {
		if d.Options != nil && d.Options.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d.Options.Timeout)
			defer cancel()
		}
		return next(ctx)
	}
}
