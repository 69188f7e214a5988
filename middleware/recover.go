package middleware

import (
	"context"
	"log/slog"

	"github.com/xraph/gate"
)

// Recover returns middleware that recovers from panics in the handler
// chain. Panics are converted to *gate.PanicError carrying the stack
// captured at the panic site, so the error pipeline can report the
// original failure location.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx context.Context, d *gate.Dispatch, next Handler) (retErr error) {
		defer func() {
			if r := recover(); r != nil {
				stack := gate.CaptureTrace()
				logger.Error("dispatch action panicked",
					slog.String("dispatch_id", d.ID.String()),
					slog.String("name", d.Name),
					slog.Any("panic", r),
					slog.String("stack", string(stack)),
				)
				retErr = &gate.PanicError{Value: r, Stack: stack}
			}
		}()
		return next(ctx)
	}
}
