package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/gate"
)

// Logging returns middleware that logs attempt start and completion.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, d *gate.Dispatch, next Handler) error {
		logger.Debug("dispatch attempt started",
			slog.String("dispatch_id", d.ID.String()),
			slog.String("name", d.Name),
			slog.Int("attempt", d.Attempt),
		)

		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			logger.Warn("dispatch attempt failed",
				slog.String("dispatch_id", d.ID.String()),
				slog.String("name", d.Name),
				slog.Int("attempt", d.Attempt),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Debug("dispatch attempt completed",
				slog.String("dispatch_id", d.ID.String()),
				slog.String("name", d.Name),
				slog.Int("attempt", d.Attempt),
				slog.Duration("elapsed", elapsed),
			)
		}

		return err
	}
}
