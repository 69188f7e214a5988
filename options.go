package gate

import (
	"context"
	"time"

	"github.com/xraph/gate/backoff"
)

// Wrapper is the execution-wrapping hook. Unlike Before and After, which
// bracket the entire retry loop, the wrapper is invoked once per attempt
// and wraps the action body directly. It must call next to run the action.
type Wrapper func(ctx context.Context, next func(context.Context) error) error

// MetricsFunc produces the metrics payload handed to observers at dispatch
// start and end. If it panics, the recovered value is substituted as the
// payload; metrics computation failures never abort a dispatch.
type MetricsFunc func() any

// Options is the fully resolved per-dispatch configuration. A nil policy
// pointer means the policy does not apply to the dispatch. Build Options
// with the With* option functions; repeated options for the same policy
// merge field-by-field, later values winning.
type Options struct {
	// Name is an optional label used in logs and trace attributes.
	Name string

	// Timeout bounds each attempt of the action body. Zero means no
	// deadline.
	Timeout time.Duration

	Debounce   *DebounceConfig
	Lock       *LockConfig
	Throttle   *ThrottleConfig
	Fresh      *FreshConfig
	Limit      *LimitConfig
	Sequential *SequentialConfig
	Retry      *RetryConfig

	// Strategy overrides the exponential delay computed from Retry.
	Strategy backoff.Strategy

	// Before runs once per dispatch, after admission and before the first
	// attempt. A Before failure is handed to the error pipeline and the
	// action body is never invoked.
	Before func(ctx context.Context) error

	// After runs once per dispatch, after the retry loop ends and before
	// the error pipeline. If the dispatch succeeded and After fails, the
	// After error becomes the terminal error.
	After func(ctx context.Context) error

	// Wrap wraps each attempt of the action body, innermost of the
	// middleware chain.
	Wrap Wrapper

	// Metrics produces the observer metrics payload.
	Metrics MetricsFunc

	// OnError is the dispatch-local error handler.
	OnError ErrorHandler
}

// Option configures one dispatch.
type Option func(*Options)

// WithName labels the dispatch in logs and trace attributes.
func WithName(name string) Option {
	return func(o *Options) { o.Name = name }
}

// WithTimeout bounds each attempt of the action body.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) { o.Timeout = d }
}

// WithDebounce enables the debounce policy for the dispatch.
func WithDebounce(cfg DebounceConfig) Option {
	return func(o *Options) {
		if o.Debounce == nil {
			o.Debounce = &DebounceConfig{}
		}
		*o.Debounce = o.Debounce.Merge(cfg)
	}
}

// WithNonReentrant enables the non-reentrancy policy for the dispatch.
func WithNonReentrant(cfg LockConfig) Option {
	return func(o *Options) {
		if o.Lock == nil {
			o.Lock = &LockConfig{}
		}
		*o.Lock = o.Lock.Merge(cfg)
	}
}

// WithThrottle enables the throttle policy for the dispatch.
func WithThrottle(cfg ThrottleConfig) Option {
	return func(o *Options) {
		if o.Throttle == nil {
			o.Throttle = &ThrottleConfig{}
		}
		*o.Throttle = o.Throttle.Merge(cfg)
	}
}

// WithFresh enables the freshness policy for the dispatch.
func WithFresh(cfg FreshConfig) Option {
	return func(o *Options) {
		if o.Fresh == nil {
			o.Fresh = &FreshConfig{}
		}
		*o.Fresh = o.Fresh.Merge(cfg)
	}
}

// WithRateLimit enables the rate-limit policy for the dispatch.
func WithRateLimit(cfg LimitConfig) Option {
	return func(o *Options) {
		if o.Limit == nil {
			o.Limit = &LimitConfig{}
		}
		*o.Limit = o.Limit.Merge(cfg)
	}
}

// WithSequential enables the sequential-queue policy for the dispatch.
func WithSequential(cfg SequentialConfig) Option {
	return func(o *Options) {
		if o.Sequential == nil {
			o.Sequential = &SequentialConfig{}
		}
		*o.Sequential = o.Sequential.Merge(cfg)
	}
}

// WithRetry enables the retry policy for the dispatch.
func WithRetry(cfg RetryConfig) Option {
	return func(o *Options) {
		if o.Retry == nil {
			o.Retry = &RetryConfig{}
		}
		*o.Retry = o.Retry.Merge(cfg)
	}
}

// WithBackoffStrategy replaces the exponential delay computed from the
// retry configuration with a custom strategy. Implies the retry policy.
func WithBackoffStrategy(s backoff.Strategy) Option {
	return func(o *Options) {
		if o.Retry == nil {
			o.Retry = &RetryConfig{}
		}
		o.Strategy = s
	}
}

// WithBefore sets the hook that runs once before the first attempt.
func WithBefore(f func(ctx context.Context) error) Option {
	return func(o *Options) { o.Before = f }
}

// WithAfter sets the hook that runs once after the retry loop ends.
func WithAfter(f func(ctx context.Context) error) Option {
	return func(o *Options) { o.After = f }
}

// WithWrap sets the per-attempt execution wrapper.
func WithWrap(w Wrapper) Option {
	return func(o *Options) { o.Wrap = w }
}

// WithMetrics sets the callback producing the observer metrics payload.
func WithMetrics(f MetricsFunc) Option {
	return func(o *Options) { o.Metrics = f }
}

// WithErrorHandler sets the dispatch-local error handler.
func WithErrorHandler(h ErrorHandler) Option {
	return func(o *Options) { o.OnError = h }
}

// BuildOptions applies opts to an empty Options value and finalizes it
// against the ambient configuration.
func BuildOptions(ambient Config, opts ...Option) Options {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	o.Finalize(ambient)
	return o
}

// Finalize fills zero-valued fields of every enabled policy from the
// ambient configuration and normalizes invalid values. It is idempotent.
func (o *Options) Finalize(ambient Config) {
	if o.Timeout == 0 {
		o.Timeout = ambient.Timeout
	}
	if o.Debounce != nil && o.Debounce.Delay == 0 {
		o.Debounce.Delay = ambient.DebounceDelay
	}
	if o.Throttle != nil && o.Throttle.Window == 0 {
		o.Throttle.Window = ambient.ThrottleWindow
	}
	if o.Fresh != nil && o.Fresh.Window == 0 {
		o.Fresh.Window = ambient.FreshWindow
	}
	if o.Limit != nil {
		if o.Limit.Rate == 0 {
			o.Limit.Rate = ambient.RateLimit
		}
		if o.Limit.Burst == 0 {
			o.Limit.Burst = ambient.RateBurst
		}
		if o.Limit.Burst < 1 {
			o.Limit.Burst = 1
		}
	}
	if o.Sequential != nil && o.Sequential.MaxPending == 0 {
		o.Sequential.MaxPending = ambient.MaxPending
	}
	if o.Retry != nil {
		r := o.Retry
		if r.MaxRetries == 0 {
			r.MaxRetries = ambient.MaxRetries
		}
		if r.MaxRetries == NoRetries {
			r.MaxRetries = 0
		}
		if r.MaxRetries < Unlimited {
			r.MaxRetries = 0
		}
		if r.InitialDelay == 0 {
			r.InitialDelay = ambient.RetryInitialDelay
		}
		if r.Multiplier == 0 {
			r.Multiplier = ambient.RetryMultiplier
		}
		if r.Multiplier <= 1 {
			r.Multiplier = 2
		}
		if r.MaxDelay == 0 {
			r.MaxDelay = ambient.RetryMaxDelay
		}
	}
}

// MaxRetries reports the resolved retry ceiling: 0 when the retry policy
// is disabled, Unlimited when unbounded.
func (o *Options) MaxRetries() int {
	if o.Retry == nil {
		return 0
	}
	return o.Retry.MaxRetries
}

// BackoffStrategy returns the strategy for retry delays: the custom
// strategy if one was set, otherwise an exponential strategy built from
// the resolved retry configuration.
func (o *Options) BackoffStrategy() backoff.Strategy {
	if o.Strategy != nil {
		return o.Strategy
	}
	if o.Retry == nil {
		return nil
	}
	return backoff.NewExponential(o.Retry.InitialDelay, o.Retry.Multiplier, o.Retry.MaxDelay)
}
