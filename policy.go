package gate

import "time"

// Retry count sentinels. Zero-valued MaxRetries fields fall through to the
// next configuration layer, so explicit values at every layer need their
// own spellings.
const (
	// Unlimited retries: the engine keeps retrying until the action
	// succeeds, with no imposed ceiling.
	Unlimited = -1

	// NoRetries explicitly disables retrying, overriding any ambient
	// default. Normalized to zero retries when options are finalized.
	NoRetries = -2
)

// DebounceConfig trails a burst of dispatches for one key: every dispatch
// records a new generation and sleeps for Delay; only the dispatch still
// holding the current generation when its delay elapses proceeds. Earlier
// dispatches are permanently superseded and yield no result.
type DebounceConfig struct {
	// Delay is how long a dispatch waits before checking whether it was
	// superseded. Zero falls through to the ambient configuration.
	Delay time.Duration

	// Key overrides the dispatch key for debounce state. Nil uses the
	// dispatch key.
	Key Key

	// OnSuperseded is invoked with the debounce key when a later dispatch
	// supersedes this one.
	OnSuperseded func(key Key)
}

// Merge overlays non-zero fields of over onto c. Used for the
// default < ambient < per-call configuration layering.
func (c DebounceConfig) Merge(over DebounceConfig) DebounceConfig {
	if over.Delay != 0 {
		c.Delay = over.Delay
	}
	if over.Key != nil {
		c.Key = over.Key
	}
	if over.OnSuperseded != nil {
		c.OnSuperseded = over.OnSuperseded
	}
	return c
}

// LockConfig guards a key against reentrant dispatch: at most one in-flight
// execution per key at any instant. The running flag is set synchronously
// at admission and cleared on every exit path.
type LockConfig struct {
	// Key overrides the dispatch key for the running flag.
	Key Key

	// OnBlocked is invoked with the lock key when a dispatch is rejected
	// because the key is already running.
	OnBlocked func(key Key)
}

// Merge overlays non-zero fields of over onto c.
func (c LockConfig) Merge(over LockConfig) LockConfig {
	if over.Key != nil {
		c.Key = over.Key
	}
	if over.OnBlocked != nil {
		c.OnBlocked = over.OnBlocked
	}
	return c
}

// ThrottleConfig rejects dispatches for a key until a lockout expires. The
// lockout is set synchronously before the action body runs, and only by
// the admitted dispatch.
type ThrottleConfig struct {
	// Window is the lockout duration. Zero falls through to the ambient
	// configuration.
	Window time.Duration

	// Key overrides the dispatch key for throttle state.
	Key Key

	// Ignore bypasses the lockout check but still refreshes the lockout.
	Ignore bool

	// ClearOnError releases the lockout if the dispatch fails terminally.
	ClearOnError bool

	// OnThrottled is invoked with the throttle key and the remaining
	// lockout when a dispatch is rejected.
	OnThrottled func(key Key, remaining time.Duration)
}

// Merge overlays non-zero fields of over onto c.
func (c ThrottleConfig) Merge(over ThrottleConfig) ThrottleConfig {
	if over.Window != 0 {
		c.Window = over.Window
	}
	if over.Key != nil {
		c.Key = over.Key
	}
	if over.Ignore {
		c.Ignore = true
	}
	if over.ClearOnError {
		c.ClearOnError = true
	}
	if over.OnThrottled != nil {
		c.OnThrottled = over.OnThrottled
	}
	return c
}

// FreshConfig skips dispatches for a key while a freshness window from the
// previous admitted dispatch has not expired. The new expiry is set
// synchronously at admission; on terminal failure the entry is rolled back
// to its pre-dispatch value unless another dispatch has overwritten it
// since (last writer wins).
type FreshConfig struct {
	// Window is the freshness duration. Zero falls through to the ambient
	// configuration.
	Window time.Duration

	// Key overrides the dispatch key for freshness state.
	Key Key

	// Ignore bypasses the freshness check but still sets the new expiry.
	// On terminal failure the entry is cleared (marked stale) instead of
	// rolled back.
	Ignore bool

	// OnFresh is invoked with the freshness key and the remaining window
	// when a dispatch is skipped.
	OnFresh func(key Key, remaining time.Duration)
}

// Merge overlays non-zero fields of over onto c.
func (c FreshConfig) Merge(over FreshConfig) FreshConfig {
	if over.Window != 0 {
		c.Window = over.Window
	}
	if over.Key != nil {
		c.Key = over.Key
	}
	if over.Ignore {
		c.Ignore = true
	}
	if over.OnFresh != nil {
		c.OnFresh = over.OnFresh
	}
	return c
}

// LimitConfig applies a per-key token-bucket rate limit. Dispatches that
// exceed the sustained rate are rejected.
type LimitConfig struct {
	// Rate is the maximum sustained dispatches per second. Zero falls
	// through to the ambient configuration.
	Rate float64

	// Burst is the token-bucket burst size. Zero falls through; the
	// effective burst is never below 1.
	Burst int

	// Key overrides the dispatch key for rate-limit state.
	Key Key

	// OnLimited is invoked with the rate-limit key when a dispatch is
	// rejected.
	OnLimited func(key Key)
}

// Merge overlays non-zero fields of over onto c.
func (c LimitConfig) Merge(over LimitConfig) LimitConfig {
	if over.Rate != 0 {
		c.Rate = over.Rate
	}
	if over.Burst != 0 {
		c.Burst = over.Burst
	}
	if over.Key != nil {
		c.Key = over.Key
	}
	if over.OnLimited != nil {
		c.OnLimited = over.OnLimited
	}
	return c
}

// SequentialConfig serializes dispatches for one key in strict arrival
// order, one at a time. A dispatch whose predecessor is still executing
// waits in a bounded FIFO; when the queue is full, either the newest or
// the oldest pending entry is dropped.
type SequentialConfig struct {
	// Key overrides the dispatch key for queue state.
	Key Key

	// MaxPending bounds the number of waiting dispatches per key. Zero
	// falls through to the ambient configuration.
	MaxPending int

	// DropOldest drops the oldest pending entry when the queue is full.
	// When false, the newest arrival is refused instead.
	DropOldest bool

	// OnQueued is invoked with the queue key and the queue depth when a
	// dispatch starts waiting.
	OnQueued func(key Key, depth int)

	// OnDropped is invoked with the queue key when a pending dispatch is
	// dropped from a full queue.
	OnDropped func(key Key)
}

// Merge overlays non-zero fields of over onto c.
func (c SequentialConfig) Merge(over SequentialConfig) SequentialConfig {
	if over.Key != nil {
		c.Key = over.Key
	}
	if over.MaxPending != 0 {
		c.MaxPending = over.MaxPending
	}
	if over.DropOldest {
		c.DropOldest = true
	}
	if over.OnQueued != nil {
		c.OnQueued = over.OnQueued
	}
	if over.OnDropped != nil {
		c.OnDropped = over.OnDropped
	}
	return c
}

// RetryConfig wraps the action body in a bounded or unbounded retry loop
// with exponential backoff. The delay before retry attempt i (1-indexed)
// is min(InitialDelay * Multiplier^(i-1), MaxDelay).
type RetryConfig struct {
	// MaxRetries is the number of retries after the first attempt.
	// Unlimited (-1) removes the ceiling; NoRetries (-2) pins the count
	// to zero even when an ambient default says otherwise. Zero falls
	// through to the ambient configuration.
	MaxRetries int

	// InitialDelay is the delay before the first retry. Zero falls
	// through.
	InitialDelay time.Duration

	// Multiplier scales the delay each attempt. Values at or below 1 are
	// invalid and replaced with 2. Zero falls through.
	Multiplier float64

	// MaxDelay caps the computed delay. Zero falls through.
	MaxDelay time.Duration

	// OnRetry is invoked before each backoff sleep with the upcoming
	// attempt number (1-indexed), the computed delay, and the error and
	// trace from the attempt that just failed.
	OnRetry func(attempt int, delay time.Duration, err error, trace Trace)
}

// Merge overlays non-zero fields of over onto c.
func (c RetryConfig) Merge(over RetryConfig) RetryConfig {
	if over.MaxRetries != 0 {
		c.MaxRetries = over.MaxRetries
	}
	if over.InitialDelay != 0 {
		c.InitialDelay = over.InitialDelay
	}
	if over.Multiplier != 0 {
		c.Multiplier = over.Multiplier
	}
	if over.MaxDelay != 0 {
		c.MaxDelay = over.MaxDelay
	}
	if over.OnRetry != nil {
		c.OnRetry = over.OnRetry
	}
	return c
}
