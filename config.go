package gate

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the ambient, application-wide defaults for every policy.
// Per-call configurations are merged field-by-field over these values:
// explicit > ambient > library default, with zero-valued fields at a more
// specific level falling through to the next.
type Config struct {
	// DebounceDelay is the default debounce delay.
	DebounceDelay time.Duration `env:"GATE_DEBOUNCE_DELAY"`

	// ThrottleWindow is the default throttle lockout duration.
	ThrottleWindow time.Duration `env:"GATE_THROTTLE_WINDOW"`

	// FreshWindow is the default freshness duration.
	FreshWindow time.Duration `env:"GATE_FRESH_WINDOW"`

	// RateLimit is the default sustained dispatches per second for the
	// rate-limit policy. Zero leaves the policy without a default rate.
	RateLimit float64 `env:"GATE_RATE_LIMIT"`

	// RateBurst is the default token-bucket burst size.
	RateBurst int `env:"GATE_RATE_BURST"`

	// MaxPending is the default sequential queue bound per key.
	MaxPending int `env:"GATE_MAX_PENDING"`

	// MaxRetries is the default retry count. Zero means no retries.
	MaxRetries int `env:"GATE_MAX_RETRIES"`

	// RetryInitialDelay is the default delay before the first retry.
	RetryInitialDelay time.Duration `env:"GATE_RETRY_INITIAL_DELAY"`

	// RetryMultiplier is the default backoff multiplier.
	RetryMultiplier float64 `env:"GATE_RETRY_MULTIPLIER"`

	// RetryMaxDelay is the default cap on the computed retry delay.
	RetryMaxDelay time.Duration `env:"GATE_RETRY_MAX_DELAY"`

	// Timeout is the default per-dispatch execution deadline. Zero
	// disables the deadline.
	Timeout time.Duration `env:"GATE_TIMEOUT"`
}

// DefaultConfig returns a Config with the library defaults.
func DefaultConfig() Config {
	return Config{
		DebounceDelay:     300 * time.Millisecond,
		ThrottleWindow:    1 * time.Second,
		FreshWindow:       30 * time.Second,
		RateBurst:         1,
		MaxPending:        16,
		MaxRetries:        0,
		RetryInitialDelay: 500 * time.Millisecond,
		RetryMultiplier:   2,
		RetryMaxDelay:     30 * time.Second,
	}
}

// ConfigFromEnv returns DefaultConfig overlaid with any GATE_* environment
// variables that are set.
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("gate: parse config from environment: %w", err)
	}
	return cfg, nil
}

// Merge overlays non-zero fields of over onto c, producing the ambient
// layer for an engine from layered Config sources.
func (c Config) Merge(over Config) Config {
	if over.DebounceDelay != 0 {
		c.DebounceDelay = over.DebounceDelay
	}
	if over.ThrottleWindow != 0 {
		c.ThrottleWindow = over.ThrottleWindow
	}
	if over.FreshWindow != 0 {
		c.FreshWindow = over.FreshWindow
	}
	if over.RateLimit != 0 {
		c.RateLimit = over.RateLimit
	}
	if over.RateBurst != 0 {
		c.RateBurst = over.RateBurst
	}
	if over.MaxPending != 0 {
		c.MaxPending = over.MaxPending
	}
	if over.MaxRetries != 0 {
		c.MaxRetries = over.MaxRetries
	}
	if over.RetryInitialDelay != 0 {
		c.RetryInitialDelay = over.RetryInitialDelay
	}
	if over.RetryMultiplier != 0 {
		c.RetryMultiplier = over.RetryMultiplier
	}
	if over.RetryMaxDelay != 0 {
		c.RetryMaxDelay = over.RetryMaxDelay
	}
	if over.Timeout != 0 {
		c.Timeout = over.Timeout
	}
	return c
}
