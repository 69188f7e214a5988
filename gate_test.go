package gate

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// ---------------------------------------------------------------
// Options building and layering
// ---------------------------------------------------------------

func TestBuildOptions_ExplicitBeatsAmbient(t *testing.T) {
	ambient := DefaultConfig().Merge(Config{ThrottleWindow: 5 * time.Second})

	o := BuildOptions(ambient, WithThrottle(ThrottleConfig{Window: time.Second}))
	if o.Throttle.Window != time.Second {
		t.Fatalf("window = %v, want the explicit 1s", o.Throttle.Window)
	}

	o = BuildOptions(ambient, WithThrottle(ThrottleConfig{}))
	if o.Throttle.Window != 5*time.Second {
		t.Fatalf("window = %v, want the ambient 5s", o.Throttle.Window)
	}
}

func TestBuildOptions_RepeatedOptionsMerge(t *testing.T) {
	o := BuildOptions(DefaultConfig(),
		WithThrottle(ThrottleConfig{Window: time.Second}),
		WithThrottle(ThrottleConfig{ClearOnError: true}),
	)
	if o.Throttle.Window != time.Second {
		t.Fatalf("window = %v, merge must keep the earlier value", o.Throttle.Window)
	}
	if !o.Throttle.ClearOnError {
		t.Fatal("merge must take the later flag")
	}
}

func TestBuildOptions_DisabledPoliciesStayNil(t *testing.T) {
	o := BuildOptions(DefaultConfig(), WithName("x"))
	if o.Debounce != nil || o.Lock != nil || o.Throttle != nil ||
		o.Fresh != nil || o.Limit != nil || o.Sequential != nil || o.Retry != nil {
		t.Fatal("unconfigured policies must remain nil")
	}
	if o.MaxRetries() != 0 {
		t.Fatalf("MaxRetries = %d, want 0 without a retry policy", o.MaxRetries())
	}
	if o.BackoffStrategy() != nil {
		t.Fatal("no strategy without a retry policy")
	}
}

func TestFinalize_RetrySentinels(t *testing.T) {
	tests := []struct {
		name    string
		in      int
		ambient int
		want    int
	}{
		{"zero falls through to ambient", 0, 3, 3},
		{"explicit wins", 2, 3, 2},
		{"no-retries sentinel pins zero", NoRetries, 3, 0},
		{"unlimited survives", Unlimited, 3, Unlimited},
		{"garbage negative clamps to zero", -7, 3, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ambient := DefaultConfig().Merge(Config{MaxRetries: tt.ambient})
			o := BuildOptions(ambient, WithRetry(RetryConfig{MaxRetries: tt.in}))
			if got := o.MaxRetries(); got != tt.want {
				t.Fatalf("MaxRetries = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestFinalize_NormalizesBurstAndMultiplier(t *testing.T) {
	o := BuildOptions(Config{}, // empty ambient, nothing to fall through to
		WithRateLimit(LimitConfig{Rate: 1}),
		WithRetry(RetryConfig{MaxRetries: 1, Multiplier: 0.5}),
	)
	if o.Limit.Burst != 1 {
		t.Fatalf("burst = %d, want clamped to 1", o.Limit.Burst)
	}
	if o.Retry.Multiplier != 2 {
		t.Fatalf("multiplier = %v, want replaced with 2", o.Retry.Multiplier)
	}
}

func TestBackoffStrategy_FromRetryConfig(t *testing.T) {
	o := BuildOptions(DefaultConfig(), WithRetry(RetryConfig{
		MaxRetries:   3,
		InitialDelay: 10 * time.Millisecond,
		Multiplier:   2,
		MaxDelay:     25 * time.Millisecond,
	}))
	s := o.BackoffStrategy()
	if s == nil {
		t.Fatal("expected a strategy")
	}
	if got := s.Delay(1); got != 10*time.Millisecond {
		t.Fatalf("Delay(1) = %v", got)
	}
	if got := s.Delay(3); got != 25*time.Millisecond {
		t.Fatalf("Delay(3) = %v, want capped", got)
	}
}

// ---------------------------------------------------------------
// Config
// ---------------------------------------------------------------

func TestConfig_Merge(t *testing.T) {
	base := DefaultConfig()
	merged := base.Merge(Config{FreshWindow: time.Minute, MaxPending: 4})

	if merged.FreshWindow != time.Minute {
		t.Fatalf("FreshWindow = %v", merged.FreshWindow)
	}
	if merged.MaxPending != 4 {
		t.Fatalf("MaxPending = %d", merged.MaxPending)
	}
	if merged.DebounceDelay != base.DebounceDelay {
		t.Fatal("zero fields of the overlay must not clobber the base")
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("GATE_THROTTLE_WINDOW", "3s")
	t.Setenv("GATE_MAX_RETRIES", "5")

	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv: %v", err)
	}
	if cfg.ThrottleWindow != 3*time.Second {
		t.Fatalf("ThrottleWindow = %v", cfg.ThrottleWindow)
	}
	if cfg.MaxRetries != 5 {
		t.Fatalf("MaxRetries = %d", cfg.MaxRetries)
	}
	if cfg.FreshWindow != DefaultConfig().FreshWindow {
		t.Fatal("unset variables must keep the library defaults")
	}
}

// ---------------------------------------------------------------
// Errors
// ---------------------------------------------------------------

func TestUserError(t *testing.T) {
	ue := NewUserError("payment declined")
	if !ue.Dialog {
		t.Fatal("NewUserError must default to a dialog error")
	}
	if ue.Error() != "payment declined" {
		t.Fatalf("Error() = %q", ue.Error())
	}

	cause := errors.New("card expired")
	wrapped := &UserError{Message: "payment declined", Cause: cause}
	if !errors.Is(wrapped, cause) {
		t.Fatal("UserError must unwrap to its cause")
	}
}

func TestPanicError(t *testing.T) {
	pe := &PanicError{Value: "boom", Stack: CaptureTrace()}
	var target *PanicError
	if !errors.As(error(pe), &target) {
		t.Fatal("errors.As must match *PanicError")
	}
	if pe.Stack == "" {
		t.Fatal("CaptureTrace must produce a non-empty stack")
	}
}

// ---------------------------------------------------------------
// Consumable
// ---------------------------------------------------------------

func TestConsumable_ConsumeOnce(t *testing.T) {
	c := NewConsumable("welcome")

	if v, ok := c.Peek(); !ok || v != "welcome" {
		t.Fatalf("Peek = (%q, %v)", v, ok)
	}
	if v, ok := c.Consume(); !ok || v != "welcome" {
		t.Fatalf("Consume = (%q, %v)", v, ok)
	}
	if _, ok := c.Consume(); ok {
		t.Fatal("second Consume must report spent")
	}
	if _, ok := c.Peek(); ok {
		t.Fatal("Peek after Consume must report spent")
	}
}

func TestConsumable_ConcurrentConsumers(t *testing.T) {
	c := NewConsumable(1)
	var wins int32
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := c.Consume(); ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("wins = %d, want exactly 1", wins)
	}
}
