// Package engine wires all Gate subsystems together. It creates the
// extension registry, middleware chain, policy store, sequential queue
// manager, and rate limiter, and hosts the dispatch pipeline: admission
// chain, retry loop, and error pipeline.
//
// This package exists to break the import cycle: the root gate package
// defines the vocabulary types (imported by ext, middleware, store, etc.)
// and so cannot import those packages back. The engine package sits above
// all subsystem packages and below the application layer.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/gate"
	"github.com/xraph/gate/backoff"
	"github.com/xraph/gate/ext"
	mw "github.com/xraph/gate/middleware"
	"github.com/xraph/gate/observability"
	"github.com/xraph/gate/queue"
	"github.com/xraph/gate/store"
	"github.com/xraph/gate/store/memory"
)

// Engine is the control core: it owns the policy state store, the
// sequential queue manager, the rate limiter, the extension registry, and
// the middleware chain, and decides for every dispatch whether, when, and
// how many times its action runs.
//
// Create one with New() and functional options. Engines are independent:
// two engines never share policy state, so tests and subsystems can each
// run their own.
type Engine struct {
	logger  *slog.Logger
	st      store.Store
	queues  *queue.Manager
	limiter *queue.Limiter
	ambient gate.Config
	bo      backoff.Strategy
	chain   mw.Middleware

	// OpenTelemetry providers (optional; nil means use global).
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider

	// Collected during option application, registered after the logger
	// is final.
	pendingExts []ext.Extension
	userMws     []mw.Middleware

	// mu guards the mutable process-wide configuration: the extension
	// registry and the global error handler, both of which Reset clears.
	mu            sync.RWMutex
	registry      *ext.Registry
	globalHandler gate.GlobalErrorHandler
	metricsExt    *observability.MetricsExtension
}

// Option configures an Engine.
type Option func(*Engine) error

// WithLogger sets the structured logger for the engine.
func WithLogger(l *slog.Logger) Option {
	return func(eng *Engine) error {
		eng.logger = l
		return nil
	}
}

// WithStore sets the policy state store. Defaults to an in-memory store
// private to the engine.
func WithStore(s store.Store) Option {
	return func(eng *Engine) error {
		if s == nil {
			return gate.ErrNoStore
		}
		eng.st = s
		return nil
	}
}

// WithDefaults overlays cfg onto the library defaults as the engine's
// ambient configuration. Per-call policy fields left zero fall through to
// these values.
func WithDefaults(cfg gate.Config) Option {
	return func(eng *Engine) error {
		eng.ambient = eng.ambient.Merge(cfg)
		return nil
	}
}

// WithExtension registers an extension with the engine.
func WithExtension(e ext.Extension) Option {
	return func(eng *Engine) error {
		eng.pendingExts = append(eng.pendingExts, e)
		return nil
	}
}

// WithMiddleware appends middleware to the engine's per-attempt chain,
// inside the built-in stack and outside the per-call wrapper.
func WithMiddleware(m mw.Middleware) Option {
	return func(eng *Engine) error {
		eng.userMws = append(eng.userMws, m)
		return nil
	}
}

// WithBackoff sets the retry delay strategy used by dispatches that
// enable retries without configuring their own delays or strategy.
func WithBackoff(b backoff.Strategy) Option {
	return func(eng *Engine) error {
		eng.bo = b
		return nil
	}
}

// WithGlobalErrorHandler sets the process-wide error handler, the last
// line of defense after each dispatch's local handler.
func WithGlobalErrorHandler(h gate.GlobalErrorHandler) Option {
	return func(eng *Engine) error {
		eng.globalHandler = h
		return nil
	}
}

// WithTracerProvider sets a custom OTel TracerProvider for the engine.
// When set, the tracing middleware uses this provider instead of the
// global one.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(eng *Engine) error {
		eng.tracerProvider = tp
		return nil
	}
}

// WithMeterProvider sets a custom OTel MeterProvider for the engine.
// When set, both the metrics middleware and the observability extension
// use this provider instead of the global one.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(eng *Engine) error {
		eng.meterProvider = mp
		return nil
	}
}

// New creates an Engine with the given options.
func New(opts ...Option) (*Engine, error) {
	eng := &Engine{
		logger:  slog.Default(),
		ambient: gate.DefaultConfig(),
	}
	for _, opt := range opts {
		if err := opt(eng); err != nil {
			return nil, err
		}
	}

	if eng.st == nil {
		eng.st = memory.New()
	}
	eng.queues = queue.NewManager()
	eng.limiter = queue.NewLimiter()

	// Build tracing middleware (custom provider or global).
	var tracingMw mw.Middleware
	if eng.tracerProvider != nil {
		tracingMw = mw.TracingWithTracer(eng.tracerProvider.Tracer("github.com/xraph/gate"))
	} else {
		tracingMw = mw.Tracing()
	}

	// Build metrics middleware (custom provider or global).
	var metricsMw mw.Middleware
	if eng.meterProvider != nil {
		metricsMw = mw.MetricsWithMeter(eng.meterProvider.Meter("github.com/xraph/gate"))
	} else {
		metricsMw = mw.Metrics()
	}

	// Build the observability metrics extension.
	if eng.meterProvider != nil {
		meter := eng.meterProvider.Meter("github.com/xraph/gate/observability")
		eng.metricsExt = observability.NewMetricsExtensionWithMeter(meter)
	} else {
		eng.metricsExt = observability.NewMetricsExtension()
	}

	// Default middleware stack: recover → tracing → metrics → logging →
	// timeout, then user middleware, innermost.
	all := []mw.Middleware{
		mw.Recover(eng.logger),
		tracingMw,
		metricsMw,
		mw.Logging(eng.logger),
		mw.Timeout(),
	}
	all = append(all, eng.userMws...)
	eng.chain = mw.Chain(all...)

	eng.registry = ext.NewRegistry(eng.logger)
	eng.registry.Register(eng.metricsExt)
	for _, e := range eng.pendingExts {
		eng.registry.Register(e)
	}
	eng.pendingExts = nil

	return eng, nil
}

// Logger returns the engine's logger.
func (eng *Engine) Logger() *slog.Logger { return eng.logger }

// Store returns the engine's policy state store.
func (eng *Engine) Store() store.Store { return eng.st }

// Config returns a copy of the engine's ambient configuration.
func (eng *Engine) Config() gate.Config { return eng.ambient }

// RegisterExtension adds an extension at runtime. Extensions are notified
// in registration order.
func (eng *Engine) RegisterExtension(e ext.Extension) {
	eng.mu.Lock()
	defer eng.mu.Unlock()
	eng.registry.Register(e)
}

// SetGlobalErrorHandler replaces the process-wide error handler. A nil
// handler removes it.
func (eng *Engine) SetGlobalErrorHandler(h gate.GlobalErrorHandler) {
	eng.mu.Lock()
	defer eng.mu.Unlock()
	eng.globalHandler = h
}

// extensions snapshots the registry for one dispatch.
func (eng *Engine) extensions() *ext.Registry {
	eng.mu.RLock()
	defer eng.mu.RUnlock()
	return eng.registry
}

// global snapshots the global error handler for one dispatch.
func (eng *Engine) global() gate.GlobalErrorHandler {
	eng.mu.RLock()
	defer eng.mu.RUnlock()
	return eng.globalHandler
}

// ──────────────────────────────────────────────────
// Diagnostics — side-effect-free policy reads
// ──────────────────────────────────────────────────

// Running reports whether the non-reentrancy flag is set for key.
func (eng *Engine) Running(key gate.Key) bool {
	return eng.st.Running(key)
}

// ThrottledFor returns the remaining throttle lockout for key, or zero.
func (eng *Engine) ThrottledFor(key gate.Key) time.Duration {
	return eng.st.ThrottleRemaining(key, time.Now())
}

// FreshFor returns the remaining freshness window for key, or zero.
func (eng *Engine) FreshFor(key gate.Key) time.Duration {
	return eng.st.FreshRemaining(key, time.Now())
}

// QueueDepth returns the number of dispatches waiting in key's sequential
// queue.
func (eng *Engine) QueueDepth(key gate.Key) int {
	return eng.queues.Depth(key)
}

// ──────────────────────────────────────────────────
// Invalidation and the user-facing error queue
// ──────────────────────────────────────────────────

// InvalidateFresh removes the freshness entry for key, forcing the next
// dispatch to run. Callable independently of any dispatch, for example
// after a write invalidates a cached read.
func (eng *Engine) InvalidateFresh(key gate.Key) {
	eng.st.ClearFresh(key)
}

// InvalidateAllFresh removes every freshness entry, for example on
// logout.
func (eng *Engine) InvalidateAllFresh() {
	eng.st.ClearAllFresh()
}

// UserErrors returns the queued user-facing errors without draining them.
func (eng *Engine) UserErrors() []*gate.UserError {
	return eng.st.UserErrors()
}

// TakeUserErrors drains the user-facing error queue, returning the
// entries in append order.
func (eng *Engine) TakeUserErrors() []*gate.UserError {
	return eng.st.TakeUserErrors()
}

// Reset clears every policy map, the user-facing error queue, all pending
// sequential waiters, all rate-limit buckets, the global error handler,
// and every registered extension beyond the built-in metrics extension.
// Repeating any scenario after Reset behaves exactly like the key's
// first-ever use.
func (eng *Engine) Reset(ctx context.Context) {
	eng.extensions().EmitReset(ctx)

	eng.st.Reset()
	eng.queues.Reset()
	eng.limiter.Reset()

	eng.mu.Lock()
	defer eng.mu.Unlock()
	eng.globalHandler = nil
	eng.registry = ext.NewRegistry(eng.logger)
	eng.registry.Register(eng.metricsExt)
}
