package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/gate"
	"github.com/xraph/gate/ext"
)

// meterName is the instrumentation scope name for the metrics extension.
const meterName = "github.com/xraph/gate/observability"

// Compile-time interface checks.
var (
	_ ext.Extension          = (*MetricsExtension)(nil)
	_ ext.DispatchStarted    = (*MetricsExtension)(nil)
	_ ext.DispatchCompleted  = (*MetricsExtension)(nil)
	_ ext.DispatchFailed     = (*MetricsExtension)(nil)
	_ ext.DispatchRetrying   = (*MetricsExtension)(nil)
	_ ext.DispatchSuperseded = (*MetricsExtension)(nil)
	_ ext.DispatchBlocked    = (*MetricsExtension)(nil)
	_ ext.DispatchThrottled  = (*MetricsExtension)(nil)
	_ ext.DispatchFresh      = (*MetricsExtension)(nil)
	_ ext.DispatchLimited    = (*MetricsExtension)(nil)
	_ ext.DispatchQueued     = (*MetricsExtension)(nil)
	_ ext.DispatchDropped    = (*MetricsExtension)(nil)
	_ ext.UserErrorQueued    = (*MetricsExtension)(nil)
)

// MetricsExtension records system-wide lifecycle counters. Register it as
// a Gate extension to automatically track dispatch rates, outcomes, and
// admission rejections per policy.
type MetricsExtension struct {
	started    metric.Int64Counter
	completed  metric.Int64Counter
	failed     metric.Int64Counter
	retried    metric.Int64Counter
	superseded metric.Int64Counter
	blocked    metric.Int64Counter
	throttled  metric.Int64Counter
	fresh      metric.Int64Counter
	limited    metric.Int64Counter
	queued     metric.Int64Counter
	dropped    metric.Int64Counter
	userErrors metric.Int64Counter
}

// NewMetricsExtension creates a MetricsExtension using the global OTel
// MeterProvider. If none is configured, noop instruments are used and the
// extension has zero overhead.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithMeter(otel.Meter(meterName))
}

// NewMetricsExtensionWithMeter creates a MetricsExtension with the
// provided meter. This variant allows injecting a specific MeterProvider
// for testing.
func NewMetricsExtensionWithMeter(meter metric.Meter) *MetricsExtension {
	counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		_ = err // noop fallback guaranteed by OTel API contract
		return c
	}
	return &MetricsExtension{
		started:    counter("gate.dispatch.started", "Dispatches that entered the admission chain"),
		completed:  counter("gate.dispatch.completed", "Dispatches that ended without a propagated error"),
		failed:     counter("gate.dispatch.failed", "Dispatches that ended with a terminal error"),
		retried:    counter("gate.dispatch.retried", "Retry attempts scheduled"),
		superseded: counter("gate.dispatch.superseded", "Debounced dispatches superseded by later ones"),
		blocked:    counter("gate.dispatch.blocked", "Dispatches rejected by the non-reentrancy policy"),
		throttled:  counter("gate.dispatch.throttled", "Dispatches rejected by the throttle lockout"),
		fresh:      counter("gate.dispatch.fresh", "Dispatches skipped by the freshness window"),
		limited:    counter("gate.dispatch.limited", "Dispatches rejected by the rate limit"),
		queued:     counter("gate.dispatch.queued", "Dispatches that waited in a sequential queue"),
		dropped:    counter("gate.dispatch.dropped", "Dispatches dropped from a full sequential queue"),
		userErrors: counter("gate.user_errors.queued", "User-facing errors queued for dialog presentation"),
	}
}

// Name implements ext.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// ── Dispatch lifecycle hooks ─────────────────────────────

// OnDispatchStarted implements ext.DispatchStarted.
func (m *MetricsExtension) OnDispatchStarted(ctx context.Context, _ *gate.Dispatch, _ any) error {
	m.started.Add(ctx, 1)
	return nil
}

// OnDispatchCompleted implements ext.DispatchCompleted.
func (m *MetricsExtension) OnDispatchCompleted(ctx context.Context, _ *gate.Dispatch, _ any, _ time.Duration) error {
	m.completed.Add(ctx, 1)
	return nil
}

// OnDispatchFailed implements ext.DispatchFailed.
func (m *MetricsExtension) OnDispatchFailed(ctx context.Context, _ *gate.Dispatch, _ any, _ error, _ gate.Trace, _ time.Duration) error {
	m.failed.Add(ctx, 1)
	return nil
}

// OnDispatchRetrying implements ext.DispatchRetrying.
func (m *MetricsExtension) OnDispatchRetrying(ctx context.Context, _ *gate.Dispatch, _ int, _ time.Duration) error {
	m.retried.Add(ctx, 1)
	return nil
}

// ── Admission hooks ─────────────────────────────

// OnDispatchSuperseded implements ext.DispatchSuperseded.
func (m *MetricsExtension) OnDispatchSuperseded(ctx context.Context, _ *gate.Dispatch) error {
	m.superseded.Add(ctx, 1)
	return nil
}

// OnDispatchBlocked implements ext.DispatchBlocked.
func (m *MetricsExtension) OnDispatchBlocked(ctx context.Context, _ *gate.Dispatch) error {
	m.blocked.Add(ctx, 1)
	return nil
}

// OnDispatchThrottled implements ext.DispatchThrottled.
func (m *MetricsExtension) OnDispatchThrottled(ctx context.Context, _ *gate.Dispatch, _ time.Duration) error {
	m.throttled.Add(ctx, 1)
	return nil
}

// OnDispatchFresh implements ext.DispatchFresh.
func (m *MetricsExtension) OnDispatchFresh(ctx context.Context, _ *gate.Dispatch, _ time.Duration) error {
	m.fresh.Add(ctx, 1)
	return nil
}

// OnDispatchLimited implements ext.DispatchLimited.
func (m *MetricsExtension) OnDispatchLimited(ctx context.Context, _ *gate.Dispatch) error {
	m.limited.Add(ctx, 1)
	return nil
}

// OnDispatchQueued implements ext.DispatchQueued.
func (m *MetricsExtension) OnDispatchQueued(ctx context.Context, _ *gate.Dispatch, _ int) error {
	m.queued.Add(ctx, 1)
	return nil
}

// OnDispatchDropped implements ext.DispatchDropped.
func (m *MetricsExtension) OnDispatchDropped(ctx context.Context, _ *gate.Dispatch) error {
	m.dropped.Add(ctx, 1)
	return nil
}

// ── Other hooks ─────────────────────────────

// OnUserErrorQueued implements ext.UserErrorQueued.
func (m *MetricsExtension) OnUserErrorQueued(ctx context.Context, _ *gate.Dispatch, _ *gate.UserError) error {
	m.userErrors.Add(ctx, 1)
	return nil
}
