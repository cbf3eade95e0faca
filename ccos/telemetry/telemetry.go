// Package telemetry defines the Logger/Metrics/Tracer interfaces every CCOS
// component logs and traces through, plus noop defaults and an
// OpenTelemetry-backed implementation for production deployments.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Logger is the structured logging surface used throughout CCOS: the
// Arbiter's prompt/response cycle, the Orchestrator's plan execution, and
// the marketplace's resolution attempts all log through this interface
// rather than calling a concrete logging library directly.
type Logger interface {
	Debug(ctx context.Context, msg string, kv ...any)
	Info(ctx context.Context, msg string, kv ...any)
	Warn(ctx context.Context, msg string, kv ...any)
	Error(ctx context.Context, msg string, kv ...any)
}

// Metrics records counters, timers, and gauges.
type Metrics interface {
	IncCounter(name string, value float64, kv ...any)
	RecordTimer(name string, d time.Duration, kv ...any)
	RecordGauge(name string, value float64, kv ...any)
}

// Span is the portion of trace.Span a caller needs without depending on the
// full OpenTelemetry API at every call site.
type Span interface {
	End()
	SetError(err error)
}

// Tracer starts spans bracketing a named operation.
type Tracer interface {
	Start(ctx context.Context, name string) (context.Context, Span)
}

type noopLogger struct{}

// NewNoopLogger returns a Logger that discards every entry.
func NewNoopLogger() Logger { return noopLogger{} }

func (noopLogger) Debug(context.Context, string, ...any) {}
func (noopLogger) Info(context.Context, string, ...any)  {}
func (noopLogger) Warn(context.Context, string, ...any)  {}
func (noopLogger) Error(context.Context, string, ...any) {}

type noopMetrics struct{}

// NewNoopMetrics returns a Metrics sink that discards every sample.
func NewNoopMetrics() Metrics { return noopMetrics{} }

func (noopMetrics) IncCounter(string, float64, ...any)        {}
func (noopMetrics) RecordTimer(string, time.Duration, ...any) {}
func (noopMetrics) RecordGauge(string, float64, ...any)       {}

type noopTracer struct{}

// NewNoopTracer returns a Tracer whose spans are no-ops.
func NewNoopTracer() Tracer { return noopTracer{} }

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, Span) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End()           {}
func (noopSpan) SetError(error) {}

// otelTracer adapts go.opentelemetry.io/otel/trace to the Tracer interface.
type otelTracer struct {
	tracer trace.Tracer
}

// NewOTelTracer returns a Tracer backed by the named OpenTelemetry tracer,
// obtained from the global TracerProvider (otel.Tracer(name)).
func NewOTelTracer(name string) Tracer {
	return &otelTracer{tracer: otel.Tracer(name)}
}

func (t *otelTracer) Start(ctx context.Context, name string) (context.Context, Span) {
	spanCtx, span := t.tracer.Start(ctx, name)
	return spanCtx, &otelSpan{span: span}
}

type otelSpan struct {
	span trace.Span
}

func (s *otelSpan) End() { s.span.End() }

func (s *otelSpan) SetError(err error) {
	if err == nil {
		return
	}
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}

// otelMetrics adapts go.opentelemetry.io/otel/metric counters/histograms to
// the Metrics interface, lazily creating instruments per metric name.
type otelMetrics struct {
	meter      otelmetric.Meter
	counters   map[string]otelmetric.Float64Counter
	histograms map[string]otelmetric.Float64Histogram
	gauges     map[string]otelmetric.Float64Gauge
}

// NewOTelMetrics returns a Metrics sink backed by meter, which the caller
// supplies (so tests can pass one from an in-memory provider); the global
// MeterProvider is not consulted.
func NewOTelMetrics(meter otelmetric.Meter) Metrics {
	return &otelMetrics{
		meter:      meter,
		counters:   map[string]otelmetric.Float64Counter{},
		histograms: map[string]otelmetric.Float64Histogram{},
		gauges:     map[string]otelmetric.Float64Gauge{},
	}
}

func kvToAttrs(kv ...any) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		attrs = append(attrs, attribute.String(key, toStringAttr(kv[i+1])))
	}
	return attrs
}

func toStringAttr(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func (m *otelMetrics) IncCounter(name string, value float64, kv ...any) {
	c, ok := m.counters[name]
	if !ok {
		var err error
		c, err = m.meter.Float64Counter(name)
		if err != nil {
			return
		}
		m.counters[name] = c
	}
	c.Add(context.Background(), value, otelmetric.WithAttributes(kvToAttrs(kv...)...))
}

func (m *otelMetrics) RecordTimer(name string, d time.Duration, kv ...any) {
	h, ok := m.histograms[name]
	if !ok {
		var err error
		h, err = m.meter.Float64Histogram(name)
		if err != nil {
			return
		}
		m.histograms[name] = h
	}
	h.Record(context.Background(), d.Seconds(), otelmetric.WithAttributes(kvToAttrs(kv...)...))
}

func (m *otelMetrics) RecordGauge(name string, value float64, kv ...any) {
	g, ok := m.gauges[name]
	if !ok {
		var err error
		g, err = m.meter.Float64Gauge(name)
		if err != nil {
			return
		}
		m.gauges[name] = g
	}
	g.Record(context.Background(), value, otelmetric.WithAttributes(kvToAttrs(kv...)...))
}
