// Package observability wires OpenTelemetry metrics (exported through the
// Prometheus registry) and optional Jaeger tracing.
package observability

import (
	"context"
	"time"

	"chatbot-parser/internal/common/config"
	"chatbot-parser/internal/common/logger"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

type Observability struct {
	meterProvider  *metric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer
	turnCounter    otelmetric.Int64Counter
	turnDuration   otelmetric.Float64Histogram
	logger         logger.Logger
}

// New sets up the global meter provider and, when tracing.JaegerEndpoint is
// set, the global tracer provider. Setup failures are logged and leave the
// corresponding signal disabled.
func New(serviceName string, tracing config.TracingConfig, log logger.Logger) *Observability {
	return newObservability(serviceName, tracing, promclient.DefaultRegisterer, log)
}

func newObservability(serviceName string, tracing config.TracingConfig, reg promclient.Registerer, log logger.Logger) *Observability {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	o := &Observability{logger: log}

	exporter, err := prometheus.New(prometheus.WithRegisterer(reg))
	if err != nil {
		log.Error("failed to create prometheus exporter", map[string]interface{}{"error": err})
	} else {
		o.meterProvider = metric.NewMeterProvider(metric.WithReader(exporter))
		otel.SetMeterProvider(o.meterProvider)
		meter := o.meterProvider.Meter(serviceName)

		o.turnCounter, _ = meter.Int64Counter(
			"chatbot.turns.processed",
			otelmetric.WithDescription("Conversation turns processed"),
		)
		o.turnDuration, _ = meter.Float64Histogram(
			"chatbot.turns.duration",
			otelmetric.WithDescription("Conversation turn duration"),
			otelmetric.WithUnit("ms"),
		)
	}

	if tracing.JaegerEndpoint != "" {
		tp, err := newTracerProvider(serviceName, tracing)
		if err != nil {
			log.Error("failed to create jaeger tracer", map[string]interface{}{
				"endpoint": tracing.JaegerEndpoint,
				"error":    err,
			})
		} else {
			o.tracerProvider = tp
			otel.SetTracerProvider(tp)
		}
	}
	o.tracer = otel.Tracer(serviceName)
	return o
}

// StartSpan starts a span on the configured tracer. Without a tracer
// provider the span is a no-op.
func (o *Observability) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if o == nil || o.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return o.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func (o *Observability) RecordTurn(ctx context.Context, intent, status string, duration time.Duration) {
	if o == nil {
		return
	}
	attrs := otelmetric.WithAttributes(
		attribute.String("intent", intent),
		attribute.String("status", status),
	)
	if o.turnCounter != nil {
		o.turnCounter.Add(ctx, 1, attrs)
	}
	if o.turnDuration != nil {
		o.turnDuration.Record(ctx, float64(duration.Microseconds())/1000, attrs)
	}
}

func (o *Observability) Shutdown() {
	if o == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if o.meterProvider != nil {
		if err := o.meterProvider.Shutdown(ctx); err != nil {
			o.logger.Warn("meter provider shutdown failed", map[string]interface{}{"error": err})
		}
	}
	if o.tracerProvider != nil {
		if err := o.tracerProvider.Shutdown(ctx); err != nil {
			o.logger.Warn("tracer provider shutdown failed", map[string]interface{}{"error": err})
		}
	}
}
