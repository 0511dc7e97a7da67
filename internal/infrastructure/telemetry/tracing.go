// Package telemetry wires OpenTelemetry tracing through the billing
// service. This file holds the span helpers the application services
// call; the provider lifecycle lives in tracer.go.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName identifies spans raised by the billing services.
const TracerName = "fleetlease-billing"

// StartSpan opens an internal span on the global tracer. Callers own the
// span and must End it.
func StartSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	tracer := otel.GetTracerProvider().Tracer(TracerName)
	return tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindInternal))
}

// StartServiceSpan opens a span named {service}.{method}, the convention
// every application service uses ("invoice.generate", "payment.apply").
func StartServiceSpan(ctx context.Context, service, method string) (context.Context, trace.Span) {
	return StartSpan(ctx, service+"."+method)
}

// SetAttributes attaches alternating key/value pairs to the span. Keys
// must be strings; a trailing odd value or a non-string key is dropped.
func SetAttributes(span trace.Span, keyValues ...interface{}) {
	if span == nil {
		return
	}
	span.SetAttributes(collectAttributes(keyValues)...)
}

// AddEvent stamps a named event on the span, with the same alternating
// key/value convention as SetAttributes. Services use it to mark points
// of no return, like a document number being consumed.
func AddEvent(span trace.Span, name string, keyValues ...interface{}) {
	if span == nil {
		return
	}
	span.AddEvent(name, trace.WithAttributes(collectAttributes(keyValues)...))
}

// RecordError records the error on the span and flips its status to
// error. Nil spans and nil errors are ignored.
func RecordError(span trace.Span, err error, opts ...trace.EventOption) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err, opts...)
	span.SetStatus(codes.Error, err.Error())
}

func collectAttributes(keyValues []interface{}) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(keyValues)/2)
	for i := 0; i+1 < len(keyValues); i += 2 {
		key, ok := keyValues[i].(string)
		if !ok {
			continue
		}
		attrs = append(attrs, toAttribute(key, keyValues[i+1]))
	}
	return attrs
}

func toAttribute(key string, value interface{}) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	case bool:
		return attribute.Bool(key, v)
	case fmt.Stringer:
		return attribute.String(key, v.String())
	default:
		return attribute.String(key, fmt.Sprintf("%v", v))
	}
}
