package observe

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/MrWong99/spiel"

// Span attribute keys for utterance work.
const (
	AttrUtteranceIndex = attribute.Key("spiel.utterance.index")
	AttrPolicy         = attribute.Key("spiel.policy")
	AttrProperty       = attribute.Key("spiel.property")
	AttrValue          = attribute.Key("spiel.value")
)

// Tracer returns the spiel tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartSpan starts a span on [Tracer]. The caller ends it.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}

// StartUtteranceSpan starts the "utterance.build" span for the index-th
// scripted utterance built under policy.
func StartUtteranceSpan(ctx context.Context, index int, policy string) (context.Context, trace.Span) {
	return StartSpan(ctx, "utterance.build", trace.WithAttributes(
		AttrUtteranceIndex.Int(index),
		AttrPolicy.String(policy),
	))
}

// ChangeEvent adds an "utterance.change" event for property to the span in
// ctx. value is rendered with %v.
func ChangeEvent(ctx context.Context, property string, value any) {
	trace.SpanFromContext(ctx).AddEvent("utterance.change", trace.WithAttributes(
		AttrProperty.String(property),
		AttrValue.String(fmt.Sprint(value)),
	))
}

// Fail records err on span and marks it failed. A nil err does nothing.
func Fail(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// TraceID returns the hex trace ID of the span in ctx, or "".
func TraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}

// Logger returns slog.Default, carrying trace_id and span_id when ctx holds
// a span so log lines can be joined with the build trace.
func Logger(ctx context.Context) *slog.Logger {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return slog.Default()
	}
	return slog.Default().With(
		slog.String("trace_id", sc.TraceID().String()),
		slog.String("span_id", sc.SpanID().String()),
	)
}
