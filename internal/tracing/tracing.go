// Package tracing wires OpenTelemetry spans around tool executions.
package tracing

import (
	"context"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Config controls tracer construction.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Enabled        bool
	// Writer receives exported spans; defaults to stderr.
	Writer io.Writer
}

// Init builds a tracer. When tracing is disabled the tracer is a no-op.
// The returned shutdown function flushes pending spans.
func Init(cfg Config) (trace.Tracer, func(context.Context) error, error) {
	if !cfg.Enabled {
		return noop.NewTracerProvider().Tracer(cfg.ServiceName), func(context.Context) error { return nil }, nil
	}

	w := cfg.Writer
	if w == nil {
		w = os.Stderr
	}
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, nil, err
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			attribute.String("service.name", cfg.ServiceName),
			attribute.String("service.version", cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	shutdown := func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return tp.Shutdown(ctx)
	}
	return tp.Tracer(cfg.ServiceName), shutdown, nil
}

// Noop returns a tracer that records nothing.
func Noop() trace.Tracer {
	return noop.NewTracerProvider().Tracer("")
}

// ToolSpan starts a span for one tool execution.
func ToolSpan(ctx context.Context, tracer trace.Tracer, toolID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "tool_router.execute."+toolID,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("tool_router.tool.id", toolID)),
	)
}

// SuggestSpan starts a span for one suggestion request.
func SuggestSpan(ctx context.Context, tracer trace.Tracer) (context.Context, trace.Span) {
	return tracer.Start(ctx, "tool_router.suggest", trace.WithSpanKind(trace.SpanKindInternal))
}

// EndExecution annotates span with the outcome and ends it.
func EndExecution(span trace.Span, strategy string, elapsed time.Duration, err error) {
	span.SetAttributes(
		attribute.String("tool_router.strategy", strategy),
		attribute.Int64("tool_router.elapsed_ms", elapsed.Milliseconds()),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
