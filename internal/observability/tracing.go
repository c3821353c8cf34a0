package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Span is ended exactly once with the operation's error (nil on success).
type Span interface {
	End(err error)
	SetAttributes(kv ...attribute.KeyValue)
}

// Tracer starts spans for pipeline stages.
type Tracer struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// NewTracer exports spans over OTLP/gRPC to endpoint. An empty endpoint
// yields a tracer whose spans are discarded.
func NewTracer(ctx context.Context, serviceName, endpoint string, insecure bool) (*Tracer, error) {
	if endpoint == "" {
		return &Tracer{tracer: noop.NewTracerProvider().Tracer(serviceName)}, nil
	}
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint)}
	if insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptrace.New(ctx, otlptracegrpc.NewClient(opts...))
	if err != nil {
		return nil, fmt.Errorf("create otlp exporter: %w", err)
	}
	return NewTracerWithExporter(serviceName, sdktrace.WithBatcher(exporter)), nil
}

// NewTracerWithExporter builds a tracer on an SDK provider configured with
// the given span processor option (tests pass WithSyncer).
func NewTracerWithExporter(serviceName string, processor sdktrace.TracerProviderOption) *Tracer {
	res := resource.NewSchemaless(attribute.String("service.name", serviceName))
	tp := sdktrace.NewTracerProvider(processor, sdktrace.WithResource(res))
	return &Tracer{provider: tp, tracer: tp.Tracer(serviceName)}
}

// Start opens a span named operation.
func (t *Tracer) Start(ctx context.Context, operation string) (context.Context, Span) {
	if t == nil {
		return ctx, otelSpan{span: trace.SpanFromContext(ctx)}
	}
	ctx, span := t.tracer.Start(ctx, operation)
	return ctx, otelSpan{span: span}
}

// Shutdown flushes pending spans.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t == nil || t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}

type otelSpan struct{ span trace.Span }

func (s otelSpan) End(err error) {
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	} else {
		s.span.SetStatus(codes.Ok, "")
	}
	s.span.End()
}

func (s otelSpan) SetAttributes(kv ...attribute.KeyValue) { s.span.SetAttributes(kv...) }
