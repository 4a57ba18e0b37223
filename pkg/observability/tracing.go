// Package observability provides the logging and tracing surface shared by
// the CRDT document engine.
package observability

import (
	"context"
	"fmt"
	"log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// otelSpanWrapper wraps an OpenTelemetry span to implement the Span interface.
type otelSpanWrapper struct {
	span trace.Span
}

func (o *otelSpanWrapper) End() { o.span.End() }

func (o *otelSpanWrapper) SetStatus(code int, description string) {
	var statusCode codes.Code
	switch code {
	case 1:
		statusCode = codes.Ok
	case 2:
		statusCode = codes.Error
	default:
		statusCode = codes.Unset
	}
	o.span.SetStatus(statusCode, description)
}

func (o *otelSpanWrapper) SetAttribute(key string, value interface{}) {
	switch v := value.(type) {
	case string:
		o.span.SetAttributes(attribute.String(key, v))
	case int:
		o.span.SetAttributes(attribute.Int(key, v))
	case int64:
		o.span.SetAttributes(attribute.Int64(key, v))
	case float64:
		o.span.SetAttributes(attribute.Float64(key, v))
	case bool:
		o.span.SetAttributes(attribute.Bool(key, v))
	default:
		o.span.SetAttributes(attribute.String(key, fmt.Sprintf("%v", v)))
	}
}

func (o *otelSpanWrapper) AddEvent(name string, attributes map[string]interface{}) {
	attrs := make([]attribute.KeyValue, 0, len(attributes))
	for k, v := range attributes {
		attrs = append(attrs, attribute.String(k, fmt.Sprintf("%v", v)))
	}
	o.span.AddEvent(name, trace.WithAttributes(attrs...))
}

func (o *otelSpanWrapper) RecordError(err error) { o.span.RecordError(err) }

func (o *otelSpanWrapper) SpanContext() trace.SpanContext { return o.span.SpanContext() }

// Span attribute keys used around Document operations.
const (
	DocKeyAttributeKey   = attribute.Key("document.key")
	ActorAttributeKey    = attribute.Key("document.actor")
	OpCountAttributeKey  = attribute.Key("document.op_count")
	GCPurgedAttributeKey = attribute.Key("document.gc_purged")
)

var (
	globalTracer     trace.Tracer
	globalTracerInit bool
)

// TracingConfig configures the OpenTelemetry exporter. Wiring an actual OTLP
// exporter is a transport concern left to the embedding host; InitTracing
// only installs a local, in-process TracerProvider for spans a host opens
// with TraceDocumentOp. pkg/document itself opens no spans.
type TracingConfig struct {
	Enabled     bool
	ServiceName string
}

// InitTracing installs an in-process TracerProvider. Returns a shutdown func.
func InitTracing(cfg TracingConfig) (func(), error) {
	if !cfg.Enabled {
		return func() {}, nil
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "crdt-document-engine"
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(attribute.String("service.name", cfg.ServiceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("build tracing resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	SetTracer(tp.Tracer(cfg.ServiceName))

	return func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("tracing shutdown: %v", err)
		}
	}, nil
}

// SetTracer sets the package-level tracer.
func SetTracer(t trace.Tracer) {
	globalTracer = t
	globalTracerInit = true
}

// GetTracer returns the package-level tracer, a no-op tracer if uninitialized.
func GetTracer() trace.Tracer {
	if !globalTracerInit {
		return trace.NewNoopTracerProvider().Tracer("")
	}
	return globalTracer
}

// StartSpan starts a new span and returns the wrapped span and context.
func StartSpan(ctx context.Context, name string) (context.Context, Span) {
	ctx, otelSpan := GetTracer().Start(ctx, name)
	return ctx, &otelSpanWrapper{span: otelSpan}
}

// TraceDocumentOp wraps a span around a Document state-machine operation
// (update, applyChangePack, garbageCollect), tagging it with the document
// key and actor so a host's trace backend can pivot on either.
func TraceDocumentOp(ctx context.Context, operation, docKey string, actor string) (context.Context, Span) {
	ctx, span := StartSpan(ctx, "document."+operation)
	span.SetAttribute(string(DocKeyAttributeKey), docKey)
	span.SetAttribute(string(ActorAttributeKey), actor)
	return ctx, span
}
