package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// NoopSpan is a no-op implementation of the Span interface.
type NoopSpan struct{}

func (s *NoopSpan) End()                                                    {}
func (s *NoopSpan) SetAttribute(key string, value interface{})             {}
func (s *NoopSpan) AddEvent(name string, attributes map[string]interface{}) {}
func (s *NoopSpan) RecordError(err error)                                   {}
func (s *NoopSpan) SetStatus(code int, description string)                 {}
func (s *NoopSpan) SpanContext() trace.SpanContext                         { return trace.SpanContext{} }

// NoopStartSpan is a no-op implementation of StartSpanFunc.
func NoopStartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, Span) {
	return ctx, &NoopSpan{}
}
