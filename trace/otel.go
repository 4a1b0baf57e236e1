package trace

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// OTelEmitter turns spans into OpenTelemetry spans, one per event, grounded
// on the teacher's graph/emit.OTelEmitter. Emit never propagates errors to
// the caller, per spec.md §4.9 ("emission must never throw to user code");
// failures are logged instead.
type OTelEmitter struct {
	tracer oteltrace.Tracer
}

func NewOTelEmitter(tracer oteltrace.Tracer) *OTelEmitter {
	return &OTelEmitter{tracer: tracer}
}

func (o *OTelEmitter) Emit(span Span) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("trace: otel emit panicked, dropping span: %v", r)
		}
	}()

	ctx := context.Background()
	_, otelSpan := o.tracer.Start(ctx, string(span.EventType))
	defer otelSpan.End()

	otelSpan.SetAttributes(
		attribute.String("loom.trace_id", span.TraceID),
		attribute.String("loom.span_id", span.SpanID),
	)
	if span.ParentSpanID != "" {
		otelSpan.SetAttributes(attribute.String("loom.parent_span_id", span.ParentSpanID))
	}
	o.addRefAttributes(otelSpan, span.Refs)
	o.addMetadataAttributes(otelSpan, span.Metadata)
	for k, v := range span.Tags {
		otelSpan.SetAttributes(attribute.String("loom.tag."+k, v))
	}

	if span.Status == StatusError {
		msg := fmt.Sprintf("%v", span.Metadata["error"])
		otelSpan.SetStatus(codes.Error, msg)
	}
}

func (o *OTelEmitter) addRefAttributes(s oteltrace.Span, refs *Refs) {
	if refs == nil {
		return
	}
	if refs.ActorState != nil {
		s.SetAttributes(attribute.String("loom.ref.actor_id", refs.ActorState.ActorID))
	}
	if refs.Journal != nil {
		s.SetAttributes(
			attribute.String("loom.ref.journal.actor_id", refs.Journal.ActorID),
			attribute.Int("loom.ref.journal.entry_index", refs.Journal.EntryIndex),
			attribute.String("loom.ref.journal.entry_type", refs.Journal.EntryType),
		)
	}
	if refs.Message != nil {
		s.SetAttributes(
			attribute.String("loom.ref.message_id", refs.Message.MessageID),
			attribute.String("loom.ref.queue_name", refs.Message.QueueName),
		)
	}
	if refs.Idempotency != nil {
		s.SetAttributes(attribute.String("loom.ref.idempotency_key", refs.Idempotency.Key))
	}
}

func (o *OTelEmitter) addMetadataAttributes(s oteltrace.Span, meta map[string]any) {
	for key, value := range meta {
		switch v := value.(type) {
		case string:
			s.SetAttributes(attribute.String(key, v))
		case int:
			s.SetAttributes(attribute.Int(key, v))
		case int64:
			s.SetAttributes(attribute.Int64(key, v))
		case float64:
			s.SetAttributes(attribute.Float64(key, v))
		case bool:
			s.SetAttributes(attribute.Bool(key, v))
		case time.Duration:
			s.SetAttributes(attribute.Int64(key, int64(v/time.Millisecond)))
		default:
			s.SetAttributes(attribute.String(key, fmt.Sprintf("%v", v)))
		}
	}
}

// Flush force-flushes the global tracer provider, if it supports it.
func Flush(ctx context.Context) error {
	tp := otel.GetTracerProvider()
	type flusher interface {
		ForceFlush(context.Context) error
	}
	if f, ok := tp.(flusher); ok {
		return f.ForceFlush(ctx)
	}
	return nil
}
