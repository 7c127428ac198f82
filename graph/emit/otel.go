package emit

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTelEmitter turns each event into a zero-duration span on the supplied
// tracer, tagged with thread/step/node identifiers. It's meant to sit
// alongside a real request-scoped span from an HTTP/cron entry point — the
// emitted spans record what the workflow did, not how long the overall
// request took.
type OTelEmitter struct {
	tracer trace.Tracer
}

// NewOTelEmitter returns an Emitter backed by the given tracer, typically
// obtained via otel.Tracer("agentgraph").
func NewOTelEmitter(tracer trace.Tracer) *OTelEmitter {
	return &OTelEmitter{tracer: tracer}
}

func (o *OTelEmitter) Emit(event Event) {
	_, span := o.tracer.Start(context.Background(), event.Msg)
	defer span.End()

	span.SetAttributes(
		attribute.String("thread_id", event.ThreadID),
		attribute.Int("step", event.Step),
		attribute.String("node_id", event.NodeID),
	)
	for k, v := range event.Meta {
		if k == "error" {
			span.SetStatus(codes.Error, toString(v))
			continue
		}
		span.SetAttributes(attribute.String(k, toString(v)))
	}
}

func toString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case error:
		return x.Error()
	default:
		return fmt.Sprint(x)
	}
}

func (o *OTelEmitter) EmitBatch(_ context.Context, events []Event) error {
	for _, e := range events {
		o.Emit(e)
	}
	return nil
}

func (o *OTelEmitter) Flush(context.Context) error { return nil }
