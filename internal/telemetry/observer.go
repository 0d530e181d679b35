package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/veigap/austral-genai-rag/internal/mcp"
)

const instrumentationName = "github.com/veigap/austral-genai-rag/internal/mcp"

// TracingObserver opens one span per dispatched message.
type TracingObserver struct {
	tracer trace.Tracer
}

func NewTracingObserver(tp trace.TracerProvider) *TracingObserver {
	return &TracingObserver{tracer: tp.Tracer(instrumentationName)}
}

func (o *TracingObserver) Begin(ctx context.Context, ev mcp.Event) context.Context {
	ctx, _ = o.tracer.Start(ctx, "mcp."+ev.Method,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("rpc.system", "jsonrpc"),
			attribute.String("rpc.method", ev.Method),
			attribute.Bool("mcp.notification", ev.Notification),
		),
	)
	return ctx
}

func (o *TracingObserver) End(ctx context.Context, ev mcp.Event) {
	span := trace.SpanFromContext(ctx)
	if ev.Tool != "" {
		span.SetAttributes(attribute.String("mcp.tool", ev.Tool))
	}
	if ev.Err != nil {
		span.SetAttributes(attribute.Int("rpc.jsonrpc.error_code", ev.Code))
		span.RecordError(ev.Err)
		span.SetStatus(codes.Error, ev.Err.Error())
	}
	span.End()
}
