package telemetry

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/veigap/austral-genai-rag/internal/mcp"
)

func attr(span sdktrace.ReadOnlySpan, key string) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestTracingObserver(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	defer tp.Shutdown(context.Background())

	reg, err := mcp.NewRegistry(mcp.NewTool("echo", "Echo text", mcp.InputSchema{
		Properties: map[string]mcp.Property{"text": {Type: "string"}},
		Required:   []string{"text"},
	}, func(_ context.Context, in struct {
		Text string `json:"text"`
	}) (string, error) {
		return in.Text, nil
	}))
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	d := mcp.NewDispatcher(mcp.Implementation{Name: "test", Version: "1"}, reg, mcp.WithObserver(NewTracingObserver(tp)))
	ctx := context.Background()

	d.HandleMessage(ctx, []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"echo","arguments":{"text":"hi"}}}`))
	d.HandleMessage(ctx, []byte(`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"echo","arguments":{}}}`))

	spans := rec.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}

	ok := spans[0]
	if ok.Name() != "mcp.tools/call" {
		t.Errorf("span name = %s", ok.Name())
	}
	if v, _ := attr(ok, "mcp.tool"); v.AsString() != "echo" {
		t.Errorf("mcp.tool = %v", v)
	}
	if ok.Status().Code == codes.Error {
		t.Error("successful call marked as error")
	}

	failed := spans[1]
	if failed.Status().Code != codes.Error {
		t.Error("failed call not marked as error")
	}
	if v, found := attr(failed, "rpc.jsonrpc.error_code"); !found || v.AsInt64() != mcp.CodeInvalidParams {
		t.Errorf("error code attribute = %v", v)
	}
}

func TestInitTracer(t *testing.T) {
	var buf bytes.Buffer
	tp, shutdown, err := InitTracer("ragdemo-test", &buf)
	if err != nil {
		t.Fatalf("InitTracer: %v", err)
	}
	_, span := tp.Tracer("test").Start(context.Background(), "seed-span")
	span.End()
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if !strings.Contains(buf.String(), `"seed-span"`) {
		t.Errorf("exported spans missing seed-span: %s", buf.String())
	}
}
