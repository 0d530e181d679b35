package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
)

func testDispatcher(t *testing.T, opts ...Option) *Dispatcher {
	t.Helper()
	return NewDispatcher(Implementation{Name: "test-server", Version: "1.0.0"}, testRegistry(t), opts...)
}

func decodeResult(t *testing.T, resp *Response, dst any) {
	t.Helper()
	if resp == nil {
		t.Fatal("expected a response")
	}
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}
	data, err := json.Marshal(resp.Result)
	if err != nil {
		t.Fatalf("marshal result: %v", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
}

func TestDispatcherInitialize(t *testing.T) {
	d := testDispatcher(t, WithInstructions("use add"))
	resp := d.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","clientInfo":{"name":"c","version":"1"}}}`))

	var res InitializeResult
	decodeResult(t, resp, &res)
	if res.ProtocolVersion != "2024-11-05" {
		t.Errorf("protocolVersion = %s", res.ProtocolVersion)
	}
	if res.ServerInfo.Name != "test-server" {
		t.Errorf("serverInfo.name = %s", res.ServerInfo.Name)
	}
	if res.Capabilities.Tools == nil {
		t.Error("expected tools capability")
	}
	if res.Instructions != "use add" {
		t.Errorf("instructions = %q", res.Instructions)
	}
	if string(resp.ID) != "1" {
		t.Errorf("id = %s, want 1", resp.ID)
	}
}

func TestDispatcherToolsListStable(t *testing.T) {
	d := testDispatcher(t)
	ctx := context.Background()

	var first, second ToolsListResult
	decodeResult(t, d.HandleMessage(ctx, []byte(`{"jsonrpc":"2.0","id":"a","method":"tools/list"}`)), &first)
	decodeResult(t, d.HandleMessage(ctx, []byte(`{"jsonrpc":"2.0","id":"b","method":"tools/list"}`)), &second)

	if len(first.Tools) == 0 {
		t.Fatal("expected tools")
	}
	seen := map[string]bool{}
	for i, tool := range first.Tools {
		if seen[tool.Name] {
			t.Errorf("duplicate tool %s", tool.Name)
		}
		seen[tool.Name] = true
		if second.Tools[i].Name != tool.Name {
			t.Errorf("order changed at %d: %s vs %s", i, tool.Name, second.Tools[i].Name)
		}
	}
}

func TestDispatcherToolsCall(t *testing.T) {
	d := testDispatcher(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		msg      string
		wantCode int
		wantText string
	}{
		{"ok", `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"add","arguments":{"a":1,"b":2}}}`, 0, "3"},
		{"unknown tool", `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"does_not_exist","arguments":{}}}`, CodeInternalError, ""},
		{"handler error", `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"fail"}}`, CodeInternalError, ""},
		{"panic", `{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"boom"}}`, CodeInternalError, ""},
		{"validation", `{"jsonrpc":"2.0","id":5,"method":"tools/call","params":{"name":"add","arguments":{"a":"x"}}}`, CodeInvalidParams, ""},
		{"missing name", `{"jsonrpc":"2.0","id":6,"method":"tools/call","params":{}}`, CodeInvalidParams, ""},
		{"no params", `{"jsonrpc":"2.0","id":7,"method":"tools/call"}`, CodeInvalidParams, ""},
		{"unknown method", `{"jsonrpc":"2.0","id":8,"method":"resources/list"}`, CodeMethodNotFound, ""},
		{"bad version", `{"jsonrpc":"1.0","id":9,"method":"ping"}`, CodeInvalidRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := d.HandleMessage(ctx, []byte(tt.msg))
			if resp == nil {
				t.Fatal("expected a response")
			}
			if tt.wantCode != 0 {
				if resp.Error == nil {
					t.Fatalf("expected error %d, got result %v", tt.wantCode, resp.Result)
				}
				if resp.Error.Code != tt.wantCode {
					t.Errorf("code = %d, want %d (%s)", resp.Error.Code, tt.wantCode, resp.Error.Message)
				}
				if resp.Result != nil {
					t.Error("error response must not carry a result")
				}
				return
			}
			var res CallToolResult
			decodeResult(t, resp, &res)
			if len(res.Content) != 1 || res.Content[0].Type != "text" {
				t.Fatalf("unexpected content: %+v", res.Content)
			}
			if res.Content[0].Text != tt.wantText {
				t.Errorf("text = %s, want %s", res.Content[0].Text, tt.wantText)
			}
		})
	}
}

func TestDispatcherValidationData(t *testing.T) {
	d := testDispatcher(t)
	resp := d.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"add","arguments":{}}}`))
	if resp.Error == nil || resp.Error.Code != CodeInvalidParams {
		t.Fatalf("expected invalid params, got %+v", resp)
	}
	data, ok := resp.Error.Data.(map[string]any)
	if !ok {
		t.Fatalf("expected data map, got %T", resp.Error.Data)
	}
	problems, _ := data["problems"].([]string)
	if len(problems) != 2 {
		t.Errorf("expected 2 problems, got %v", data["problems"])
	}
}

func TestDispatcherMalformedJSON(t *testing.T) {
	d := testDispatcher(t)
	resp := d.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,`))
	if resp == nil || resp.Error == nil {
		t.Fatal("expected an error response")
	}
	if resp.Error.Code != CodeInternalError {
		t.Errorf("code = %d, want %d", resp.Error.Code, CodeInternalError)
	}
	if !strings.HasPrefix(resp.Error.Message, "internal error: parse") {
		t.Errorf("message = %s", resp.Error.Message)
	}
	if string(resp.ID) != "null" {
		t.Errorf("id = %s, want null", resp.ID)
	}
}

func TestDispatcherNotifications(t *testing.T) {
	d := testDispatcher(t)
	ctx := context.Background()
	for _, msg := range []string{
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","method":"initialized"}`,
		`{"jsonrpc":"2.0","method":"unknown/thing"}`,
		`{"jsonrpc":"2.0","method":"tools/call","params":{"name":"does_not_exist"}}`,
	} {
		if resp := d.HandleMessage(ctx, []byte(msg)); resp != nil {
			t.Errorf("%s: expected no response, got %+v", msg, resp)
		}
	}
}

func TestDispatcherPing(t *testing.T) {
	d := testDispatcher(t)
	resp := d.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","id":7,"method":"ping"}`))
	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"jsonrpc":"2.0","id":7,"result":{}}` {
		t.Errorf("ping response = %s", data)
	}
}

type recordingObserver struct {
	mu     sync.Mutex
	begins []Event
	ends   []Event
}

type ctxKey struct{}

func (o *recordingObserver) Begin(ctx context.Context, ev Event) context.Context {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.begins = append(o.begins, ev)
	return context.WithValue(ctx, ctxKey{}, ev.Method)
}

func (o *recordingObserver) End(ctx context.Context, ev Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if ctx.Value(ctxKey{}) != ev.Method {
		ev.Method = "context lost"
	}
	o.ends = append(o.ends, ev)
}

func TestDispatcherObserver(t *testing.T) {
	obs := &recordingObserver{}
	d := testDispatcher(t, WithObserver(MultiObserver{obs}))
	ctx := context.Background()

	d.HandleMessage(ctx, []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"add","arguments":{"a":1,"b":1}}}`))
	d.HandleMessage(ctx, []byte(`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"fail"}}`))

	if len(obs.begins) != 2 || len(obs.ends) != 2 {
		t.Fatalf("expected 2 begin/end pairs, got %d/%d", len(obs.begins), len(obs.ends))
	}
	ok, failed := obs.ends[0], obs.ends[1]
	if ok.Method != "tools/call" || ok.Tool != "add" || ok.Err != nil {
		t.Errorf("unexpected success event: %+v", ok)
	}
	if failed.Tool != "fail" || failed.Code != CodeInternalError {
		t.Errorf("unexpected failure event: %+v", failed)
	}
	var rpcErr *RPCError
	if !errors.As(failed.Err, &rpcErr) {
		t.Errorf("expected RPCError in event, got %v", failed.Err)
	}
}
