package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// fakeMessages replays scripted replies from /v1/messages and records every
// request body it receives.
type fakeMessages struct {
	mu       sync.Mutex
	replies  []string
	requests []map[string]any
}

func (f *fakeMessages) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/messages" {
		http.NotFound(w, r)
		return
	}
	var body map[string]any
	json.NewDecoder(r.Body).Decode(&body)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, body)
	if len(f.replies) == 0 {
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, `{"type":"error","error":{"type":"api_error","message":"no scripted reply"}}`)
		return
	}
	reply := f.replies[0]
	f.replies = f.replies[1:]
	w.Header().Set("Content-Type", "application/json")
	io.WriteString(w, reply)
}

func textReply(text string) string {
	content, _ := json.Marshal([]map[string]any{{"type": "text", "text": text}})
	return `{"id":"msg_text","type":"message","role":"assistant","model":"claude-test","content":` + string(content) +
		`,"stop_reason":"end_turn","stop_sequence":null,"usage":{"input_tokens":10,"output_tokens":5}}`
}

func toolUseReply(id, name, input string) string {
	return `{"id":"msg_tool","type":"message","role":"assistant","model":"claude-test","content":[` +
		`{"type":"text","text":"Let me look that up."},` +
		`{"type":"tool_use","id":"` + id + `","name":"` + name + `","input":` + input + `}]` +
		`,"stop_reason":"tool_use","stop_sequence":null,"usage":{"input_tokens":10,"output_tokens":5}}`
}

func newTestClient(t *testing.T, replies ...string) (*Client, *fakeMessages) {
	t.Helper()
	fake := &fakeMessages{replies: replies}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	c, err := New("test-key", "claude-test", 256, discard, option.WithBaseURL(srv.URL), option.WithMaxRetries(0))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c, fake
}

func TestNewRequiresKey(t *testing.T) {
	if _, err := New("", "m", 10, nil); !errors.Is(err, ErrNoAPIKey) {
		t.Fatalf("expected ErrNoAPIKey, got %v", err)
	}
}

func TestComplete(t *testing.T) {
	c, fake := newTestClient(t, textReply("The Dell XPS 15."))

	got, err := c.Complete(context.Background(), "Answer from context.", "Which laptop?")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "The Dell XPS 15." {
		t.Errorf("answer = %q", got)
	}

	req := fake.requests[0]
	if req["model"] != "claude-test" || req["max_tokens"].(float64) != 256 {
		t.Errorf("request = %v", req)
	}
	system := req["system"].([]any)[0].(map[string]any)["text"]
	if system != "Answer from context." {
		t.Errorf("system = %v", system)
	}
	if _, hasTools := req["tools"]; hasTools {
		t.Error("plain completion should not send tools")
	}
}

func TestRunAgentCallsTools(t *testing.T) {
	c, fake := newTestClient(t,
		toolUseReply("tu_1", "search_knowledge_base", `{"query":"laptop"}`),
		textReply("We have the Dell XPS 15."),
	)

	var gotArgs map[string]any
	tools := []Tool{{
		Name:        "search_knowledge_base",
		Description: "Search products",
		Properties:  map[string]any{"query": map[string]any{"type": "string"}},
		Required:    []string{"query"},
		Call: func(_ context.Context, args map[string]any) (string, error) {
			gotArgs = args
			return `[{"name":"Dell XPS 15"}]`, nil
		},
	}}

	res, err := c.RunAgent(context.Background(), "", "What laptops?", tools, 5)
	if err != nil {
		t.Fatalf("RunAgent: %v", err)
	}
	if res.Answer != "We have the Dell XPS 15." || res.Turns != 2 {
		t.Errorf("result = %+v", res)
	}
	if len(res.ToolCalls) != 1 || gotArgs["query"] != "laptop" {
		t.Fatalf("tool calls = %+v, args %v", res.ToolCalls, gotArgs)
	}

	first := fake.requests[0]
	tool := first["tools"].([]any)[0].(map[string]any)
	if tool["name"] != "search_knowledge_base" || tool["input_schema"].(map[string]any)["type"] != "object" {
		t.Errorf("tool definition = %v", tool)
	}

	second := fake.requests[1]
	msgs := second["messages"].([]any)
	if len(msgs) != 3 {
		t.Fatalf("expected user, assistant, tool result; got %d messages", len(msgs))
	}
	result := msgs[2].(map[string]any)["content"].([]any)[0].(map[string]any)
	if result["type"] != "tool_result" || result["tool_use_id"] != "tu_1" {
		t.Errorf("tool result block = %v", result)
	}
	if !strings.Contains(toJSON(result["content"]), "Dell XPS 15") {
		t.Errorf("tool output not forwarded: %v", result["content"])
	}
}

func TestRunAgentToolErrorIsReported(t *testing.T) {
	c, fake := newTestClient(t,
		toolUseReply("tu_1", "search_knowledge_base", `{"query":"x"}`),
		textReply("Search is unavailable."),
	)
	tools := []Tool{{
		Name: "search_knowledge_base",
		Call: func(context.Context, map[string]any) (string, error) {
			return "", errors.New("connection refused")
		},
	}}

	res, err := c.RunAgent(context.Background(), "", "q", tools, 5)
	if err != nil {
		t.Fatalf("RunAgent: %v", err)
	}
	if res.ToolCalls[0].Err == nil {
		t.Error("expected the tool error to be recorded")
	}
	result := fake.requests[1]["messages"].([]any)[2].(map[string]any)["content"].([]any)[0].(map[string]any)
	if result["is_error"] != true {
		t.Errorf("tool result should be flagged as error: %v", result)
	}
}

func TestRunAgentTurnLimit(t *testing.T) {
	c, _ := newTestClient(t,
		toolUseReply("tu_1", "loop", `{}`),
		toolUseReply("tu_2", "loop", `{}`),
	)
	tools := []Tool{{Name: "loop", Call: func(context.Context, map[string]any) (string, error) { return "again", nil }}}

	res, err := c.RunAgent(context.Background(), "", "q", tools, 2)
	if err == nil {
		t.Fatal("expected turn limit error")
	}
	if res.Turns != 2 || len(res.ToolCalls) != 2 {
		t.Errorf("result = %+v", res)
	}
}

func TestAPIError(t *testing.T) {
	c, _ := newTestClient(t)
	if _, err := c.Complete(context.Background(), "", "q"); err == nil {
		t.Fatal("expected error from failing API")
	}
}

func toJSON(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}
