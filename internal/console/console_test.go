package console

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/veigap/austral-genai-rag/internal/llm"
	"github.com/veigap/austral-genai-rag/internal/mcp"
	"github.com/veigap/austral-genai-rag/internal/rag"
	"github.com/veigap/austral-genai-rag/internal/search"
)

func TestPrinterAnswer(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)
	p.Answer(&rag.Answer{
		Text: "Try the Dell XPS 15 [1].",
		Sources: []search.Row{
			search.FullTextRow("prod-001", 1.234, map[string]any{"name": "Dell XPS 15"}),
			search.VectorRow("prod-009", 0.5, nil),
		},
		ToolCalls: []llm.ToolCall{
			{Name: "search_knowledge_base", Input: map[string]any{"query": "laptop"}, Output: "[1] Dell XPS 15"},
			{Name: "search_knowledge_base", Err: errors.New("connection refused")},
		},
	})

	out := buf.String()
	for _, want := range []string{
		"Try the Dell XPS 15 [1].",
		"[1] Dell XPS 15 (score 1.234)",
		"[2] prod-009 (distance 0.500)",
		`{"query":"laptop"}`,
		"error: connection refused",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrinterTools(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).Tools([]mcp.ToolDefinition{{
		Name:        "add",
		Description: "Add two numbers",
		InputSchema: mcp.InputSchema{Properties: map[string]mcp.Property{
			"b": {Type: "number"},
			"a": {Type: "number"},
		}},
	}})
	if !strings.Contains(buf.String(), "add(a:number, b:number)") {
		t.Errorf("output = %s", buf.String())
	}
}

func TestPreviewTruncates(t *testing.T) {
	long := strings.Repeat("x", maxResultPreview+50)
	if got := preview(long); len(got) > maxResultPreview+len("…") {
		t.Errorf("preview length %d", len(got))
	}
	if preview("a\n  b") != "a b" {
		t.Error("whitespace not collapsed")
	}

	accented := preview("a" + strings.Repeat("é", 250))
	if !utf8.ValidString(accented) {
		t.Errorf("preview split a rune: %q", accented)
	}
	if n := utf8.RuneCountInString(accented); n != maxResultPreview+1 {
		t.Errorf("preview runes = %d, want %d", n, maxResultPreview+1)
	}
}

type lockedBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (l *lockedBuffer) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.Write(p)
}

func (l *lockedBuffer) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.String()
}

func TestSpinner(t *testing.T) {
	var buf lockedBuffer
	s := StartSpinner(&buf, "Thinking", true)
	time.Sleep(20 * time.Millisecond)
	s.Stop()
	s.Stop()
	if !strings.Contains(buf.String(), "Thinking") {
		t.Errorf("spinner drew nothing: %q", buf.String())
	}

	var quiet lockedBuffer
	StartSpinner(&quiet, "Thinking", false).Stop()
	if quiet.String() != "" {
		t.Errorf("disabled spinner wrote %q", quiet.String())
	}
}
