package rag

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/veigap/austral-genai-rag/internal/embedding"
	"github.com/veigap/austral-genai-rag/internal/llm"
	"github.com/veigap/austral-genai-rag/internal/mcp"
	"github.com/veigap/austral-genai-rag/internal/search"
	"github.com/veigap/austral-genai-rag/internal/search/localindex"
	"github.com/veigap/austral-genai-rag/internal/seed"
	"github.com/veigap/austral-genai-rag/internal/toolsets"
	"github.com/veigap/austral-genai-rag/internal/vectorstore"
)

// scriptedModel records prompts. RunAgent calls every tool once with
// toolArgs and answers with the concatenated outputs.
type scriptedModel struct {
	system, prompt string
	toolArgs       map[string]any
	seenTools      []string
}

func (m *scriptedModel) Complete(_ context.Context, system, prompt string) (string, error) {
	m.system, m.prompt = system, prompt
	return "answer", nil
}

func (m *scriptedModel) RunAgent(ctx context.Context, system, question string, tools []llm.Tool, _ int) (*llm.AgentResult, error) {
	m.system, m.prompt = system, question
	res := &llm.AgentResult{Turns: 1}
	var outputs []string
	for _, t := range tools {
		m.seenTools = append(m.seenTools, t.Name)
		if m.toolArgs == nil {
			continue
		}
		out, err := t.Call(ctx, m.toolArgs)
		res.ToolCalls = append(res.ToolCalls, llm.ToolCall{Name: t.Name, Input: m.toolArgs, Output: out, Err: err})
		outputs = append(outputs, out)
	}
	res.Answer = strings.Join(outputs, "|")
	return res, nil
}

func seededFullText(t *testing.T) *FullTextRetriever {
	t.Helper()
	b, err := localindex.New("")
	if err != nil {
		t.Fatalf("localindex: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	products, _ := seed.Products()
	if _, err := seed.LoadFullText(context.Background(), b, "products", products); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return &FullTextRetriever{Backend: b, Index: "products"}
}

func TestBuildContext(t *testing.T) {
	rows := []search.Row{
		search.FullTextRow("p1", 2.5, map[string]any{"name": "Dell XPS 15", "description": "A laptop", "price": 1899.99}),
		search.VectorRow("p2", 0.1, map[string]any{"document": "Keyboard text"}),
	}
	got := BuildContext(rows)
	for _, want := range []string{"[1] Dell XPS 15", "description: A laptop", "price: 1899.99", "[2] p2", "document: Keyboard text"} {
		if !strings.Contains(got, want) {
			t.Errorf("context missing %q:\n%s", want, got)
		}
	}
	if BuildContext(nil) != "(no matching documents)" {
		t.Error("empty context placeholder changed")
	}
}

func TestDirect(t *testing.T) {
	m := &scriptedModel{}
	ans, err := Direct(context.Background(), m, seededFullText(t), DefaultQuestion, 3)
	if err != nil {
		t.Fatalf("Direct: %v", err)
	}
	if ans.Text != "answer" || len(ans.Sources) == 0 {
		t.Fatalf("answer = %+v", ans)
	}
	if !strings.Contains(m.prompt, "Question: "+DefaultQuestion) || !strings.Contains(m.prompt, "[1] ") {
		t.Errorf("prompt = %s", m.prompt)
	}
}

func TestToolAgent(t *testing.T) {
	m := &scriptedModel{toolArgs: map[string]any{"query": "laptop"}}
	ans, err := ToolAgent(context.Background(), m, seededFullText(t), DefaultQuestion, 3)
	if err != nil {
		t.Fatalf("ToolAgent: %v", err)
	}
	if len(m.seenTools) != 1 || m.seenTools[0] != "search_knowledge_base" {
		t.Fatalf("tools offered = %v", m.seenTools)
	}
	if len(ans.Sources) == 0 || !strings.Contains(ans.Text, "[1] ") {
		t.Errorf("answer = %+v", ans)
	}
}

func TestVectorRetriever(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	emb := embedding.NewHashEmbedder(128)
	products, _ := seed.Products()
	if _, err := seed.LoadVectors(context.Background(), store, emb, "products", products); err != nil {
		t.Fatalf("seed: %v", err)
	}
	r := &VectorRetriever{Store: store, Embedder: emb, Collection: "products"}

	rows, err := r.Retrieve(context.Background(), "programming laptop", 3)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d", len(rows))
	}
	for i := 1; i < len(rows); i++ {
		if *rows[i-1].Distance > *rows[i].Distance {
			t.Errorf("rows not ascending at %d", i)
		}
	}
	if r.Name() != "chroma:products" {
		t.Errorf("Name = %s", r.Name())
	}
	if _, err := r.Retrieve(context.Background(), "laptop", -1); err == nil {
		t.Error("expected error for negative k")
	}
}

func TestMCPAgentOverStdio(t *testing.T) {
	d, err := toolsets.Math().Dispatcher()
	if err != nil {
		t.Fatalf("dispatcher: %v", err)
	}
	clientR, serverW := io.Pipe()
	serverR, clientW := io.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		mcp.ServeStdio(ctx, d, serverR, serverW)
		serverW.Close()
	}()

	c := mcp.NewStreamClient(clientR, clientW)
	defer c.Close()
	info, err := c.Initialize(ctx)
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	m := &scriptedModel{toolArgs: map[string]any{"a": 6, "b": 7}}
	ans, err := MCPAgent(ctx, m, c, info.Instructions, "What is 6 times 7?")
	if err != nil {
		t.Fatalf("MCPAgent: %v", err)
	}
	if strings.Join(m.seenTools, ",") != "add,multiply" {
		t.Errorf("discovered tools = %v", m.seenTools)
	}
	if ans.Text != "13|42" {
		t.Errorf("answer = %q", ans.Text)
	}
	if !strings.Contains(m.system, info.Instructions) {
		t.Error("server instructions not passed to the model")
	}
}
