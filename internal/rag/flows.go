package rag

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/veigap/austral-genai-rag/internal/llm"
	"github.com/veigap/austral-genai-rag/internal/mcp"
	"github.com/veigap/austral-genai-rag/internal/search"
)

const (
	directSystem = "You are a helpful shop assistant. Answer the question using only the numbered sources " +
		"provided. Cite sources as [n]. If the sources do not contain the answer, say so."
	agentSystem = "You are a helpful shop assistant. Use the available tools to look up products before " +
		"answering questions about the catalogue. Be concise."
)

// Model is the chat surface the flows need. *llm.Client implements it.
type Model interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
	RunAgent(ctx context.Context, system, question string, tools []llm.Tool, maxTurns int) (*llm.AgentResult, error)
}

// Answer is what a flow produces for the driver to print.
type Answer struct {
	Text      string
	Sources   []search.Row
	ToolCalls []llm.ToolCall
}

// Direct retrieves k rows, puts them in the prompt and asks once.
func Direct(ctx context.Context, m Model, r Retriever, question string, k int) (*Answer, error) {
	rows, err := r.Retrieve(ctx, question, k)
	if err != nil {
		return nil, err
	}
	prompt := fmt.Sprintf("Sources:\n%s\n\nQuestion: %s", BuildContext(rows), question)
	text, err := m.Complete(ctx, directSystem, prompt)
	if err != nil {
		return nil, err
	}
	return &Answer{Text: text, Sources: rows}, nil
}

// KnowledgeBaseTool exposes r as the single tool search_knowledge_base. Rows
// it returns are appended to sources.
func KnowledgeBaseTool(r Retriever, k int, sources *[]search.Row) llm.Tool {
	return llm.Tool{
		Name:        "search_knowledge_base",
		Description: fmt.Sprintf("Search the product knowledge base (%s). Returns numbered matching products.", r.Name()),
		Properties: map[string]any{
			"query": map[string]any{"type": "string", "description": "What to search for"},
		},
		Required: []string{"query"},
		Call: func(ctx context.Context, args map[string]any) (string, error) {
			query, _ := args["query"].(string)
			if query == "" {
				return "", fmt.Errorf("query is required")
			}
			rows, err := r.Retrieve(ctx, query, k)
			if err != nil {
				return "", err
			}
			*sources = append(*sources, rows...)
			return BuildContext(rows), nil
		},
	}
}

// ToolAgent lets the model decide whether to search.
func ToolAgent(ctx context.Context, m Model, r Retriever, question string, k int) (*Answer, error) {
	var sources []search.Row
	res, err := m.RunAgent(ctx, agentSystem, question, []llm.Tool{KnowledgeBaseTool(r, k, &sources)}, llm.DefaultMaxTurns)
	if err != nil {
		return nil, err
	}
	return &Answer{Text: res.Answer, Sources: sources, ToolCalls: res.ToolCalls}, nil
}

// MCPTools discovers the server's tools and wraps each as an llm.Tool that
// forwards to tools/call.
func MCPTools(ctx context.Context, c *mcp.Client) ([]llm.Tool, error) {
	defs, err := c.ListTools(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tools: %w", err)
	}
	tools := make([]llm.Tool, len(defs))
	for i, def := range defs {
		props, err := schemaProperties(def.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("tool %s: %w", def.Name, err)
		}
		name := def.Name
		tools[i] = llm.Tool{
			Name:        name,
			Description: def.Description,
			Properties:  props,
			Required:    def.InputSchema.Required,
			Call: func(ctx context.Context, args map[string]any) (string, error) {
				res, err := c.CallTool(ctx, name, args)
				if err != nil {
					return "", err
				}
				return res.Text(), nil
			},
		}
	}
	return tools, nil
}

// MCPAgent answers question with whatever tools the connected server offers.
// The client must already be initialized.
func MCPAgent(ctx context.Context, m Model, c *mcp.Client, instructions, question string) (*Answer, error) {
	tools, err := MCPTools(ctx, c)
	if err != nil {
		return nil, err
	}
	system := agentSystem
	if instructions != "" {
		system += "\n\n" + instructions
	}
	res, err := m.RunAgent(ctx, system, question, tools, llm.DefaultMaxTurns)
	if err != nil {
		return nil, err
	}
	return &Answer{Text: res.Answer, ToolCalls: res.ToolCalls}, nil
}

func schemaProperties(schema mcp.InputSchema) (map[string]any, error) {
	data, err := json.Marshal(schema.Properties)
	if err != nil {
		return nil, err
	}
	props := map[string]any{}
	if err := json.Unmarshal(data, &props); err != nil {
		return nil, err
	}
	return props, nil
}
