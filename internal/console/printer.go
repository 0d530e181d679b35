package console

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/veigap/austral-genai-rag/internal/llm"
	"github.com/veigap/austral-genai-rag/internal/mcp"
	"github.com/veigap/austral-genai-rag/internal/rag"
	"github.com/veigap/austral-genai-rag/internal/search"
)

const maxResultPreview = 200

// Printer writes styled driver output to w. Styling degrades to plain text
// when w is not a terminal.
type Printer struct {
	w  io.Writer
	st styles
}

func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w, st: newStyles(lipgloss.NewRenderer(w))}
}

func (p *Printer) Header(title string) {
	fmt.Fprintln(p.w, p.st.header.Render(title))
}

func (p *Printer) Question(q string) {
	fmt.Fprintln(p.w, p.st.question.Render(q))
}

// Answer prints the model's answer followed by its tool calls and sources.
func (p *Printer) Answer(a *rag.Answer) {
	for _, call := range a.ToolCalls {
		p.ToolCall(call)
	}
	fmt.Fprintln(p.w)
	fmt.Fprintln(p.w, p.st.answer.Render(a.Text))
	if len(a.Sources) > 0 {
		fmt.Fprintln(p.w)
		p.Sources(a.Sources)
	}
}

func (p *Printer) Sources(rows []search.Row) {
	fmt.Fprintln(p.w, p.st.muted.Render("Sources:"))
	for i, row := range rows {
		score := ""
		switch {
		case row.Score != nil:
			score = fmt.Sprintf("score %.3f", *row.Score)
		case row.Distance != nil:
			score = fmt.Sprintf("distance %.3f", *row.Distance)
		}
		fmt.Fprintf(p.w, "  %s %s %s\n",
			p.st.sourceNum.Render(fmt.Sprintf("[%d]", i+1)),
			rag.Title(row),
			p.st.sourceText.Render("("+score+")"))
	}
}

func (p *Printer) ToolCall(call llm.ToolCall) {
	args, _ := json.Marshal(call.Input)
	fmt.Fprintf(p.w, "%s %s\n", p.st.toolName.Render("⚙ "+call.Name), p.st.muted.Render(string(args)))
	result := call.Output
	if call.Err != nil {
		result = "error: " + call.Err.Error()
	}
	fmt.Fprintln(p.w, p.st.toolResult.Render(preview(result)))
}

// Tools lists tool descriptors, one per line with their parameters.
func (p *Printer) Tools(defs []mcp.ToolDefinition) {
	for _, d := range defs {
		params := make([]string, 0, len(d.InputSchema.Properties))
		for name, prop := range d.InputSchema.Properties {
			params = append(params, name+":"+prop.Type)
		}
		slices.Sort(params)
		fmt.Fprintf(p.w, "%s(%s)\n", p.st.toolName.Render(d.Name), strings.Join(params, ", "))
		if d.Description != "" {
			fmt.Fprintln(p.w, p.st.toolResult.Render(d.Description))
		}
	}
}

func (p *Printer) Info(msg string) {
	fmt.Fprintln(p.w, p.st.muted.Render(msg))
}

// Error prints a one-line diagnostic.
func (p *Printer) Error(err error) {
	fmt.Fprintf(p.w, "%s %s\n", p.st.errorLabel.Render("error:"), err)
}

func preview(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > maxResultPreview {
		return string(r[:maxResultPreview]) + "…"
	}
	return s
}
