// Package console renders driver output: the answer, its sources, tool
// calls and diagnostics.
package console

import "github.com/charmbracelet/lipgloss"

// One Dark Pro color palette
var (
	ColorFgPrimary = lipgloss.Color("#ABB2BF")
	ColorFgMuted   = lipgloss.Color("#636B78")
	ColorFgComment = lipgloss.Color("#5C6370")

	ColorRed     = lipgloss.Color("#E06C75")
	ColorGreen   = lipgloss.Color("#98C379")
	ColorYellow  = lipgloss.Color("#E5C07B")
	ColorBlue    = lipgloss.Color("#61AFEF")
	ColorMagenta = lipgloss.Color("#C678DD")
	ColorCyan    = lipgloss.Color("#56B6C2")
)

// styles are bound to one renderer so color support follows the writer.
type styles struct {
	header     lipgloss.Style
	question   lipgloss.Style
	answer     lipgloss.Style
	sourceNum  lipgloss.Style
	sourceText lipgloss.Style
	toolName   lipgloss.Style
	toolResult lipgloss.Style
	errorLabel lipgloss.Style
	muted      lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		header: r.NewStyle().
			Foreground(ColorRed).
			Bold(true),
		question: r.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(ColorGreen).
			Foreground(ColorGreen).
			PaddingLeft(1),
		answer: r.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(ColorBlue).
			Foreground(ColorFgPrimary).
			PaddingLeft(1),
		sourceNum: r.NewStyle().
			Foreground(ColorMagenta).
			Bold(true),
		sourceText: r.NewStyle().
			Foreground(ColorFgComment),
		toolName: r.NewStyle().
			Foreground(ColorYellow),
		toolResult: r.NewStyle().
			Foreground(ColorFgComment).
			MarginLeft(3),
		errorLabel: r.NewStyle().
			Foreground(ColorRed).
			Bold(true),
		muted: r.NewStyle().
			Foreground(ColorFgMuted),
	}
}
