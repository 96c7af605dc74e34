package layout

import (
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/codequiz/internal/ui/theme"
)

// KeyHint represents a key binding hint shown in the footer.
type KeyHint struct {
	Key         string
	Description string
}

// RenderHeader renders the header bar: product name left, title right.
func RenderHeader(title string, width int) string {
	left := theme.Title.Render("codequiz")
	right := theme.Body.Render(title)

	innerWidth := max(0, width-4)
	gap := max(1, innerWidth-lipgloss.Width(left)-lipgloss.Width(right))

	return lipgloss.NewStyle().
		Width(width).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.Border).
		Render(left + strings.Repeat(" ", gap) + right)
}

// RenderFooter renders the footer with key hints.
func RenderFooter(hints []KeyHint, width int) string {
	parts := make([]string, 0, len(hints))
	for _, h := range hints {
		part := lipgloss.NewStyle().Foreground(theme.Text).Bold(true).Render(h.Key) +
			" " +
			theme.Label.Render(h.Description)
		parts = append(parts, part)
	}

	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 2).
		Render(strings.Join(parts, "   "))
}

// RenderFrame composes header, content and footer, padding the content to
// fill the height left over.
func RenderFrame(header, content, footer string, width, height int) string {
	contentHeight := max(0, height-lipgloss.Height(header)-lipgloss.Height(footer))

	styledContent := lipgloss.NewStyle().
		Width(width).
		Height(contentHeight).
		Render(content)

	return header + "\n" + styledContent + "\n" + footer
}
