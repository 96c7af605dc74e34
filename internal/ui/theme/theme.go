// Package theme holds the lipgloss palette and styles shared by the live
// view and the CLI's human-readable output.
package theme

import (
	"image/color"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/codequiz/internal/quiz"
)

// Color palette
var (
	Primary   = lipgloss.Color("#8B5CF6") // Vivid Purple
	Secondary = lipgloss.Color("#14B8A6") // Teal
	Accent    = lipgloss.Color("#F97316") // Orange
	Success   = lipgloss.Color("#22C55E") // Green
	Warning   = lipgloss.Color("#EAB308") // Amber
	Error     = lipgloss.Color("#F43F5E") // Rose
	Text      = lipgloss.Color("#F8FAFC") // White
	TextDim   = lipgloss.Color("#94A3B8") // Slate
	BgCard    = lipgloss.Color("#1E293B") // Dark Slate
	Border    = lipgloss.Color("#334155") // Slate
)

// Typography
var (
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(Primary)

	Body = lipgloss.NewStyle().
		Foreground(Text)

	Hint = lipgloss.NewStyle().
		Foreground(TextDim).
		Italic(true)

	Label = lipgloss.NewStyle().
		Foreground(TextDim)
)

// Layout
var (
	Card = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Border).
		Padding(0, 1)
)

// States
var (
	Good = lipgloss.NewStyle().
		Foreground(Success).
		Bold(true)

	Warn = lipgloss.NewStyle().
		Foreground(Warning).
		Bold(true)

	Bad = lipgloss.NewStyle().
		Foreground(Error).
		Bold(true)
)

// Components
var (
	ProgressFilled = lipgloss.NewStyle().
			Background(Secondary)

	ProgressEmpty = lipgloss.NewStyle().
			Background(Border)
)

var typeColors = map[quiz.Type]color.Color{
	quiz.TypeMultipleChoice: Primary,
	quiz.TypeFillBlank:      Secondary,
	quiz.TypeOrderSequence:  Accent,
	quiz.TypeTrueFalse:      Success,
	quiz.TypeSelectAll:      Warning,
}

// TypeBadge renders a question type as a fixed-width colored tag.
func TypeBadge(t quiz.Type) string {
	c, ok := typeColors[t]
	if !ok {
		c = TextDim
	}
	return lipgloss.NewStyle().
		Foreground(c).
		Bold(true).
		Width(16).
		Render(string(t))
}
