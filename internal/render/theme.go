// Package render formats curriculum views for the terminal.
package render

import (
	"charm.land/lipgloss/v2"

	"github.com/abhisek/traverse/internal/progress"
)

// Color palette
var (
	Primary   = lipgloss.Color("#8B5CF6") // Vivid Purple
	Secondary = lipgloss.Color("#14B8A6") // Teal
	Accent    = lipgloss.Color("#F97316") // Orange
	Success   = lipgloss.Color("#22C55E") // Green
	Error     = lipgloss.Color("#F43F5E") // Rose
	Warning   = lipgloss.Color("#FBBF24") // Amber
	Text      = lipgloss.Color("#F8FAFC") // White
	TextDim   = lipgloss.Color("#94A3B8") // Slate
	Border    = lipgloss.Color("#334155") // Slate
)

// Typography
var (
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(Primary)

	Subtitle = lipgloss.NewStyle().
			Foreground(TextDim)

	Body = lipgloss.NewStyle().
		Foreground(Text)

	Hint = lipgloss.NewStyle().
		Foreground(TextDim).
		Italic(true)

	Card = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Border).
		Padding(0, 1)
)

// Outcomes
var (
	Correct = lipgloss.NewStyle().
		Foreground(Success).
		Bold(true)

	Incorrect = lipgloss.NewStyle().
			Foreground(Error).
			Bold(true)

	Remedial = lipgloss.NewStyle().
			Foreground(Accent).
			Bold(true)
)

// statusStyle colors a progress status.
func statusStyle(s progress.Status) lipgloss.Style {
	switch s {
	case progress.StatusCompleted:
		return lipgloss.NewStyle().Foreground(Success)
	case progress.StatusInProgress:
		return lipgloss.NewStyle().Foreground(Warning)
	case progress.StatusBlocked:
		return lipgloss.NewStyle().Foreground(Error).Bold(true)
	default:
		return lipgloss.NewStyle().Foreground(TextDim)
	}
}

// statusIcon is the single-glyph form of a status.
func statusIcon(s progress.Status) string {
	switch s {
	case progress.StatusCompleted:
		return "✓"
	case progress.StatusInProgress:
		return "▸"
	case progress.StatusBlocked:
		return "✗"
	default:
		return "·"
	}
}
