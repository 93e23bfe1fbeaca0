package render

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"
)

// ProgressBar is a horizontal bar with an optional label and percentage.
type ProgressBar struct {
	Label       string
	Percent     float64
	ShowPercent bool
	Width       int
}

// View renders the bar. Filled cells use a solid block so the bar stays
// readable without color.
func (p ProgressBar) View() string {
	var result string

	if p.Label != "" {
		result += Body.Render(p.Label) + "  "
	}

	labelWidth := lipgloss.Width(result)
	percentWidth := 0
	if p.ShowPercent {
		percentWidth = 6 // "  100%"
	}

	barWidth := max(p.Width-labelWidth-percentWidth, 4)
	filled := min(max(int(float64(barWidth)*p.Percent), 0), barWidth)
	empty := barWidth - filled

	result += lipgloss.NewStyle().Foreground(Secondary).Render(strings.Repeat("█", filled))
	result += lipgloss.NewStyle().Foreground(Border).Render(strings.Repeat("░", empty))

	if p.ShowPercent {
		result += Subtitle.Render(fmt.Sprintf("  %d%%", int(p.Percent*100)))
	}
	return result
}
