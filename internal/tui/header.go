package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/altinukshini/pankti/internal/ui"
)

func RenderHeader(pageName, server string, width int) string {
	left := lipgloss.NewStyle().Bold(true).
		Foreground(lipgloss.Color("#F9FAFB")).
		Render(fmt.Sprintf(" pankti | %s", pageName))

	right := ""
	if server != "" {
		right = lipgloss.NewStyle().Foreground(ui.ColorMuted).
			Render(fmt.Sprintf("server: %s ", server))
	}

	gap := width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}
	padding := lipgloss.NewStyle().Width(gap).Render("")

	return lipgloss.NewStyle().
		Background(ui.ColorHighlight).
		Width(width).
		Render(left + padding + right)
}
