package preview

import "github.com/charmbracelet/lipgloss"

var (
	colorPrimary = lipgloss.Color("#a78bfa")
	colorMuted   = lipgloss.Color("#808080")
	colorError   = lipgloss.Color("#ff5555")
	colorBar     = lipgloss.Color("#1a1a1a")
)

func barStyle() lipgloss.Style {
	return lipgloss.NewStyle().Background(colorBar)
}

func iconStyle() lipgloss.Style {
	return barStyle().Bold(true).Foreground(colorPrimary)
}

func mutedStyle() lipgloss.Style {
	return barStyle().Foreground(colorMuted)
}

func errorStyle() lipgloss.Style {
	return barStyle().Foreground(colorError)
}
