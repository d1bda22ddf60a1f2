package monitor

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	helpBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorAccent).
			Padding(1, 2)

	helpTitleStyle = lipgloss.NewStyle().
			Foreground(ColorAccent).
			Bold(true).
			MarginBottom(1)
)

// renderHelpOverlay renders a centered box with every key binding.
func (m Model) renderHelpOverlay() string {
	lines := []string{
		helpTitleStyle.Render("Keyboard Shortcuts"),
		m.help.FullHelpView(m.keys.FullHelp()),
		"",
		LabelStyle.Render("Press ? to close"),
	}
	box := helpBoxStyle.Render(strings.Join(lines, "\n"))
	if m.width == 0 || m.height == 0 {
		return box
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}
