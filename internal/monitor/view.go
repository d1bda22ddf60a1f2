package monitor

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/rileyhilliard/sensord/internal/stream"
	"github.com/rileyhilliard/sensord/internal/ui"
)

// renderDashboard renders the card grid view.
func (m Model) renderDashboard() string {
	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")
	b.WriteString(m.renderSensorCards())
	if log := m.renderAnomalyLog(); log != "" {
		b.WriteString("\n")
		b.WriteString(log)
	}
	b.WriteString("\n")
	b.WriteString(m.renderFooter())

	return b.String()
}

// renderHeader renders the title, link state and summary counts.
func (m Model) renderHeader() string {
	var updateText string
	switch since := m.SecondsSinceUpdate(); {
	case m.lastUpdate.IsZero():
		updateText = "waiting for data"
	case since == 0:
		updateText = "last update just now"
	default:
		updateText = fmt.Sprintf("last update %ds ago", since)
	}

	title := lipgloss.NewStyle().
		Foreground(ColorAccent).
		Bold(true).
		Render("sensord watch")

	stats := lipgloss.NewStyle().
		Foreground(ColorTextSecondary).
		Render(fmt.Sprintf(" | %d sensors | %s", len(m.sensors), updateText))

	header := HeaderStyle.Render(title+stats) + "  " + m.link.View()
	if m.status != "" {
		header += "\n" + MutedStyle.Render("backend: "+m.status)
	}
	return header
}

// renderSensorCards renders the grid of sensor cards.
func (m Model) renderSensorCards() string {
	if len(m.sensors) == 0 {
		return LabelStyle.Render("No sensor data yet")
	}

	cardWidth := m.calculateCardWidth()
	cards := make([]string, 0, len(m.sensors))
	for i, id := range m.sensors {
		cards = append(cards, m.renderCard(id, cardWidth, i == m.selected))
	}
	return m.layoutCards(cards, cardWidth)
}

// calculateCardWidth determines the card width based on terminal width.
func (m Model) calculateCardWidth() int {
	if m.width == 0 || m.width >= BreakpointCompact {
		return defaultCardWidth
	}
	if w := m.width - 4; w > 20 {
		return w
	}
	return 20
}

// layoutCards arranges cards in rows based on terminal width.
func (m Model) layoutCards(cards []string, cardWidth int) string {
	cardsPerRow := 1
	if m.width > 0 {
		cardsPerRow = m.width / (cardWidth + 1)
		if cardsPerRow < 1 {
			cardsPerRow = 1
		}
	}

	var rows []string
	for i := 0; i < len(cards); i += cardsPerRow {
		end := i + cardsPerRow
		if end > len(cards) {
			end = len(cards)
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cards[i:end]...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

// renderAnomalyLog lists recent anomalies, newest first.
func (m Model) renderAnomalyLog() string {
	if len(m.anomalies) == 0 {
		return ""
	}
	lines := []string{ui.TitleStyle().Render("Anomalies")}
	for i := len(m.anomalies) - 1; i >= 0; i-- {
		lines = append(lines, formatAnomaly(m.anomalies[i]))
	}
	return strings.Join(lines, "\n")
}

func formatAnomaly(a stream.Anomaly) string {
	sev := ui.SeverityStyle(string(a.Severity)).Render(fmt.Sprintf("%s %-6s", ui.SymbolWarning, a.Severity))
	return fmt.Sprintf("%s %s %s %s=%.2f (μ %.2f ±%.2f)",
		sev,
		MutedStyle.Render(a.Time.Format("15:04:05")),
		a.SensorName,
		a.Metric, a.Value, a.Mean, a.Std)
}

// renderFooter renders the short key help.
func (m Model) renderFooter() string {
	return FooterStyle.Render(m.help.ShortHelpView(m.keys.ShortHelp()))
}
