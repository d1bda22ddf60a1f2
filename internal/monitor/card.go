package monitor

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/rileyhilliard/sensord/internal/stream"
	"github.com/rileyhilliard/sensord/internal/ui"
)

// renderCard renders one sensor's summary card.
func (m Model) renderCard(id string, width int, selected bool) string {
	v := m.views[id]
	inner := width - 4 // border + padding
	if inner < 10 {
		inner = 10
	}

	var lines []string
	lines = append(lines, m.renderCardHeader(v, inner))
	lines = append(lines, MutedStyle.Render(id))
	lines = append(lines,
		metricLine("temp", float64(v.Reading.Temperature), "°C", v.Statistics.Temperature, v.Statistics.HasTrend, TemperatureStyle),
		ui.RenderSparkline(v.Live.Temperatures, inner, ui.ColorTemperature),
		metricLine("hum ", float64(v.Reading.Humidity), "%", v.Statistics.Humidity, v.Statistics.HasTrend, HumidityStyle),
		ui.RenderSparkline(v.Live.Humidities, inner, ui.ColorHumidity),
		MutedStyle.Render(fmt.Sprintf("n=%d  %s", v.Statistics.Count, v.Reading.Time.Format("15:04:05"))),
	)

	style := CardStyle
	if selected {
		style = CardSelectedStyle
	}
	return style.Width(width - 2).Render(strings.Join(lines, "\n"))
}

func (m Model) renderCardHeader(v stream.View, width int) string {
	name := SensorNameStyle.Render(v.Reading.Name)
	var state string
	if v.Reading.Active {
		state = ui.SuccessStyle().Render(ui.SymbolConnected + " active")
	} else {
		state = ui.WarningStyle().Render(ui.SymbolInactive + " inactive")
	}
	gap := width - lipgloss.Width(name) - lipgloss.Width(state)
	if gap < 1 {
		gap = 1
	}
	return name + strings.Repeat(" ", gap) + state
}

// metricLine renders "temp  22.51°C  μ 22.40 ±0.31 ↑".
func metricLine(label string, value float64, unit string, s stream.MetricStats, hasTrend bool, style lipgloss.Style) string {
	line := LabelStyle.Render(label) + "  " +
		style.Render(fmt.Sprintf("%6.2f%s", value, unit)) + "  " +
		MutedStyle.Render(fmt.Sprintf("μ %.2f ±%.2f", s.Mean, s.Std))
	if hasTrend {
		line += " " + ValueStyle.Render(ui.TrendSymbol(s.Trend))
	}
	return line
}
