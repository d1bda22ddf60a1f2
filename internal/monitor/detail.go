package monitor

import (
	"fmt"
	"strings"

	"github.com/rileyhilliard/sensord/internal/stream"
	"github.com/rileyhilliard/sensord/internal/ui"
)

// renderDetail renders the expanded view for one sensor: long-term
// statistics for both metrics, full-width live sparklines, and the
// anomalies logged for it.
func (m Model) renderDetail(id string) string {
	v := m.views[id]
	width := m.width - 4
	if width < 20 {
		width = 60
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")
	b.WriteString(SensorNameStyle.Render(v.Reading.Name) + " " + MutedStyle.Render(id))
	b.WriteString("\n")
	b.WriteString(MutedStyle.Render(fmt.Sprintf("long-term window %d samples | live window %d samples | last reading %s",
		v.History.Len(), v.Live.Len(), v.Reading.Time.Format("15:04:05.000"))))
	b.WriteString("\n\n")

	b.WriteString(detailMetric("Temperature °C", float64(v.Reading.Temperature), v.Statistics.Temperature, v.Statistics.HasTrend))
	b.WriteString(ui.RenderSparkline(v.Live.Temperatures, width, ui.ColorTemperature))
	b.WriteString("\n\n")
	b.WriteString(detailMetric("Humidity %", float64(v.Reading.Humidity), v.Statistics.Humidity, v.Statistics.HasTrend))
	b.WriteString(ui.RenderSparkline(v.Live.Humidities, width, ui.ColorHumidity))
	b.WriteString("\n\n")

	anomalies := m.sensorAnomalies(id)
	if len(anomalies) == 0 {
		b.WriteString(MutedStyle.Render("No anomalies logged"))
	} else {
		b.WriteString(ui.TitleStyle().Render("Anomalies"))
		for _, a := range anomalies {
			b.WriteString("\n")
			b.WriteString(formatAnomaly(a))
		}
	}
	b.WriteString("\n\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

func detailMetric(title string, current float64, s stream.MetricStats, hasTrend bool) string {
	trend := "n/a"
	if hasTrend {
		trend = fmt.Sprintf("%+.4f/sample %s", s.Trend, ui.TrendSymbol(s.Trend))
	}
	return fmt.Sprintf("%s\n%s %.2f   %s %.2f   %s %.2f   %s %.2f   %s %.2f   %s %s\n",
		ui.TitleStyle().Render(title),
		LabelStyle.Render("now"), current,
		LabelStyle.Render("mean"), s.Mean,
		LabelStyle.Render("std"), s.Std,
		LabelStyle.Render("min"), s.Min,
		LabelStyle.Render("max"), s.Max,
		LabelStyle.Render("trend"), trend)
}
