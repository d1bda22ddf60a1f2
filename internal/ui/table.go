package ui

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
)

// TableColumn defines a table column with name and width.
type TableColumn struct {
	Title string
	Width int
}

// NewTable creates a non-focused Bubbles table with default styling.
func NewTable(columns []TableColumn, rows []table.Row) table.Model {
	cols := make([]table.Column, len(columns))
	for i, c := range columns {
		cols[i] = table.Column{Title: c.Title, Width: c.Width}
	}

	t := table.New(
		table.WithColumns(cols),
		table.WithRows(rows),
		table.WithFocused(false),
		table.WithHeight(len(rows)+1), // +1 for header
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(ColorMuted).
		BorderBottom(true).
		Bold(true).
		Foreground(ColorPrimary)
	s.Cell = s.Cell.Foreground(ColorPrimary)
	// Not focused, so nothing should look selected.
	s.Selected = s.Cell

	t.SetStyles(s)
	return t
}

// SensorRow is one line of the sensor summary table.
type SensorRow struct {
	ID        string
	Name      string
	Samples   int
	TempMean  float64
	TempStd   float64
	TempTrend float64
	HumMean   float64
	HumStd    float64
	HumTrend  float64
	HasTrend  bool
}

var sensorColumns = []TableColumn{
	{Title: "SENSOR", Width: 10},
	{Title: "NAME", Width: 12},
	{Title: "N", Width: 5},
	{Title: "TEMP °C", Width: 16},
	{Title: "HUM %", Width: 16},
}

// RenderSensorTable renders per-sensor statistics for terminal output.
func RenderSensorTable(rows []SensorRow) string {
	if len(rows) == 0 {
		return MutedStyle().Render("No sensor data received")
	}

	tableRows := make([]table.Row, len(rows))
	for i, r := range rows {
		tableRows[i] = table.Row{
			r.ID,
			r.Name,
			strconv.Itoa(r.Samples),
			metricCell(r.TempMean, r.TempStd, r.TempTrend, r.HasTrend),
			metricCell(r.HumMean, r.HumStd, r.HumTrend, r.HasTrend),
		}
	}
	return NewTable(sensorColumns, tableRows).View()
}

func metricCell(mean, std, trend float64, hasTrend bool) string {
	cell := fmt.Sprintf("%.2f ±%.2f", mean, std)
	if hasTrend {
		cell += " " + TrendSymbol(trend)
	}
	return cell
}
