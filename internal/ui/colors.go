package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Semantic colors using ANSI codes for terminal compatibility.
const (
	ColorSuccess lipgloss.Color = "2" // Green
	ColorError   lipgloss.Color = "1" // Red
	ColorWarning lipgloss.Color = "3" // Yellow
	ColorInfo    lipgloss.Color = "6" // Cyan
)

// Text colors for content hierarchy.
const (
	ColorPrimary   lipgloss.Color = "7" // White/default
	ColorSecondary lipgloss.Color = "4" // Blue
	ColorMuted     lipgloss.Color = "8" // Gray (bright black)
)

// Metric colors used by sparklines and value labels.
const (
	ColorTemperature lipgloss.Color = "208" // Orange
	ColorHumidity    lipgloss.Color = "39"  // Sky blue
)

func SuccessStyle() lipgloss.Style { return lipgloss.NewStyle().Foreground(ColorSuccess) }
func ErrorStyle() lipgloss.Style   { return lipgloss.NewStyle().Foreground(ColorError) }
func WarningStyle() lipgloss.Style { return lipgloss.NewStyle().Foreground(ColorWarning) }
func InfoStyle() lipgloss.Style    { return lipgloss.NewStyle().Foreground(ColorInfo) }
func MutedStyle() lipgloss.Style   { return lipgloss.NewStyle().Foreground(ColorMuted) }

// TitleStyle is used for section and card headings.
func TitleStyle() lipgloss.Style {
	return lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary)
}

// SeverityStyle colors anomaly severities: high is red, anything else yellow.
func SeverityStyle(severity string) lipgloss.Style {
	if severity == "high" {
		return ErrorStyle().Bold(true)
	}
	return WarningStyle()
}

// SetColorProfile forces the lipgloss color profile. Tests use it to get
// deterministic escape sequences.
func SetColorProfile(p termenv.Profile) {
	lipgloss.SetColorProfile(p)
}

// DisableColors switches to monochrome output (for --no-color).
func DisableColors() {
	SetColorProfile(termenv.Ascii)
}
