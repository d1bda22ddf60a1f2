// Package ui provides terminal styling shared by sensord's plain and
// dashboard output.
//
// Colors are ANSI codes for broad terminal compatibility:
//
//	ColorSuccess   (green)  - connected, healthy
//	ColorError     (red)    - disconnected, high severity anomalies
//	ColorWarning   (yellow) - medium severity anomalies
//	ColorMuted     (gray)   - timestamps, secondary text
//
// Use DisableColors() to switch to monochrome output (for --no-color).
//
// RenderSparkline draws a one-line block graph of recent values and
// ConnectionIndicator is a Bubble Tea component that animates while the
// transport is connecting.
package ui
