// Package monitor implements the live terminal dashboard for sensor streams.
//
// The dashboard shows one card per sensor with its latest reading, the
// long-term mean and deviation, a trend arrow, and sparklines of the live
// window. Anomalies raised by the stream processor are listed below the
// cards and the header tracks the transport link.
//
// # Architecture
//
// The package uses the Bubble Tea framework (Model-Update-View):
//
//   - Model: sensor views, anomaly log, selection, link state
//   - Update: keystrokes, window resizes, pipeline updates
//   - View: renders the current state to a string
//
// # Message Flow
//
// The pipeline goroutine forwards every notification through a
// pipeline.ChannelConsumer. The model keeps exactly one waitForUpdate
// command outstanding, so updates are applied in order on the Bubble Tea
// goroutine:
//
//  1. waitForUpdate blocks on the consumer channel
//  2. updateMsg arrives and is applied to the model
//  3. waitForUpdate is re-armed and View() re-renders
//
// When the consumer is closed the link is shown as disconnected and the
// dashboard stays open for browsing until the user quits.
//
// # Keyboard Shortcuts
//
//	q, Ctrl+C   - Quit
//	j/k, ↑/↓    - Select sensor
//	Enter       - Sensor detail view
//	Esc         - Back to the card grid
//	c           - Clear selected sensor's history
//	C           - Clear all sensors
//	?           - Toggle help
package monitor
