package ui

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// SpinnerFrames defines the animation frames (◐ ◓ ◑ ◒) shown while connecting.
var SpinnerFrames = spinner.Spinner{
	Frames: []string{"◐", "◓", "◑", "◒"},
	FPS:    time.Second / 10, // 100ms per frame
}

// LinkState is the connection state shown by a ConnectionIndicator.
type LinkState int

const (
	LinkConnecting LinkState = iota
	LinkConnected
	LinkDisconnected
)

// ConnectionIndicator is a Bubble Tea component that renders the transport
// link state. It animates only while connecting.
type ConnectionIndicator struct {
	spinner spinner.Model
	Target  string
	State   LinkState
	Since   time.Time
}

// NewConnectionIndicator creates an indicator for the given socket path.
func NewConnectionIndicator(target string) ConnectionIndicator {
	sp := spinner.New()
	sp.Spinner = SpinnerFrames
	sp.Style = lipgloss.NewStyle().Foreground(ColorSecondary)

	return ConnectionIndicator{
		spinner: sp,
		Target:  target,
		State:   LinkConnecting,
		Since:   time.Now(),
	}
}

// Init starts the spinner.
func (c ConnectionIndicator) Init() tea.Cmd {
	return c.spinner.Tick
}

// Update advances the animation while connecting.
func (c ConnectionIndicator) Update(msg tea.Msg) (ConnectionIndicator, tea.Cmd) {
	if c.State != LinkConnecting {
		return c, nil
	}
	if tickMsg, ok := msg.(spinner.TickMsg); ok {
		var cmd tea.Cmd
		c.spinner, cmd = c.spinner.Update(tickMsg)
		return c, cmd
	}
	return c, nil
}

// SetConnected records a link change. Losing the link goes back to the
// connecting animation since the transport retries on its own; the returned
// command restarts the tick.
func (c *ConnectionIndicator) SetConnected(up bool, now time.Time) tea.Cmd {
	prev := c.State
	c.Since = now
	if up {
		c.State = LinkConnected
		return nil
	}
	c.State = LinkConnecting
	if prev != LinkConnecting {
		return c.spinner.Tick
	}
	return nil
}

// Stop marks the link as closed for good.
func (c *ConnectionIndicator) Stop(now time.Time) {
	c.State = LinkDisconnected
	c.Since = now
}

// View renders the indicator.
func (c ConnectionIndicator) View() string {
	switch c.State {
	case LinkConnected:
		return SuccessStyle().Render(SymbolConnected) + " connected " + MutedStyle().Render(c.Target)
	case LinkDisconnected:
		return ErrorStyle().Render(SymbolDisconnected) + " disconnected " + MutedStyle().Render(c.Target)
	default:
		return c.spinner.View() + " connecting to " + MutedStyle().Render(c.Target) + "..."
	}
}
