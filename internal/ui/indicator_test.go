package ui

import (
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/stretchr/testify/assert"
)

func TestConnectionIndicator_States(t *testing.T) {
	c := NewConnectionIndicator("/tmp/s.sock")
	assert.Equal(t, LinkConnecting, c.State)
	assert.Contains(t, c.View(), "connecting to /tmp/s.sock...")
	assert.NotNil(t, c.Init())

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Nil(t, c.SetConnected(true, now))
	assert.Equal(t, LinkConnected, c.State)
	assert.Equal(t, now, c.Since)
	assert.Contains(t, c.View(), SymbolConnected+" connected")

	assert.NotNil(t, c.SetConnected(false, now), "losing the link restarts the spinner")
	assert.Equal(t, LinkConnecting, c.State)
	assert.Nil(t, c.SetConnected(false, now), "already spinning")

	c.Stop(now)
	assert.Contains(t, c.View(), SymbolDisconnected+" disconnected")
}

func TestConnectionIndicator_UpdateOnlyWhileConnecting(t *testing.T) {
	c := NewConnectionIndicator("x")
	c.SetConnected(true, time.Now())
	next, cmd := c.Update(spinner.TickMsg{})
	assert.Nil(t, cmd)
	assert.Equal(t, LinkConnected, next.State)
}
