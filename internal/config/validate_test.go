package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/sensord/internal/errors"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"future version", func(c *Config) { c.Version = 99 }, "from the future"},
		{"empty socket", func(c *Config) { c.Socket.Path = " " }, "socket.path"},
		{"zero payload", func(c *Config) { c.Socket.MaxPayload = 0 }, "socket.max_payload"},
		{"payload wraps uint32", func(c *Config) { c.Socket.MaxPayload = 1<<32 + 1 }, "socket.max_payload"},
		{"payload above cap", func(c *Config) { c.Socket.MaxPayload = MaxSocketPayload + 1 }, "socket.max_payload"},
		{"payload at cap", func(c *Config) { c.Socket.MaxPayload = MaxSocketPayload }, ""},
		{"zero event buffer", func(c *Config) { c.Socket.EventBuffer = 0 }, "socket.event_buffer"},
		{"huge event buffer", func(c *Config) { c.Socket.EventBuffer = MaxEventBuffer + 1 }, "socket.event_buffer"},
		{"negative delay", func(c *Config) { c.Reconnect.InitialDelay = -time.Second }, "initial_delay"},
		{"tiny max delay", func(c *Config) { c.Reconnect.MaxDelay = time.Millisecond }, "max_delay"},
		{"shrinking multiplier", func(c *Config) { c.Reconnect.Multiplier = 0.5 }, "multiplier"},
		{"fixed multiplier", func(c *Config) { c.Reconnect.Multiplier = 1 }, ""},
		{"history size", func(c *Config) { c.History.Size = 0 }, "history.size"},
		{"live size", func(c *Config) { c.History.LiveSize = 0 }, "history.live_size"},
		{"history size too large", func(c *Config) { c.History.Size = 1_000_000_000 }, "history.size"},
		{"live size too large", func(c *Config) { c.History.LiveSize = MaxHistorySize + 1 }, "history.live_size"},
		{"history size at cap", func(c *Config) { c.History.Size = MaxHistorySize }, ""},
		{"threshold", func(c *Config) { c.Anomaly.Threshold = 0 }, "anomaly.threshold"},
		{"high below medium", func(c *Config) { c.Anomaly.HighThreshold = 2 }, "high_threshold"},
		{"unknown baseline", func(c *Config) { c.Anomaly.Baseline = "ewma" }, "anomaly.baseline"},
		{"recent baseline too small", func(c *Config) {
			c.Anomaly.Baseline = BaselineRecent
			c.Anomaly.BaselineSize = 1
		}, "baseline_size"},
		{"metrics disabled ignores addr", func(c *Config) { c.Metrics.Addr = "bogus" }, ""},
		{"metrics bad addr", func(c *Config) {
			c.Metrics.Enabled = true
			c.Metrics.Addr = "bogus"
		}, "metrics.addr"},
		{"metrics bad path", func(c *Config) {
			c.Metrics.Enabled = true
			c.Metrics.Path = "metrics"
		}, "metrics.path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := Validate(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrConfig))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
