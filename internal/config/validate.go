package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/rileyhilliard/sensord/internal/errors"
)

// MinReconnectDelay is the smallest reconnect delay the client will use.
const MinReconnectDelay = time.Second

// Upper bounds for sizes that are allocated up front or carried as uint32.
const (
	MaxSocketPayload = 64 << 20
	MaxEventBuffer   = 1 << 20
	MaxHistorySize   = 1_000_000
)

// Validate checks the config for errors and returns structured CONFIG errors.
func Validate(cfg *Config) error {
	if cfg.Version > CurrentConfigVersion {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("This config is from the future (version %d, but sensord only knows up to %d)", cfg.Version, CurrentConfigVersion),
			"Upgrade sensord or lower the version field")
	}

	checks := []struct {
		section string
		fn      func(*Config) error
	}{
		{"socket", validateSocket},
		{"reconnect", validateReconnect},
		{"history", validateHistory},
		{"anomaly", validateAnomaly},
		{"metrics", validateMetrics},
	}
	for _, c := range checks {
		if err := c.fn(cfg); err != nil {
			return errors.New(errors.ErrConfig, err.Error(),
				fmt.Sprintf("Check the '%s' section in your %s.", c.section, ConfigFileName))
		}
	}
	return nil
}

func validateSocket(cfg *Config) error {
	if strings.TrimSpace(cfg.Socket.Path) == "" {
		return fmt.Errorf("socket.path must not be empty")
	}
	if cfg.Socket.MaxPayload <= 0 {
		return fmt.Errorf("socket.max_payload must be positive, got %d", cfg.Socket.MaxPayload)
	}
	if cfg.Socket.MaxPayload > MaxSocketPayload {
		return fmt.Errorf("socket.max_payload must be at most %d, got %d", MaxSocketPayload, cfg.Socket.MaxPayload)
	}
	if cfg.Socket.EventBuffer < 1 || cfg.Socket.EventBuffer > MaxEventBuffer {
		return fmt.Errorf("socket.event_buffer must be between 1 and %d, got %d", MaxEventBuffer, cfg.Socket.EventBuffer)
	}
	return nil
}

func validateReconnect(cfg *Config) error {
	r := cfg.Reconnect
	if r.InitialDelay < 0 {
		return fmt.Errorf("reconnect.initial_delay must not be negative, got %s", r.InitialDelay)
	}
	if r.MaxDelay != 0 && r.MaxDelay < MinReconnectDelay {
		return fmt.Errorf("reconnect.max_delay must be at least %s, got %s", MinReconnectDelay, r.MaxDelay)
	}
	if r.Multiplier < 1 {
		return fmt.Errorf("reconnect.multiplier must be at least 1.0, got %g", r.Multiplier)
	}
	return nil
}

func validateHistory(cfg *Config) error {
	if cfg.History.Size < 1 || cfg.History.Size > MaxHistorySize {
		return fmt.Errorf("history.size must be between 1 and %d, got %d", MaxHistorySize, cfg.History.Size)
	}
	if cfg.History.LiveSize < 1 || cfg.History.LiveSize > MaxHistorySize {
		return fmt.Errorf("history.live_size must be between 1 and %d, got %d", MaxHistorySize, cfg.History.LiveSize)
	}
	return nil
}

func validateAnomaly(cfg *Config) error {
	a := cfg.Anomaly
	if a.Threshold <= 0 {
		return fmt.Errorf("anomaly.threshold must be positive, got %g", a.Threshold)
	}
	if a.HighThreshold <= a.Threshold {
		return fmt.Errorf("anomaly.high_threshold (%g) must exceed anomaly.threshold (%g)", a.HighThreshold, a.Threshold)
	}
	switch a.Baseline {
	case BaselineWindow:
	case BaselineRecent:
		if a.BaselineSize < 2 {
			return fmt.Errorf("anomaly.baseline_size must be at least 2 for the recent baseline, got %d", a.BaselineSize)
		}
	default:
		return fmt.Errorf("anomaly.baseline must be %q or %q, got %q", BaselineWindow, BaselineRecent, a.Baseline)
	}
	return nil
}

func validateMetrics(cfg *Config) error {
	m := cfg.Metrics
	if !m.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(m.Addr); err != nil {
		return fmt.Errorf("metrics.addr %q is not host:port: %v", m.Addr, err)
	}
	if !strings.HasPrefix(m.Path, "/") {
		return fmt.Errorf("metrics.path must start with '/', got %q", m.Path)
	}
	return nil
}
