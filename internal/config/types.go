package config

import "time"

// CurrentConfigVersion is the schema version for the config file.
// Increment when making breaking changes to the config structure.
const CurrentConfigVersion = 1

// Config represents the complete sensord.yaml configuration file.
type Config struct {
	Version   int             `yaml:"version" mapstructure:"version"`
	Socket    SocketConfig    `yaml:"socket" mapstructure:"socket"`
	Reconnect ReconnectConfig `yaml:"reconnect" mapstructure:"reconnect"`
	History   HistoryConfig   `yaml:"history" mapstructure:"history"`
	Anomaly   AnomalyConfig   `yaml:"anomaly" mapstructure:"anomaly"`
	Metrics   MetricsConfig   `yaml:"metrics" mapstructure:"metrics"`
}

// SocketConfig locates the backend and bounds frame sizes.
type SocketConfig struct {
	// Path of the backend's Unix domain socket. Supports ~ and ${HOME}/${USER}.
	Path string `yaml:"path" mapstructure:"path"`

	// MaxPayload is the largest frame payload accepted, in bytes. A larger
	// declared size resets the connection.
	MaxPayload int `yaml:"max_payload" mapstructure:"max_payload"`

	// EventBuffer is how many undelivered readings and status frames the
	// client holds. Frames arriving while it is full are dropped and never
	// reach the processor.
	EventBuffer int `yaml:"event_buffer" mapstructure:"event_buffer"`
}

// ReconnectConfig controls the delay between connection attempts.
type ReconnectConfig struct {
	// Enabled toggles automatic reconnection. When false a lost connection
	// ends the session.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// InitialDelay is the first retry delay. Values below 1s are raised to 1s.
	InitialDelay time.Duration `yaml:"initial_delay" mapstructure:"initial_delay"`

	// MaxDelay caps the grown delay.
	MaxDelay time.Duration `yaml:"max_delay" mapstructure:"max_delay"`

	// Multiplier grows the delay per failed attempt. 1.0 keeps it fixed.
	Multiplier float64 `yaml:"multiplier" mapstructure:"multiplier"`

	// Jitter lengthens each delay by up to 10%.
	Jitter bool `yaml:"jitter" mapstructure:"jitter"`
}

// HistoryConfig sizes the per-sensor windows.
type HistoryConfig struct {
	Size     int `yaml:"size" mapstructure:"size"`
	LiveSize int `yaml:"live_size" mapstructure:"live_size"`
}

// Baseline names accepted by anomaly.baseline.
const (
	BaselineWindow = "window"
	BaselineRecent = "recent"
)

// AnomalyConfig controls anomaly detection.
type AnomalyConfig struct {
	// Threshold is the deviation, in standard deviations, that flags a
	// medium anomaly.
	Threshold float64 `yaml:"threshold" mapstructure:"threshold"`

	// HighThreshold flags a high anomaly. Must exceed Threshold.
	HighThreshold float64 `yaml:"high_threshold" mapstructure:"high_threshold"`

	// Baseline is "window" (whole long-term window) or "recent".
	Baseline string `yaml:"baseline" mapstructure:"baseline"`

	// BaselineSize is the sample count used with the "recent" baseline.
	BaselineSize int `yaml:"baseline_size" mapstructure:"baseline_size"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Addr    string `yaml:"addr" mapstructure:"addr"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentConfigVersion,
		Socket: SocketConfig{
			Path:        "/tmp/sensor_system.sock",
			MaxPayload:  1 << 20,
			EventBuffer: 4096,
		},
		Reconnect: ReconnectConfig{
			Enabled:      true,
			InitialDelay: time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
		},
		History: HistoryConfig{
			Size:     1000,
			LiveSize: 100,
		},
		Anomaly: AnomalyConfig{
			Threshold:     3.0,
			HighThreshold: 5.0,
			Baseline:      BaselineWindow,
			BaselineSize:  100,
		},
		Metrics: MetricsConfig{
			Addr: "127.0.0.1:9464",
			Path: "/metrics",
		},
	}
}
