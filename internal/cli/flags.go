package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rileyhilliard/sensord/internal/config"
	"github.com/rileyhilliard/sensord/internal/errors"
	"github.com/rileyhilliard/sensord/internal/logger"
	"github.com/rileyhilliard/sensord/internal/stream"
	"github.com/rileyhilliard/sensord/internal/transport"
	"github.com/rileyhilliard/sensord/internal/wire"
)

// loadConfig finds and loads the config, applies --socket, and validates.
func loadConfig() (*config.Config, error) {
	cfg, _, err := config.LoadOrDefault(cfgFile)
	if err != nil {
		return nil, err
	}
	if socketFlag != "" {
		cfg.Socket.Path = config.ExpandTilde(config.Expand(socketFlag))
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseDurationFlag parses a duration flag value. Empty means zero.
func ParseDurationFlag(name, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("'%s' doesn't look like a valid --%s", value, name),
			"Try something like 5s, 2m, or 500ms.")
	}
	if d < 0 {
		return 0, errors.New(errors.ErrConfig,
			fmt.Sprintf("--%s must not be negative", name),
			"Use a positive duration like 30s.")
	}
	return d, nil
}

// ParseMessageType accepts a protocol type name (sensor_data, sensor_list,
// control, status) or its number.
func ParseMessageType(s string) (wire.MessageType, error) {
	switch strings.ToLower(strings.ReplaceAll(s, "-", "_")) {
	case "sensor_data", "data":
		return wire.MsgSensorData, nil
	case "sensor_list", "list":
		return wire.MsgSensorList, nil
	case "control":
		return wire.MsgControl, nil
	case "status":
		return wire.MsgStatus, nil
	}
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, errors.New(errors.ErrConfig,
			fmt.Sprintf("Unknown message type '%s'", s),
			"Use sensor_data, sensor_list, control, status, or a number.")
	}
	return wire.MessageType(n), nil
}

// backoffFromConfig maps reconnect settings onto a transport backoff.
func backoffFromConfig(r config.ReconnectConfig) transport.Backoff {
	return transport.Backoff{
		Initial:    r.InitialDelay,
		Max:        r.MaxDelay,
		Multiplier: r.Multiplier,
		Jitter:     r.Jitter,
	}
}

// clientOptions maps config onto transport options.
func clientOptions(cfg *config.Config, log logger.Logger, m *transport.Metrics) []transport.Option {
	return []transport.Option{
		transport.WithLogger(log),
		transport.WithBackoff(backoffFromConfig(cfg.Reconnect)),
		transport.WithMaxPayload(uint32(cfg.Socket.MaxPayload)),
		transport.WithEventBuffer(cfg.Socket.EventBuffer),
		transport.WithMetrics(m),
	}
}

// processorOptions maps config onto stream options.
func processorOptions(cfg *config.Config, log logger.Logger, m *stream.Metrics) []stream.Option {
	baseline := stream.BaselineWindow()
	if cfg.Anomaly.Baseline == config.BaselineRecent {
		baseline = stream.BaselineRecent(cfg.Anomaly.BaselineSize)
	}
	return []stream.Option{
		stream.WithHistorySize(cfg.History.Size),
		stream.WithLiveSize(cfg.History.LiveSize),
		stream.WithThresholds(cfg.Anomaly.Threshold, cfg.Anomaly.HighThreshold),
		stream.WithBaseline(baseline),
		stream.WithLogger(log),
		stream.WithMetrics(m),
	}
}
