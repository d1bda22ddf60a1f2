package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/rileyhilliard/sensord/internal/errors"
)

const (
	// ConfigFileName is the default config file name.
	ConfigFileName = "sensord.yaml"
	// GlobalConfigDir is the directory for global config, relative to home.
	GlobalConfigDir = ".config/sensord"
	// GlobalConfigFile is the global config file name.
	GlobalConfigFile = "config.yaml"
	// EnvPrefix prefixes environment overrides, e.g. SENSORD_SOCKET_PATH.
	EnvPrefix = "SENSORD"
)

// Load reads config from the specified path, merged over the defaults.
func Load(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				"Config file not found",
				"Run 'sensord config init' to create one, or specify one with --config")
		}
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to read config file",
			"Check the file exists and is valid YAML")
	}

	return parseConfig(v, path)
}

// Find locates the config file using the search order:
// 1. Explicit path (from --config flag)
// 2. sensord.yaml in the current directory
// 3. ~/.config/sensord/config.yaml
//
// Returns the path to the config file, or empty string if not found.
func Find(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			if os.IsNotExist(err) {
				return "", errors.WrapWithCode(err, errors.ErrConfig,
					"Specified config file not found: "+explicit,
					"Check the path is correct")
			}
			return "", errors.WrapWithCode(err, errors.ErrConfig,
				"Cannot access config file: "+explicit,
				"Check file permissions")
		}
		return explicit, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot determine current directory",
			"Check directory permissions")
	}
	if local := filepath.Join(cwd, ConfigFileName); fileExists(local) {
		return local, nil
	}

	if global := GlobalConfigPath(); global != "" && fileExists(global) {
		return global, nil
	}

	return "", nil
}

// GlobalConfigPath returns ~/.config/sensord/config.yaml, or "" when the
// home directory is unknown.
func GlobalConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ""
	}
	return filepath.Join(home, GlobalConfigDir, GlobalConfigFile)
}

// LoadOrDefault loads the config found by Find(explicit), or returns the
// defaults (with environment overrides applied) when there is none.
func LoadOrDefault(explicit string) (*Config, string, error) {
	path, err := Find(explicit)
	if err != nil {
		return nil, "", err
	}

	if path == "" {
		cfg, err := parseConfig(newViper(), "")
		return cfg, "", err
	}

	cfg, err := Load(path)
	return cfg, path, err
}

// newViper returns a viper instance with defaults and SENSORD_* environment
// overrides registered.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()
	setDefaults(v, DefaultConfig())
	return v
}

// parseConfig converts viper config to our Config struct.
func parseConfig(v *viper.Viper, path string) (*Config, error) {
	cfg := DefaultConfig()

	if err := v.Unmarshal(cfg); err != nil {
		where := "the environment"
		if path != "" {
			where = path
		}
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Invalid config format",
			"Check the values in "+where)
	}

	cfg.Socket.Path = ExpandTilde(Expand(cfg.Socket.Path))
	return cfg, nil
}

// setDefaults registers every key so environment overrides apply even when
// the file omits them.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("version", d.Version)
	v.SetDefault("socket.path", d.Socket.Path)
	v.SetDefault("socket.max_payload", d.Socket.MaxPayload)
	v.SetDefault("socket.event_buffer", d.Socket.EventBuffer)
	v.SetDefault("reconnect.enabled", d.Reconnect.Enabled)
	v.SetDefault("reconnect.initial_delay", d.Reconnect.InitialDelay)
	v.SetDefault("reconnect.max_delay", d.Reconnect.MaxDelay)
	v.SetDefault("reconnect.multiplier", d.Reconnect.Multiplier)
	v.SetDefault("reconnect.jitter", d.Reconnect.Jitter)
	v.SetDefault("history.size", d.History.Size)
	v.SetDefault("history.live_size", d.History.LiveSize)
	v.SetDefault("anomaly.threshold", d.Anomaly.Threshold)
	v.SetDefault("anomaly.high_threshold", d.Anomaly.HighThreshold)
	v.SetDefault("anomaly.baseline", d.Anomaly.Baseline)
	v.SetDefault("anomaly.baseline_size", d.Anomaly.BaselineSize)
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.addr", d.Metrics.Addr)
	v.SetDefault("metrics.path", d.Metrics.Path)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
