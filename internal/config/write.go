package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/rileyhilliard/sensord/internal/errors"
)

// sectionComments are attached above each top-level key in generated files.
var sectionComments = map[string]string{
	"socket":    "Backend Unix socket. Frames larger than max_payload bytes reset the connection; event_buffer frames may wait for the processor before new ones are dropped.",
	"reconnect": "Delay between connection attempts. initial_delay is never below 1s.",
	"history":   "Per-sensor windows: size for statistics, live_size for the dashboard.",
	"anomaly":   "Deviation thresholds in standard deviations. baseline: window | recent.",
	"metrics":   "Prometheus endpoint, off by default.",
}

// Marshal renders cfg as commented YAML.
func Marshal(cfg *Config) ([]byte, error) {
	var doc yaml.Node
	if err := doc.Encode(cfg); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}

	if doc.Kind == yaml.MappingNode {
		doc.HeadComment = "sensord configuration"
		for i := 0; i+1 < len(doc.Content); i += 2 {
			if c, ok := sectionComments[doc.Content[i].Value]; ok {
				doc.Content[i].HeadComment = c
			}
		}
	}

	out, err := yaml.Marshal(&doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return out, nil
}

// WriteDefault writes the default config to path. It refuses to overwrite an
// existing file unless force is set.
func WriteDefault(path string, force bool) error {
	if !force && fileExists(path) {
		return errors.New(errors.ErrConfig,
			"Config file already exists: "+path,
			"Use --force to overwrite it")
	}

	data, err := Marshal(DefaultConfig())
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, "Failed to render default config", "")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot create config directory",
			"Check permissions on "+filepath.Dir(path))
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot write config file",
			"Check permissions on "+path)
	}
	return nil
}
