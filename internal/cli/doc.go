// Package cli implements the sensord command-line interface.
//
// The root command is "sensord" with subcommands:
//
//	sensord watch               - Live dashboard (or plain lines when not a TTY)
//	sensord export <sensor-id>  - Collect samples and print JSON, CSV or YAML
//	sensord stats               - Collect samples and print a per-sensor summary
//	sensord send                - Send one frame to the backend
//	sensord simulate            - Serve simulated sensors on a Unix socket
//	sensord config init|show    - Write or print configuration
//	sensord version             - Print build information
//
// # Flag Handling
//
// Global flags (--config, --socket, --verbose, --no-color) are defined on
// the root command. Commands load configuration through loadConfig, which
// applies --socket over the file and validates the result. Core packages
// never read configuration themselves; this package maps Config onto their
// options.
package cli
