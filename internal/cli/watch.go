package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rileyhilliard/sensord/internal/config"
	"github.com/rileyhilliard/sensord/internal/errors"
	"github.com/rileyhilliard/sensord/internal/logger"
	"github.com/rileyhilliard/sensord/internal/metrics"
	"github.com/rileyhilliard/sensord/internal/monitor"
	"github.com/rileyhilliard/sensord/internal/pipeline"
	"github.com/rileyhilliard/sensord/internal/stream"
	"github.com/rileyhilliard/sensord/internal/transport"
)

var (
	watchPlain       bool
	watchMetrics     bool
	watchMetricsAddr string
	watchLogFile     string
)

// errConnectionLost ends watch when reconnects are disabled.
var errConnectionLost = errors.New(errors.ErrConnection,
	"Connection to the backend was lost",
	"Enable reconnect.enabled in your config to keep retrying")

// watchCmd streams readings live
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live dashboard of sensor readings and anomalies",
	Long: `Connect to the backend and show readings as they arrive. On a terminal
this opens the interactive dashboard; otherwise (or with --plain) one line is
printed per reading.

The connection is retried with backoff when it drops, unless
reconnect.enabled is false.

Keyboard shortcuts (dashboard):
  q / Ctrl+C  Quit
  up/k        Select previous sensor
  down/j      Select next sensor
  Enter       Sensor details
  Esc         Back
  c / C       Clear selected / all sensors
  ?           Show help

Examples:
  sensord watch
  sensord watch --plain
  sensord watch --metrics --metrics-addr 127.0.0.1:9464`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("metrics") {
			cfg.Metrics.Enabled = watchMetrics
		}
		if watchMetricsAddr != "" {
			cfg.Metrics.Enabled = true
			cfg.Metrics.Addr = watchMetricsAddr
		}
		if err := config.Validate(cfg); err != nil {
			return err
		}

		interactive := !watchPlain && isTerminal(cmd.OutOrStdout())
		return watchCommand(ctx, cfg, cmd.OutOrStdout(), interactive)
	},
}

func watchCommand(ctx context.Context, cfg *config.Config, stdout io.Writer, interactive bool) error {
	var reg *metrics.Registry
	if cfg.Metrics.Enabled {
		reg = metrics.NewRegistry()
	}

	log := logger.NewEnvLogger("[sensord]")
	if interactive {
		// The dashboard owns the screen; route the standard logger to a file
		// or drop it.
		if watchLogFile != "" {
			f, err := tea.LogToFile(watchLogFile, "sensord")
			if err != nil {
				return errors.WrapWithCode(err, errors.ErrConfig, "Cannot open log file "+watchLogFile, "")
			}
			defer f.Close()
		} else {
			log = logger.Noop()
		}
	}

	client := transport.New(cfg.Socket.Path,
		clientOptions(cfg, log, transport.NewMetrics(reg.Registerer()))...)
	proc := stream.New(processorOptions(cfg, log, stream.NewMetrics(reg.Registerer()))...)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	lost := make(chan struct{}, 1)
	opts := []pipeline.Option{
		pipeline.WithLogger(log),
		pipeline.WithConsumer(pipeline.ConsumerFuncs{
			Connection: func(up bool) {
				if !up && !cfg.Reconnect.Enabled {
					select {
					case lost <- struct{}{}:
					default:
					}
				}
			},
		}),
	}

	var dashboard *pipeline.ChannelConsumer
	if interactive {
		dashboard = pipeline.NewChannelConsumer(64)
		opts = append(opts, pipeline.WithConsumer(dashboard))
	} else {
		opts = append(opts, pipeline.WithConsumer(newLinePrinter(stdout, cfg.Socket.Path)))
	}
	p := pipeline.New(client, proc, opts...)

	if !interactive {
		fmt.Fprintf(stdout, "watching %s (Ctrl+C to stop)\n", cfg.Socket.Path)
	}

	// Transport: keep reconnecting, or connect once and stop on loss.
	g.Go(func() error {
		if cfg.Reconnect.Enabled {
			if err := client.Run(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		}
		if err := client.Connect(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-lost:
			return errConnectionLost
		}
	})

	g.Go(func() error {
		err := p.Run(context.Background())
		if dashboard != nil {
			dashboard.Close()
		}
		return err
	})

	// Closing the client drains its events and ends the pipeline.
	g.Go(func() error {
		<-ctx.Done()
		return client.Close()
	})

	if reg != nil {
		srv := metrics.NewServer(cfg.Metrics.Addr, cfg.Metrics.Path, reg)
		g.Go(func() error { return srv.Run(ctx) })
		log.Info("serving metrics on http://%s%s", cfg.Metrics.Addr, cfg.Metrics.Path)
	}

	if interactive {
		model := monitor.NewModel(dashboard, cfg.Socket.Path, monitor.WithController(proc))
		g.Go(func() error {
			prog := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
			_, err := prog.Run()
			dashboard.Close()
			cancel()
			if err != nil && !stderrors.Is(err, tea.ErrProgramKilled) {
				return fmt.Errorf("dashboard: %w", err)
			}
			return nil
		})
	}

	err := g.Wait()
	if stderrors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func init() {
	watchCmd.Flags().BoolVar(&watchPlain, "plain", false, "print one line per reading instead of the dashboard")
	watchCmd.Flags().BoolVar(&watchMetrics, "metrics", false, "serve Prometheus metrics (overrides metrics.enabled)")
	watchCmd.Flags().StringVar(&watchMetricsAddr, "metrics-addr", "", "metrics listen address (implies --metrics)")
	watchCmd.Flags().StringVar(&watchLogFile, "log-file", "", "write logs here while the dashboard is open")
	rootCmd.AddCommand(watchCmd)
}
