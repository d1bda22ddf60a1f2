package cli

import (
	"context"
	"fmt"
	"io"
	"net"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rileyhilliard/sensord/internal/errors"
	"github.com/rileyhilliard/sensord/internal/logger"
	tstesting "github.com/rileyhilliard/sensord/internal/transport/testing"
	"github.com/rileyhilliard/sensord/internal/ui"
	"github.com/rileyhilliard/sensord/internal/wire"
)

var (
	simulateSensors  int
	simulateInterval string
	simulateSeed     int64
	simulateStatus   string
)

// simulateCmd runs a development backend
var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Serve simulated sensors on a Unix socket",
	Long: `Start a development backend that listens on the configured socket and
broadcasts SENSOR_DATA frames for N simulated sensors. Sensors start at
address 0x40 and drift with a bounded random walk plus a slow periodic term.

Frames sent by clients are logged. Stop with Ctrl+C.

Examples:
  sensord simulate
  sensord simulate --sensors 8 --interval 250ms
  sensord simulate --socket /tmp/dev.sock --status "simulator ready"`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return simulateCommand(ctx, cmd.OutOrStdout())
	},
}

func simulateCommand(ctx context.Context, stdout io.Writer) error {
	interval, err := ParseDurationFlag("interval", simulateInterval)
	if err != nil {
		return err
	}
	if interval < 10*time.Millisecond {
		return errors.New(errors.ErrConfig,
			"Interval too short",
			"Minimum interval is 10ms")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log := logger.NewEnvLogger("[simulate]")
	backend, err := tstesting.NewBackendWithLogger(cfg.Socket.Path, log)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConnection,
			"Cannot listen on "+cfg.Socket.Path,
			"Remove a stale socket file or pick another path with --socket")
	}
	defer backend.Close()

	if simulateStatus != "" {
		status := wire.EncodeFrame(wire.MsgStatus, wire.EncodeStatus(simulateStatus))
		backend.OnConnect = func(conn net.Conn) {
			if _, err := conn.Write(status); err != nil {
				log.Warn("status greeting failed: %v", err)
			}
		}
	}

	sim := tstesting.NewSimulator(simulateSensors, simulateSeed)
	fmt.Fprintf(stdout, "%s simulating %d sensors on %s every %s\n",
		ui.SuccessStyle().Render(ui.SymbolConnected), simulateSensors, cfg.Socket.Path, interval)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sim.Run(ctx, backend, interval) })
	g.Go(func() error {
		<-ctx.Done()
		return backend.Close()
	})
	return g.Wait()
}

func init() {
	simulateCmd.Flags().IntVar(&simulateSensors, "sensors", 3, "number of simulated sensors")
	simulateCmd.Flags().StringVar(&simulateInterval, "interval", "1s", "time between SENSOR_DATA frames")
	simulateCmd.Flags().Int64Var(&simulateSeed, "seed", time.Now().UnixNano(), "random seed for reproducible runs")
	simulateCmd.Flags().StringVar(&simulateStatus, "status", "", "STATUS text sent to each client on connect")
	rootCmd.AddCommand(simulateCmd)
}
