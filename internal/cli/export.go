package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/rileyhilliard/sensord/internal/config"
	"github.com/rileyhilliard/sensord/internal/errors"
	"github.com/rileyhilliard/sensord/internal/export"
	"github.com/rileyhilliard/sensord/internal/logger"
	"github.com/rileyhilliard/sensord/internal/stream"
	"github.com/rileyhilliard/sensord/internal/ui"
	"github.com/rileyhilliard/sensord/internal/util"
)

// collectFlags are shared by export and stats.
type collectFlags struct {
	Samples  int
	Duration string
}

func addCollectFlags(cmd *cobra.Command, f *collectFlags, defaultSamples int, defaultDuration string) {
	cmd.Flags().IntVarP(&f.Samples, "samples", "n", defaultSamples, "stop after this many sensor readings (0 = no limit)")
	cmd.Flags().StringVarP(&f.Duration, "duration", "d", defaultDuration, "stop after this long (e.g., 30s, 5m)")
}

var (
	exportFlags  collectFlags
	exportFormat string
	exportOutput string
)

// exportCmd collects readings and prints one sensor's history
var exportCmd = &cobra.Command{
	Use:   "export <sensor-id>",
	Short: "Collect readings and export one sensor's history",
	Long: `Connect to the backend, collect readings until --samples or --duration is
reached, then print the sensor's long-term window and statistics.

Formats:
  json  structured document with timestamps, values and statistics
  yaml  the same document as YAML
  csv   timestamp,temperature,humidity rows

Examples:
  sensord export sensor_40
  sensord export sensor_41 --format csv --samples 500
  sensord export sensor_40 --duration 1m -o readings.json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return exportCommand(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), args[0])
	},
}

func exportCommand(ctx context.Context, stdout, stderr io.Writer, sensorID string) error {
	format, ok := export.ParseFormat(exportFormat)
	if !ok {
		return errors.New(errors.ErrExport,
			fmt.Sprintf("Unknown export format '%s'", exportFormat),
			"Supported formats: "+strings.Join(formatNames(), ", "))
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	duration, err := ParseDurationFlag("duration", exportFlags.Duration)
	if err != nil {
		return err
	}

	sensorID = strings.ToLower(sensorID)
	proc, err := collectWithSpinner(ctx, stderr, cfg, collectOptions{
		Sensor:   sensorID,
		Samples:  exportFlags.Samples,
		Duration: duration,
	}, "collecting "+sensorID)
	if err != nil {
		return err
	}

	out, ok := proc.Export(sensorID, format)
	if !ok {
		return errors.New(errors.ErrExport,
			fmt.Sprintf("No readings for %s", sensorID),
			knownSensorsHint(proc, sensorID))
	}

	return writeOutput(stdout, exportOutput, out+"\n")
}

// collectWithSpinner runs collect, animating progress on stderr when it is a
// terminal.
func collectWithSpinner(ctx context.Context, stderr io.Writer, cfg *config.Config, opts collectOptions, label string) (*stream.Processor, error) {
	log := logger.NewEnvLogger("[sensord]")

	var spin *ui.Spinner
	if isTerminal(stderr) {
		spin = ui.NewSpinner(stderr, label)
		opts.Progress = func(n int) {
			if opts.Samples > 0 {
				spin.SetLabel(fmt.Sprintf("%s %d/%d", label, n, opts.Samples))
			} else {
				spin.SetLabel(fmt.Sprintf("%s %d", label, n))
			}
		}
		// Connection logs would tear the spinner line.
		log = logger.Noop()
		spin.Start()
	}

	proc, n, err := collect(ctx, cfg, log, opts)
	if spin != nil {
		if err != nil {
			spin.Fail("collection failed")
		} else {
			spin.Success(fmt.Sprintf("collected %d %s", n, util.Pluralize(n, "sample", "samples")))
		}
	}
	return proc, err
}

func knownSensorsHint(proc *stream.Processor, want string) string {
	ids := proc.Sensors()
	if len(ids) == 0 {
		return "No sensor data arrived; try a longer --duration"
	}
	if similar := util.SuggestSimilar(want, ids, 2); len(similar) > 0 {
		return fmt.Sprintf("Did you mean %s? Sensors seen: %s", similar[0], util.JoinOrNone(ids))
	}
	return "Sensors seen: " + util.JoinOrNone(ids)
}

func formatNames() []string {
	formats := export.Formats()
	names := make([]string, len(formats))
	for i, f := range formats {
		names[i] = string(f)
	}
	return names
}

// writeOutput writes to path, or to w when path is "" or "-".
func writeOutput(w io.Writer, path, content string) error {
	if path == "" || path == "-" {
		_, err := io.WriteString(w, content)
		return err
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return errors.WrapWithCode(err, errors.ErrExport,
			"Cannot write "+path,
			"Check the directory exists and is writable")
	}
	return nil
}

// isTerminal reports whether w is a terminal file descriptor.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func init() {
	addCollectFlags(exportCmd, &exportFlags, 100, "")
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", string(export.FormatJSON), "output format: json, csv, yaml")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "write to file instead of stdout")
	rootCmd.AddCommand(exportCmd)
}
