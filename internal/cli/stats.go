package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rileyhilliard/sensord/internal/errors"
	"github.com/rileyhilliard/sensord/internal/export"
	"github.com/rileyhilliard/sensord/internal/stream"
	"github.com/rileyhilliard/sensord/internal/ui"
)

var (
	statsFlags  collectFlags
	statsFormat string
)

// statsCmd collects readings and prints a per-sensor summary
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Collect readings and summarise every sensor",
	Long: `Connect to the backend, collect readings until --samples batches or
--duration is reached, then print mean, deviation and trend per sensor.

Examples:
  sensord stats --duration 30s
  sensord stats --samples 200 --format csv`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return statsCommand(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

func statsCommand(ctx context.Context, stdout, stderr io.Writer) error {
	var format export.Format
	if statsFormat != "table" {
		f, ok := export.ParseFormat(statsFormat)
		if !ok {
			return errors.New(errors.ErrExport,
				fmt.Sprintf("Unknown stats format '%s'", statsFormat),
				"Supported formats: table, "+strings.Join(formatNames(), ", "))
		}
		format = f
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	duration, err := ParseDurationFlag("duration", statsFlags.Duration)
	if err != nil {
		return err
	}

	proc, err := collectWithSpinner(ctx, stderr, cfg, collectOptions{
		Samples:  statsFlags.Samples,
		Duration: duration,
	}, "collecting readings")
	if err != nil {
		return err
	}

	if format == "" {
		_, err := fmt.Fprintln(stdout, ui.RenderSensorTable(sensorRows(proc)))
		return err
	}
	out, ok := export.RenderSummaries(proc.Summaries(), format)
	if !ok {
		return errors.New(errors.ErrExport, "Failed to render summary", "")
	}
	_, err = fmt.Fprintln(stdout, out)
	return err
}

// sensorRows converts processor statistics into table rows, sorted by id.
func sensorRows(proc *stream.Processor) []ui.SensorRow {
	all := proc.CalculateStatistics()
	rows := make([]ui.SensorRow, 0, len(all))
	for _, id := range proc.Sensors() {
		s, ok := all[id]
		if !ok {
			continue
		}
		st := s.Statistics
		rows = append(rows, ui.SensorRow{
			ID:        id,
			Name:      s.Name,
			Samples:   st.Count,
			TempMean:  st.Temperature.Mean,
			TempStd:   st.Temperature.Std,
			TempTrend: st.Temperature.Trend,
			HumMean:   st.Humidity.Mean,
			HumStd:    st.Humidity.Std,
			HumTrend:  st.Humidity.Trend,
			HasTrend:  st.HasTrend,
		})
	}
	return rows
}

func init() {
	addCollectFlags(statsCmd, &statsFlags, 0, "10s")
	statsCmd.Flags().StringVarP(&statsFormat, "format", "f", "table", "output format: table, json, csv, yaml")
	rootCmd.AddCommand(statsCmd)
}
