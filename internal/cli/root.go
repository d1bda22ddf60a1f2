package cli

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rileyhilliard/sensord/internal/errors"
	"github.com/rileyhilliard/sensord/internal/logger"
	"github.com/rileyhilliard/sensord/internal/ui"
)

// Global flags
var (
	cfgFile     string
	socketFlag  string
	verboseFlag bool
	noColorFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "sensord",
	Short: "Client for sensor backends speaking the framed Unix socket protocol",
	Long: `sensord connects to a sensor backend over a Unix domain socket, keeps a
rolling window of readings per sensor, and flags anomalous values.

Use 'sensord watch' for the live dashboard, 'sensord export' to dump a sensor's
history, 'sensord stats' for a per-sensor summary, or 'sensord simulate' to run a
local backend for development.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColorFlag || os.Getenv("NO_COLOR") != "" {
			ui.DisableColors()
		}
		if verboseFlag {
			os.Setenv(logger.DebugEnv, "1")
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./sensord.yaml or ~/.config/sensord/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&socketFlag, "socket", "", "backend socket path (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&noColorFlag, "no-color", false, "disable colored output")
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		printError(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// printError renders structured errors as-is and wraps anything else so the
// output format is consistent.
func printError(w io.Writer, err error) {
	if isUnknownCommandError(err) {
		suggestion := "Run 'sensord --help' to see available commands"
		if name := extractUnknownCommand(err); name != "" {
			suggestion = fmt.Sprintf("'%s' is not a sensord command. %s", name, suggestion)
		}
		err = errors.New(errors.ErrConfig, err.Error(), suggestion)
	}
	var structured *errors.Error
	if !stderrors.As(err, &structured) {
		structured = &errors.Error{Message: err.Error()}
	}
	fmt.Fprint(w, ui.ErrorStyle().Render(strings.TrimRight(structured.Error(), "\n"))+"\n")
}

// exitCode maps error codes to process exit statuses.
func exitCode(err error) int {
	switch {
	case errors.IsCode(err, errors.ErrConfig):
		return 2
	case errors.IsCode(err, errors.ErrConnection):
		return 3
	default:
		return 1
	}
}

var unknownCommandRe = regexp.MustCompile(`unknown command "([^"]+)"`)

// isUnknownCommandError reports cobra's unknown command and flag errors.
func isUnknownCommandError(err error) bool {
	msg := err.Error()
	return strings.HasPrefix(msg, "unknown command") ||
		strings.HasPrefix(msg, "unknown flag") ||
		strings.HasPrefix(msg, "unknown shorthand flag")
}

// extractUnknownCommand returns the offending name from an unknown command
// error, or "".
func extractUnknownCommand(err error) string {
	if m := unknownCommandRe.FindStringSubmatch(err.Error()); m != nil {
		return m[1]
	}
	return ""
}
