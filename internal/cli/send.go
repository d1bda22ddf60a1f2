package cli

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rileyhilliard/sensord/internal/errors"
	"github.com/rileyhilliard/sensord/internal/logger"
	"github.com/rileyhilliard/sensord/internal/transport"
	"github.com/rileyhilliard/sensord/internal/ui"
	"github.com/rileyhilliard/sensord/internal/wire"
)

var (
	sendType string
	sendHex  bool
)

// sendCmd writes one frame to the backend
var sendCmd = &cobra.Command{
	Use:   "send [payload]",
	Short: "Send one frame to the backend",
	Long: `Connect to the backend, send a single frame, and disconnect.

The payload is sent as UTF-8 text unless --hex is given.

Examples:
  sensord send --type control reset
  sensord send --type status "client ready"
  sensord send --type 3 --hex 0102ff`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		payload := ""
		if len(args) == 1 {
			payload = args[0]
		}
		return sendCommand(cmd.Context(), cmd.OutOrStdout(), payload)
	},
}

func sendCommand(ctx context.Context, stdout io.Writer, arg string) error {
	t, err := ParseMessageType(sendType)
	if err != nil {
		return err
	}
	payload, err := buildPayload(t, arg, sendHex)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	client := transport.New(cfg.Socket.Path, clientOptions(cfg, logger.NewEnvLogger("[sensord]"), nil)...)
	defer client.Close()

	if err := client.Connect(ctx); err != nil {
		return err
	}
	if err := client.Send(t, payload); err != nil {
		return err
	}

	fmt.Fprintf(stdout, "%s sent %s frame (%d bytes) to %s\n",
		ui.SuccessStyle().Render(ui.SymbolSuccess), t, len(payload), cfg.Socket.Path)
	return nil
}

// buildPayload turns the command argument into frame bytes.
func buildPayload(t wire.MessageType, arg string, isHex bool) ([]byte, error) {
	if isHex {
		b, err := hex.DecodeString(strings.TrimPrefix(strings.ReplaceAll(arg, " ", ""), "0x"))
		if err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				"Payload is not valid hex",
				"Use pairs of hex digits, e.g. 0102ff")
		}
		return b, nil
	}
	if t == wire.MsgStatus {
		return wire.EncodeStatus(arg), nil
	}
	return []byte(arg), nil
}

func init() {
	sendCmd.Flags().StringVarP(&sendType, "type", "t", "control", "message type: sensor_data, sensor_list, control, status, or a number")
	sendCmd.Flags().BoolVar(&sendHex, "hex", false, "payload argument is hex-encoded bytes")
	rootCmd.AddCommand(sendCmd)
}
