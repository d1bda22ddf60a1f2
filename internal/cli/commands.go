package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rileyhilliard/sensord/internal/config"
	"github.com/rileyhilliard/sensord/internal/errors"
	"github.com/rileyhilliard/sensord/internal/ui"
)

var (
	configInitPath   string
	configInitForce  bool
	configInitGlobal bool
)

// configCmd groups config file helpers
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Create or inspect the sensord config file",
	Long: `Config is read from --config, ./sensord.yaml, or
~/.config/sensord/config.yaml, in that order. Any key can be overridden with a
SENSORD_ environment variable, for example SENSORD_SOCKET_PATH or
SENSORD_HISTORY_SIZE.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the default settings",
	Long: `Write a commented config file holding the default settings.

Examples:
  sensord config init
  sensord config init --global
  sensord config init --path ./dev.yaml --force`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := configInitTarget()
		if err != nil {
			return err
		}
		if err := config.WriteDefault(path, configInitForce); err != nil {
			return err
		}
		cmd.Printf("%s Wrote %s\n", ui.SuccessStyle().Render(ui.SymbolSuccess), path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective config",
	Long: `Print the config sensord would run with after applying the config file,
environment overrides and --socket.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := config.LoadOrDefault(cfgFile)
		if err != nil {
			return err
		}
		if socketFlag != "" {
			cfg.Socket.Path = config.ExpandTilde(config.Expand(socketFlag))
		}
		out, err := config.Marshal(cfg)
		if err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig, "Failed to render config", "")
		}
		source := "built-in defaults"
		if path != "" {
			source = path
		}
		cmd.Println(ui.MutedStyle().Render("# source: " + source))
		cmd.Print(string(out))
		return nil
	},
}

func configInitTarget() (string, error) {
	switch {
	case configInitGlobal && configInitPath != "":
		return "", errors.New(errors.ErrConfig,
			"--global and --path cannot be used together",
			"Pick one location for the config file")
	case configInitGlobal:
		path := config.GlobalConfigPath()
		if path == "" {
			return "", errors.New(errors.ErrConfig,
				"Cannot determine your home directory",
				"Use --path to choose a location")
		}
		return path, nil
	case configInitPath != "":
		return config.ExpandTilde(configInitPath), nil
	default:
		return config.ConfigFileName, nil
	}
}

// completionCmd generates shell completion scripts
var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `Generate shell completion scripts for sensord.

Examples:
  # Bash
  sensord completion bash > /etc/bash_completion.d/sensord

  # Zsh
  sensord completion zsh > "${fpath[1]}/_sensord"

  # Fish
  sensord completion fish > ~/.config/fish/completions/sensord.fish`,
	ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletion(out)
		case "zsh":
			return rootCmd.GenZshCompletion(out)
		case "fish":
			return rootCmd.GenFishCompletion(out, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletion(out)
		default:
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("Unknown shell: %s", args[0]),
				"Supported shells: bash, zsh, fish, powershell")
		}
	},
}

func init() {
	configInitCmd.Flags().StringVar(&configInitPath, "path", "", "where to write the file (default ./sensord.yaml)")
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite an existing file")
	configInitCmd.Flags().BoolVar(&configInitGlobal, "global", false, "write ~/.config/sensord/config.yaml")

	configCmd.AddCommand(configInitCmd, configShowCmd)
	rootCmd.AddCommand(configCmd, completionCmd)
}
