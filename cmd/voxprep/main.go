package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/voxprep/voxprep/internal/bus"
	"github.com/voxprep/voxprep/internal/config"
	"github.com/voxprep/voxprep/internal/daemon"
	"github.com/voxprep/voxprep/internal/device"
	"github.com/voxprep/voxprep/internal/logging"
	"github.com/voxprep/voxprep/internal/notify"
	"github.com/voxprep/voxprep/internal/tui"
)

func main() {
	_ = rootCmd.Execute()
}

var rootCmd = &cobra.Command{
	Use:   "voxprep",
	Short: "Real-time interview copilot: capture, transcribe, suggest",
}

func init() {
	rootCmd.AddCommand(
		serveCmd(),
		startCmd(),
		stopCmd(),
		statusCmd(),
		devicesCmd(),
		selectCmd(),
		jobCmd(),
		quitCmd(),
		versionCmd(),
		configureCmd(),
	)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the capture daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				if errors.Is(err, config.ErrConfigNotFound) {
					fmt.Println("No configuration found. Run: voxprep configure")
				}
				return err
			}

			log := logging.New(cfg.General.LogLevel, cfg.General.LogPretty)
			notifier := buildNotifier(cfg, log)

			return daemon.New(notifier, log).Run()
		},
	}
}

func buildNotifier(cfg *config.Config, log zerolog.Logger) notify.Notifier {
	if !cfg.Notifications.Enabled {
		return notify.Nop{}
	}
	messages := cfg.Notifications.ResolveMessages()
	switch cfg.Notifications.Type {
	case "desktop":
		return notify.Desktop{Messages: messages}
	case "log":
		return notify.Log{Logger: log, Messages: messages}
	default:
		return notify.Nop{}
	}
}

func startCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start capturing the interview",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := bus.SendCommand(bus.CmdStart)
			if err != nil {
				return fmt.Errorf("failed to start capture: %w", err)
			}
			fmt.Print(resp)
			return nil
		},
	}
}

func stopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the current capture",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := bus.SendCommand(bus.CmdStop)
			if err != nil {
				return fmt.Errorf("failed to stop capture: %w", err)
			}
			fmt.Print(resp)
			return nil
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Get current pipeline status",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := bus.SendCommand(bus.CmdStatus)
			if err != nil {
				return fmt.Errorf("failed to get status: %w", err)
			}
			fmt.Print(resp)
			return nil
		},
	}
}

func devicesCmd() *cobra.Command {
	var local bool

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List available audio input devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			if local {
				return listDevicesLocally()
			}
			resp, err := bus.SendCommand(bus.CmdDevices)
			if err != nil {
				// No daemon; enumerate directly.
				return listDevicesLocally()
			}
			fmt.Print(resp)
			return nil
		},
	}

	cmd.Flags().BoolVar(&local, "local", false, "enumerate without the daemon")

	return cmd
}

func listDevicesLocally() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	log := logging.New("warn", true)
	platform := &device.PipeWire{Log: log}
	catalog := device.NewCatalog(platform, log)

	inputs, err := catalog.ListInputs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list devices: %w", err)
	}
	for _, d := range inputs {
		fmt.Printf("%s\t%s\n", d.ID, d.Label)
	}
	return nil
}

func selectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "select <device-id>",
		Short: "Switch capture to the given input device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := bus.SendLine(string(bus.CmdSelect) + args[0])
			if err != nil {
				return fmt.Errorf("failed to select device: %w", err)
			}
			fmt.Print(resp)
			return nil
		},
	}
}

func jobCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "job <type>",
		Short: "Set the interview job profile",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := bus.SendLine(string(bus.CmdJob) + strings.Join(args, " "))
			if err != nil {
				return fmt.Errorf("failed to set job type: %w", err)
			}
			fmt.Print(resp)
			return nil
		},
	}
}

func quitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "quit",
		Short: "Stop the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := bus.SendCommand(bus.CmdQuit)
			if err != nil {
				return fmt.Errorf("failed to stop daemon: %w", err)
			}
			fmt.Print(resp)
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Get protocol version",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := bus.SendCommand(bus.CmdVersion)
			if err != nil {
				return fmt.Errorf("failed to get version: %w", err)
			}
			fmt.Print(resp)
			return nil
		},
	}
}

func configureCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "configure",
		Short: "Interactive configuration setup",
		Long: `Interactive configuration wizard for voxprep.
This will guide you through setting up:
- Provider API keys (OpenAI, OpenRouter, Deepgram)
- Capture and transcription cadence
- The interview job profile
- Live recognition and notification preferences`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigure()
		},
	}
}

func runConfigure() error {
	cfg, err := config.Load()
	if err != nil && !errors.Is(err, config.ErrConfigNotFound) {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	result, err := tui.Run(cfg)
	if err != nil {
		return fmt.Errorf("configuration wizard error: %w", err)
	}

	if result.Cancelled {
		fmt.Println("Configuration cancelled.")
		return nil
	}

	if err := config.Save(result.Config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Println()
	fmt.Println("Configuration saved successfully!")
	fmt.Println()

	configPath, _ := config.GetConfigPath()
	fmt.Printf("Config file location: %s\n", configPath)
	fmt.Println("Start the daemon with: voxprep serve")

	return nil
}
