// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/relabs-tech/doorwatch/internal/app"
	"github.com/relabs-tech/doorwatch/internal/config"
)

var (
	logLevel   = "info"
	configPath = config.DefaultPath
)

func setupLogger(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("failed to parse log level: %v", err)
	}
	logrus.SetLevel(lvl)
	logrus.SetFormatter(&logrus.TextFormatter{})
	if term.IsTerminal(int(os.Stderr.Fd())) {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.TimeOnly,
		})
	}
	return nil
}

func main() {
	if err := NewCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doorwatch",
		Short: "doorwatch reports whether a door is open using a magnetometer",
		Long: `doorwatch samples a 3-axis magnetometer mounted near a door, classifies the
door as open or closed relative to a calibrated baseline and publishes the
result to an MQTT dashboard. The dashboard can request recalibration and turn
monitoring on and off.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.InitGlobal(configPath); err != nil {
				return fmt.Errorf("failed to load config %s: %w", configPath, err)
			}
			level := config.Get().LogLevel
			if cmd.Flags().Changed("log-level") {
				level = logLevel
			}
			return setupLogger(level)
		},
	}

	globalFlags := cmd.PersistentFlags()
	globalFlags.StringVarP(&logLevel, "log-level", "l", logLevel, "log level (trace, debug, info, warn, error), overrides LOG_LEVEL")
	globalFlags.StringVarP(&configPath, "config", "c", configPath, "config file path")

	cmd.AddCommand(
		NewMonitorCommand(),
		NewWebCommand(),
		NewConsoleCommand(),
		NewProbeCommand(),
		NewActionCommand("calibrate", "Ask the monitor to recalibrate on its next iteration"),
		NewActionCommand("enable", "Turn monitoring on"),
		NewActionCommand("disable", "Turn monitoring off"),
	)
	return cmd
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func NewMonitorCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "monitor",
		Short: "Run the door monitor loop (needs I2C access)",
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()
			logrus.Info("starting doorwatch monitor")
			return app.RunMonitor(ctx)
		},
	}
}

func NewWebCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "web",
		Short: "Serve the published door state over HTTP and WebSocket",
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()
			return app.RunWeb(ctx)
		},
	}
}

func NewConsoleCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "console",
		Short: "Print the published door state and command pins",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()
			return app.RunConsole(ctx, cmd.OutOrStdout())
		},
	}
}

func NewProbeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Read identity, registers and one sample from the magnetometer",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.RunProbe(cmd.OutOrStdout())
		},
	}
}

func NewActionCommand(action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return app.RunCommand(action)
		},
	}
}
