package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"plantmon-sim/internal/config"
	"plantmon-sim/internal/logging"
)

var (
	configPath string
	schemaPath string

	// appConfig is loaded before any subcommand runs.
	appConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "plantmon-sim",
	Short: "Plant monitoring telemetry simulator",
	Long: "plantmon-sim publishes synthetic plant-monitoring readings to a NATS subject, " +
		"optionally injecting missed transmissions and wild values, and subscribes to them.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath, schemaPath)
		if err != nil {
			return err
		}
		logger, err := logging.NewWithOptions(os.Stderr, cfg.Log.Level, cfg.Log.Format)
		if err != nil {
			return err
		}
		appConfig = cfg
		cmd.SetContext(logging.NewContext(cmd.Context(), logger))
		return nil
	},
}

// Execute runs the root command until it returns or the process is interrupted.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to configuration YAML (built-in defaults when empty)")
	rootCmd.PersistentFlags().StringVar(&schemaPath, "schema", "", "Path to CUE schema file (built-in schema when empty)")

	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(subscribeCmd)
	rootCmd.AddCommand(scalarCmd)
	rootCmd.AddCommand(brokerCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(configCmd)
}
