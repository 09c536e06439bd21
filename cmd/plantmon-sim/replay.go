package main

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"plantmon-sim/internal/logging"
	"plantmon-sim/internal/sim"
	"plantmon-sim/internal/transport"
)

var (
	replayInput     string
	replaySpeed     float64
	replayPrintOnly bool
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a recorded reading log",
	Long:  "replay feeds readings recorded with subscribe --log-file back to the broker or STDOUT.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		log := logging.FromContext(ctx)

		var writer sim.RecordWriter = sim.NewJSONStdoutWriter()
		if !replayPrintOnly {
			pub := transport.NewPublisher(appConfig.Transport("plantmon-replay-" + uuid.NewString()))
			if err := pub.Connect(ctx); err != nil {
				return err
			}
			defer pub.Close()
			writer = sim.NewPublishWriter(ctx, pub)
		}
		n, err := sim.ReplayLogFile(ctx, replayInput, writer, replaySpeed)
		log.Info("replay finished", "records", n, "input", replayInput)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	replayCmd.Flags().StringVar(&replayInput, "input", "", "Path to a reading log (JSONL)")
	replayCmd.Flags().Float64Var(&replaySpeed, "speed", 1.0, "Playback speed multiplier (0 sends without delay)")
	replayCmd.Flags().BoolVar(&replayPrintOnly, "print-only", false, "Print readings to STDOUT instead of publishing")
	_ = replayCmd.MarkFlagRequired("input")
}
