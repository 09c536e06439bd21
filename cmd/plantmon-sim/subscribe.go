package main

import (
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"plantmon-sim/internal/logging"
	"plantmon-sim/internal/sim"
	"plantmon-sim/internal/telemetry"
	"plantmon-sim/internal/transport"
)

var (
	subJSON    bool
	subLogFile string
)

var subscribeCmd = &cobra.Command{
	Use:   "subscribe",
	Short: "Receive and display plant readings",
	Long: "subscribe decodes readings from the broker and keeps the most recent ones. " +
		"It draws a terminal UI when STDOUT is a terminal and prints JSON lines otherwise.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := appConfig

		tui := useTUI(subJSON, os.Stdout)
		if tui {
			ctx = tuiQuietContext(ctx)
		}

		name := cfg.Consumer.ClientName
		if name == "" {
			name = "plantmon-subscriber-" + uuid.NewString()
		}
		var consumer *sim.Consumer
		snapshot := func() []telemetry.Record {
			if consumer == nil {
				return nil
			}
			return consumer.History()
		}
		out, err := newSubscriberSinks(ctx, tui, subLogFile, snapshot)
		if err != nil {
			return err
		}
		defer out.close()

		tcfg := cfg.Transport(name)
		tcfg.OnConnectionLost = func(err error) { consumer.ConnectionLost(err) }
		sub := transport.NewSubscriber(tcfg)
		consumer = sim.NewConsumer(sub, cfg.Consumer.HistorySize, out.records, out.status)

		stopAdmin := startAdmin(ctx, cfg.Admin.ConsumerAddress, nil, consumer, sub)
		defer stopAdmin()

		if err := consumer.Start(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		consumer.Stop()
		st := consumer.Stats()
		logging.FromContext(ctx).Info("subscriber stopped", "received", st.Received, "decode_errors", st.DecodeErrors)
		return nil
	},
}

func init() {
	subscribeCmd.Flags().BoolVar(&subJSON, "json", false, "Print records as JSON lines even on a terminal")
	subscribeCmd.Flags().StringVar(&subLogFile, "log-file", "", "Also record received readings (JSONL) and status events (<file>.status)")
}
