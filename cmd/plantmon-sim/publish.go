package main

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"plantmon-sim/internal/admin"
	"plantmon-sim/internal/logging"
	"plantmon-sim/internal/sim"
	"plantmon-sim/internal/transport"
)

var (
	pubJSON   bool
	pubPaused bool
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish simulated plant readings",
	Long: "publish generates a reading every interval, passes it through the fault injector " +
		"and publishes it to the broker. The admin server controls baselines, interval and faults.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		log := logging.FromContext(ctx)
		cfg := appConfig

		name := cfg.Producer.ClientName
		if name == "" {
			name = "plantmon-publisher-" + uuid.NewString()
		}
		var producer *sim.Producer
		tcfg := cfg.Transport(name)
		tcfg.OnConnectionLost = func(err error) { producer.ConnectionLost(err) }
		pub := transport.NewPublisher(tcfg)
		producer, err := sim.NewProducer(cfg.ProducerSettings(), pub, newPublisherStatus(ctx, pubJSON))
		if err != nil {
			return err
		}

		stopAdmin := startAdmin(ctx, cfg.Admin.ProducerAddress, producer, nil, pub)
		defer stopAdmin()

		if !pubPaused {
			if err := producer.Start(ctx); err != nil {
				if cfg.Admin.ProducerAddress == "" {
					return err
				}
				log.Warn("producer not started, use the admin server to retry", "err", err)
			}
		}

		<-ctx.Done()
		producer.Stop()
		log.Info("publisher stopped", "published", producer.Stats().Published)
		return nil
	},
}

// startAdmin serves the admin API on addr and returns its shutdown func. An
// empty addr disables the server.
func startAdmin(ctx context.Context, addr string, p admin.ProducerControl, h admin.HistorySource, b admin.BrokerStatus) func() {
	if addr == "" {
		return func() {}
	}
	srv := admin.NewServer(ctx, p, h, b)
	srv.Start(addr)
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Stop(shutdownCtx); err != nil {
			logging.FromContext(ctx).Error("admin shutdown", "err", err)
		}
	}
}

func init() {
	publishCmd.Flags().BoolVar(&pubJSON, "json", false, "Also print status events to STDOUT as JSON lines")
	publishCmd.Flags().BoolVar(&pubPaused, "paused", false, "Wait for POST /start before publishing")
}
