package main

import (
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/spf13/cobra"

	"plantmon-sim/internal/logging"
)

var (
	brokerHost string
	brokerPort int
)

var brokerCmd = &cobra.Command{
	Use:   "broker",
	Short: "Run an embedded NATS server for local runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		log := logging.FromContext(ctx)

		srv, err := newBroker(brokerHost, brokerPort)
		if err != nil {
			return err
		}
		go srv.Start()
		if !srv.ReadyForConnections(10 * time.Second) {
			srv.Shutdown()
			return fmt.Errorf("broker not ready on %s:%d", brokerHost, brokerPort)
		}
		log.Info("broker listening", "url", srv.ClientURL())

		<-ctx.Done()
		srv.Shutdown()
		srv.WaitForShutdown()
		log.Info("broker stopped")
		return nil
	},
}

// newBroker configures a standalone server without signal handling. A port
// of -1 picks a free one.
func newBroker(host string, port int) (*server.Server, error) {
	srv, err := server.NewServer(&server.Options{
		ServerName: "plantmon-broker",
		Host:       host,
		Port:       port,
		NoLog:      true,
		NoSigs:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("create broker: %w", err)
	}
	return srv, nil
}

func init() {
	brokerCmd.Flags().StringVar(&brokerHost, "host", "127.0.0.1", "Listen host")
	brokerCmd.Flags().IntVar(&brokerPort, "port", server.DEFAULT_PORT, "Listen port")
}
