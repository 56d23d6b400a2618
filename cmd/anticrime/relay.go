package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Ghoster04/AntCrime/internal/logging"
	"github.com/Ghoster04/AntCrime/internal/mock"
	"github.com/Ghoster04/AntCrime/internal/relay"
	"github.com/Ghoster04/AntCrime/internal/store"
)

func relayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Run the development relay server",
		Long: `Run the development relay: a WebSocket hub that turns device frames
into console notifications, plus the REST collections the console reads.

Examples:
  # Simulated traffic, no devices needed
  anticrime relay --mock

  # Also ingest frames published to an MQTT broker
  anticrime relay --mqtt tcp://127.0.0.1:1883
`,
		RunE: runRelay,
	}

	cmd.Flags().Int("port", 0, "Override listen port")
	cmd.Flags().String("db", "", "Override SQLite database path")
	cmd.Flags().Bool("mock", false, "Generate simulated device traffic")
	cmd.Flags().String("mqtt", "", "MQTT broker URL to ingest device frames from")
	return cmd
}

func runRelay(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	rc := cfg.Relay
	if v, _ := cmd.Flags().GetInt("port"); v > 0 {
		rc.Port = v
	}
	if v, _ := cmd.Flags().GetString("db"); v != "" {
		rc.DBPath = v
	}
	if v, _ := cmd.Flags().GetBool("mock"); v {
		rc.Mock = true
	}
	if v, _ := cmd.Flags().GetString("mqtt"); v != "" {
		rc.MQTT.Broker = v
	}

	log, err := logging.New(cfg.Log.Level, cfg.Log.Format, cfg.Log.File, "anticrime-relay")
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, rc.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	hub := relay.NewHub(log.Named("hub"))
	r := relay.New(st, hub, log.Named("relay"))
	srv := relay.NewServer(r, relay.ServerOptions{
		Token:          rc.Token,
		AllowedOrigins: rc.AllowedOrigins,
		FramesPerSec:   rc.FramesPerSec,
		FrameBurst:     rc.FrameBurst,
	})

	if rc.MQTT.Broker != "" {
		m, err := relay.NewMQTTIngest(rc.MQTT, r, log.Named("mqtt"))
		if err != nil {
			return err
		}
		defer m.Close()
		log.Info("ingesting mqtt frames", zap.String("broker", rc.MQTT.Broker), zap.String("topic", rc.MQTT.Topic))
	}

	if rc.Mock {
		log.Info("starting in mock mode", zap.Duration("interval", rc.MockInterval))
		mock.NewGenerator(r, rc.MockInterval, log.Named("mock")).Start(ctx)
	}

	addr := net.JoinHostPort(rc.Host, strconv.Itoa(rc.Port))
	if err := relay.ListenAndServe(ctx, addr, srv.Handler(), hub, log); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	log.Info("relay stopped")
	return nil
}

// Ensure the relay can feed both ingestion paths.
var (
	_ mock.Target    = (*relay.Relay)(nil)
	_ relay.Ingester = (*relay.Relay)(nil)
)
