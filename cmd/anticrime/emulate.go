package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Ghoster04/AntCrime/internal/client"
	"github.com/Ghoster04/AntCrime/internal/emulator"
	"github.com/Ghoster04/AntCrime/internal/logging"
)

func emulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "emulate",
		Short: "Emulate a stolen handset reporting its location",
		Long: `Emulate a stolen handset. It connects to the relay socket and sends a
stolen_device_ping every interval while drifting around its start position.

Examples:
  # Ping every 10s
  anticrime emulate

  # Raise an SOS emergency once connected
  anticrime emulate --sos --imei 281572518459116
`,
		RunE: runEmulate,
	}

	cmd.Flags().Bool("sos", false, "Send one device_sos frame after the first ping")
	cmd.Flags().String("imei", "", "Override the handset IMEI")
	cmd.Flags().String("url", "", "Relay WebSocket URL")
	cmd.Flags().Duration("interval", 0, "Override the ping interval")
	return cmd
}

func runEmulate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ec := cfg.Emulator
	if v, _ := cmd.Flags().GetString("imei"); v != "" {
		ec.IMEI = v
	}
	if v, _ := cmd.Flags().GetDuration("interval"); v > 0 {
		ec.Interval = v
	}
	wsURL := cfg.API.WSURL
	if v, _ := cmd.Flags().GetString("url"); v != "" {
		wsURL = v
	}
	sos, _ := cmd.Flags().GetBool("sos")

	log, err := logging.New(cfg.Log.Level, cfg.Log.Format, cfg.Log.File, "anticrime-emulator")
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	emu := emulator.New(ec, emulator.Options{
		Dialer: client.NewWSDialer(wsURL, cfg.API.Token, log.Named("ws")),
		Policy: reconnectPolicy(cfg.Realtime),
		SOS:    sos,
		Logger: log,
	})
	log.Info("emulator started", zap.String("url", wsURL), zap.Duration("interval", ec.Interval), zap.Bool("sos", sos))
	return emu.Run(ctx)
}
