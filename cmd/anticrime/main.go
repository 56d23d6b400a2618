package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Ghoster04/AntCrime/internal/config"
	"github.com/Ghoster04/AntCrime/internal/realtime"
)

var rootCmd = &cobra.Command{
	Use:   "anticrime",
	Short: "AntiCrime - emergency operator console",
	Long: `AntiCrime watches the emergency backend over a live socket, raises a
full-screen alert with a siren for every new emergency or located stolen
device, and keeps the operator dashboard current.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", "anticrime.yaml", "Path to config file")
	rootCmd.PersistentFlags().String("log-level", "", "Override log level (debug, info, warn, error)")

	rootCmd.AddCommand(consoleCmd(), relayCmd(), emulateCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the --config file, falling back to defaults when it does
// not exist, and applies the global flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", path, err)
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Log.Level = level
	}
	return cfg, nil
}

func reconnectPolicy(cfg config.RealtimeConfig) realtime.DelayPolicy {
	if cfg.Backoff.Enabled {
		return realtime.ExponentialBackoff{
			Base:   cfg.ReconnectDelay,
			Max:    cfg.Backoff.Max,
			Jitter: cfg.Backoff.Jitter,
		}
	}
	return realtime.ConstantDelay(cfg.ReconnectDelay)
}
