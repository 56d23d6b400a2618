package main

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Ghoster04/AntCrime/internal/app"
	"github.com/Ghoster04/AntCrime/internal/audio"
	"github.com/Ghoster04/AntCrime/internal/cache"
	"github.com/Ghoster04/AntCrime/internal/client"
	"github.com/Ghoster04/AntCrime/internal/config"
	"github.com/Ghoster04/AntCrime/internal/logging"
	"github.com/Ghoster04/AntCrime/internal/realtime"
)

func consoleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "console",
		Short: "Run the operator console",
		Long: `Run the operator console.

Examples:
  # Against a local relay
  anticrime relay --mock &
  anticrime console

  # Against the production backend
  anticrime console --api https://api.example --ws wss://api.example/ws --token $TOKEN
`,
		RunE: runConsole,
	}

	cmd.Flags().String("api", "", "REST base URL")
	cmd.Flags().String("ws", "", "WebSocket URL")
	cmd.Flags().String("token", "", "Bearer token for the backend")
	cmd.Flags().Bool("mute", false, "Start with alerts muted")
	return cmd
}

func runConsole(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if v, _ := cmd.Flags().GetString("api"); v != "" {
		cfg.API.BaseURL = v
	}
	if v, _ := cmd.Flags().GetString("ws"); v != "" {
		cfg.API.WSURL = v
	}
	if v, _ := cmd.Flags().GetString("token"); v != "" {
		cfg.API.Token = v
	}

	// The terminal belongs to the UI, so the console always logs to a file.
	logFile := cfg.Log.File
	if logFile == "" {
		logFile = logging.DefaultFile("console")
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Format, logFile, "anticrime-console")
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	api := client.NewAPI(cfg.API, log.Named("api"))
	data := cache.New(cacheStore(ctx, cfg.Cache, log), log.Named("cache"))
	registerCollections(data, api, cfg)

	bus := app.NewBus(256)
	data.OnRefresh(bus.OnRefresh)

	session := realtime.NewSession(realtime.Options{
		Dialer:         client.NewWSDialer(cfg.API.WSURL, cfg.API.Token, log.Named("ws")),
		Policy:         reconnectPolicy(cfg.Realtime),
		ConnectTimeout: cfg.Realtime.ConnectTimeout,
		QueueSize:      cfg.Realtime.QueueSize,
		Invalidator:    data,
		Player:         audio.NewSiren(cfg.Audio, log.Named("siren")),
		Responder:      client.Responder{API: api, Log: log.Named("responder")},
		Observer:       bus.Observer(),
		Logger:         log.Named("realtime"),
	})
	if muted, _ := cmd.Flags().GetBool("mute"); muted {
		session.SetMuted(true)
	}

	go data.Run(ctx)
	if err := session.Start(ctx); err != nil {
		return err
	}
	// Release the bus before closing the session so no callback blocks on
	// a UI that has already exited.
	defer session.Close()
	defer bus.Close()

	log.Info("console started", zap.String("api", cfg.API.BaseURL), zap.String("ws", cfg.API.WSURL))
	p := tea.NewProgram(app.New(session, data, bus), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// cacheStore returns the Redis store when configured and reachable, and the
// in-process store otherwise.
func cacheStore(ctx context.Context, cfg config.CacheConfig, log *zap.Logger) cache.Store {
	if cfg.Backend != "redis" {
		return cache.NewMemoryStore()
	}
	st := cache.NewRedisStore(cache.NewRedisClient(cfg.Redis))
	if err := st.Ping(ctx); err != nil {
		log.Warn("redis unavailable, caching in memory", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		return cache.NewMemoryStore()
	}
	return st
}

func registerCollections(c *cache.Cache, api *client.API, cfg *config.Config) {
	interval := func(key realtime.Collection) time.Duration { return cfg.PollInterval(string(key)) }
	page := client.DefaultPage

	c.Register(realtime.CollectionUsers, func(ctx context.Context) (any, error) {
		return api.Usuarios(ctx, page)
	}, interval(realtime.CollectionUsers))
	c.Register(realtime.CollectionDevices, func(ctx context.Context) (any, error) {
		return api.Dispositivos(ctx, page)
	}, interval(realtime.CollectionDevices))
	c.Register(realtime.CollectionEmergencies, func(ctx context.Context) (any, error) {
		return api.Emergencias(ctx, page)
	}, interval(realtime.CollectionEmergencies))
	c.Register(realtime.CollectionStolenPings, func(ctx context.Context) (any, error) {
		return api.PingsRoubados(ctx, page)
	}, interval(realtime.CollectionStolenPings))
	c.Register(realtime.CollectionDashboardStats, func(ctx context.Context) (any, error) {
		return api.Stats(ctx)
	}, interval(realtime.CollectionDashboardStats))
}
