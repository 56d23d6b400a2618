package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
api:
  base_url: "https://api.example.org"
  ws_url: "wss://api.example.org/ws"
  token: "secret"
realtime:
  reconnect_delay: 3s
  backoff:
    enabled: true
    max: 1m
cache:
  backend: redis
  redis:
    addr: "redis:6379"
    db: 2
  intervals:
    emergencias: 5s
audio:
  command: ["paplay", "siren.wav"]
relay:
  port: 9090
  mqtt:
    broker: "tcp://broker:1883"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.org", cfg.API.BaseURL)
	assert.Equal(t, "wss://api.example.org/ws", cfg.API.WSURL)
	assert.Equal(t, "secret", cfg.API.Token)
	assert.Equal(t, 3*time.Second, cfg.Realtime.ReconnectDelay)
	assert.True(t, cfg.Realtime.Backoff.Enabled)
	assert.Equal(t, time.Minute, cfg.Realtime.Backoff.Max)
	assert.Equal(t, "redis", cfg.Cache.Backend)
	assert.Equal(t, "redis:6379", cfg.Cache.Redis.Addr)
	assert.Equal(t, 2, cfg.Cache.Redis.DB)
	assert.Equal(t, []string{"paplay", "siren.wav"}, cfg.Audio.Command)
	assert.Equal(t, 9090, cfg.Relay.Port)
	assert.Equal(t, "tcp://broker:1883", cfg.Relay.MQTT.Broker)

	// Unset fields keep their defaults.
	assert.Equal(t, 10*time.Second, cfg.Realtime.ConnectTimeout)
	assert.Equal(t, 3, cfg.API.Retries)
	assert.InDelta(t, 0.7, cfg.Audio.Volume, 1e-9)
	assert.Equal(t, "anticrime/devices/+/events", cfg.Relay.MQTT.Topic)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	assert.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeConfig(t, "api: [unclosed")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadOrDefaultMissingFile(t *testing.T) {
	cfg, err := LoadOrDefault("/nonexistent/path/config.yaml")
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, cfg.Realtime.ReconnectDelay)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, 8000, cfg.Relay.Port)
	assert.Equal(t, 10*time.Second, cfg.Emulator.Interval)
}

func TestPollInterval(t *testing.T) {
	tests := []struct {
		collection string
		want       time.Duration
	}{
		{"usuarios", 30 * time.Second},
		{"dispositivos", 30 * time.Second},
		{"dashboard-stats", 30 * time.Second},
		{"pings-roubados", 30 * time.Second},
		{"emergencias", 10 * time.Second},
		{"unknown", DefaultPollInterval},
	}

	cfg := Default()
	for _, tt := range tests {
		t.Run(tt.collection, func(t *testing.T) {
			assert.Equal(t, tt.want, cfg.PollInterval(tt.collection))
		})
	}
}

func TestPartialIntervalsKeepDefaults(t *testing.T) {
	path := writeConfig(t, `
cache:
  intervals:
    usuarios: 1m
    emergencias: 0s
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, time.Minute, cfg.PollInterval("usuarios"))
	assert.Equal(t, DefaultEmergencyPollInterval, cfg.PollInterval("emergencias"))
	assert.Equal(t, DefaultPollInterval, cfg.PollInterval("dispositivos"))
}

func TestNullIntervals(t *testing.T) {
	path := writeConfig(t, `
cache:
  intervals: ~
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultEmergencyPollInterval, cfg.PollInterval("emergencias"))
}
