// Package config loads the YAML configuration shared by the console, relay
// and emulator commands.
package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Collection poll intervals used when the config does not override them.
const (
	DefaultPollInterval          = 30 * time.Second
	DefaultEmergencyPollInterval = 10 * time.Second
)

type Config struct {
	API      APIConfig      `yaml:"api"`
	Realtime RealtimeConfig `yaml:"realtime"`
	Cache    CacheConfig    `yaml:"cache"`
	Audio    AudioConfig    `yaml:"audio"`
	Log      LogConfig      `yaml:"log"`
	Relay    RelayConfig    `yaml:"relay"`
	Emulator EmulatorConfig `yaml:"emulator"`
}

type APIConfig struct {
	BaseURL    string        `yaml:"base_url"`
	WSURL      string        `yaml:"ws_url"`
	Token      string        `yaml:"token"`
	Timeout    time.Duration `yaml:"timeout"`
	Retries    int           `yaml:"retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`
}

type RealtimeConfig struct {
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	QueueSize      int           `yaml:"queue_size"`
	Backoff        BackoffConfig `yaml:"backoff"`
}

// BackoffConfig switches the reconnect policy from a constant delay to
// exponential backoff capped at Max.
type BackoffConfig struct {
	Enabled bool          `yaml:"enabled"`
	Max     time.Duration `yaml:"max"`
	Jitter  float64       `yaml:"jitter"`
}

type CacheConfig struct {
	Backend   string                   `yaml:"backend"` // "memory" or "redis"
	Redis     RedisConfig              `yaml:"redis"`
	Intervals map[string]time.Duration `yaml:"intervals"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type AudioConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Command      []string      `yaml:"command"`
	Volume       float64       `yaml:"volume"`
	BellInterval time.Duration `yaml:"bell_interval"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

type RelayConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	DBPath         string        `yaml:"db_path"`
	Token          string        `yaml:"token"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	Mock           bool          `yaml:"mock"`
	MockInterval   time.Duration `yaml:"mock_interval"`
	FramesPerSec   float64       `yaml:"frames_per_sec"`
	FrameBurst     int           `yaml:"frame_burst"`
	MQTT           MQTTConfig    `yaml:"mqtt"`
}

type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Topic    string `yaml:"topic"`
}

type EmulatorConfig struct {
	IMEI      string        `yaml:"imei"`
	Brand     string        `yaml:"brand"`
	Model     string        `yaml:"model"`
	OS        string        `yaml:"os"`
	AppVer    string        `yaml:"app_version"`
	Interval  time.Duration `yaml:"interval"`
	Latitude  float64       `yaml:"latitude"`
	Longitude float64       `yaml:"longitude"`
	Battery   int           `yaml:"battery"`
}

func defaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:    "http://127.0.0.1:8000",
			WSURL:      "ws://127.0.0.1:8000/ws",
			Timeout:    30 * time.Second,
			Retries:    3,
			RetryDelay: time.Second,
		},
		Realtime: RealtimeConfig{
			ReconnectDelay: 2 * time.Second,
			ConnectTimeout: 10 * time.Second,
			QueueSize:      64,
			Backoff: BackoffConfig{
				Max:    30 * time.Second,
				Jitter: 0.2,
			},
		},
		Cache: CacheConfig{
			Backend: "memory",
			Redis:   RedisConfig{Addr: "127.0.0.1:6379"},
			Intervals: map[string]time.Duration{
				"usuarios":        DefaultPollInterval,
				"dispositivos":    DefaultPollInterval,
				"dashboard-stats": DefaultPollInterval,
				"pings-roubados":  DefaultPollInterval,
				"emergencias":     DefaultEmergencyPollInterval,
			},
		},
		Audio: AudioConfig{
			Enabled:      true,
			Volume:       0.7,
			BellInterval: 1500 * time.Millisecond,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Relay: RelayConfig{
			Host:         "127.0.0.1",
			Port:         8000,
			DBPath:       "anticrime.db",
			MockInterval: 5 * time.Second,
			FramesPerSec: 5,
			FrameBurst:   10,
			MQTT: MQTTConfig{
				ClientID: "anticrime-relay",
				Topic:    "anticrime/devices/+/events",
			},
		},
		Emulator: EmulatorConfig{
			IMEI:      "356938035643809",
			Brand:     "Samsung",
			Model:     "Galaxy A12",
			OS:        "Android 12",
			AppVer:    "1.0.0",
			Interval:  10 * time.Second,
			Latitude:  -25.9692,
			Longitude: 32.5732,
			Battery:   85,
		},
	}
}

// Default returns a config populated with defaults only.
func Default() *Config {
	return defaultConfig()
}

// Load reads the YAML file at path on top of the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.fillZeroIntervals()

	return cfg, nil
}

// LoadOrDefault behaves like Load but returns the defaults when the file
// does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return defaultConfig(), nil
	}
	return cfg, err
}

// PollInterval returns the refetch interval for a cached collection.
func (c *Config) PollInterval(collection string) time.Duration {
	if d, ok := c.Cache.Intervals[collection]; ok && d > 0 {
		return d
	}
	return DefaultPollInterval
}

// A file may null out the intervals map or set zero durations; both fall
// back to the built-in values.
func (c *Config) fillZeroIntervals() {
	defaults := defaultConfig().Cache.Intervals
	if c.Cache.Intervals == nil {
		c.Cache.Intervals = defaults
		return
	}
	for k, v := range defaults {
		if c.Cache.Intervals[k] <= 0 {
			c.Cache.Intervals[k] = v
		}
	}
}
