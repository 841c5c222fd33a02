package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	EnvConfigPath = "LAMPD_CONFIG"
	EnvBrokerHost = "LAMPD_MQTT_BROKER"
	EnvBrokerPort = "LAMPD_MQTT_PORT"
	EnvTopic      = "LAMPD_MQTT_TOPIC"
	EnvStoreURL   = "LAMPD_STORE_URL"
	EnvListenAddr = "LAMPD_LISTEN_ADDR"
	EnvLogLevel   = "LAMPD_LOG_LEVEL"
)

// Config holds lampd runtime configuration: feed broker, persistence
// service, boundary API listener, and gateway timeout.
type Config struct {
	BrokerHost string `toml:"broker_host"`
	BrokerPort int    `toml:"broker_port"`
	Topic      string `toml:"topic"`

	StoreURL          string `toml:"store_url"`
	RequestTimeoutSec int    `toml:"request_timeout_sec"`

	ListenAddr  string   `toml:"listen_addr"`
	CorsOrigins []string `toml:"cors_origins"`

	LogLevel string `toml:"log_level"`
}

func Default() Config {
	return Config{
		BrokerPort:        1883,
		RequestTimeoutSec: 5,
		ListenAddr:        ":8080",
		LogLevel:          "info",
	}
}

// FromEnv builds the runtime config: defaults, then the optional TOML
// file named by LAMPD_CONFIG, then environment overrides.
func FromEnv() (Config, error) {
	cfg := Default()
	if path := strings.TrimSpace(os.Getenv(EnvConfigPath)); path != "" {
		if err := loadToml(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	applyEnvOverrides(&cfg)
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads a TOML config file without consulting the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if err := loadToml(path, &cfg); err != nil {
		return Config{}, err
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadToml(path string, out *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvBrokerHost)); v != "" {
		cfg.BrokerHost = v
	}
	if port, ok := parseInt(os.Getenv(EnvBrokerPort)); ok {
		cfg.BrokerPort = port
	}
	if v := strings.TrimSpace(os.Getenv(EnvTopic)); v != "" {
		cfg.Topic = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvStoreURL)); v != "" {
		cfg.StoreURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvListenAddr)); v != "" {
		cfg.ListenAddr = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.LogLevel = v
	}
}

func parseInt(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.BrokerHost) == "" {
		return fmt.Errorf("config missing broker host")
	}
	if cfg.BrokerPort <= 0 || cfg.BrokerPort > 65535 {
		return fmt.Errorf("config broker port out of range: %d", cfg.BrokerPort)
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		return fmt.Errorf("config missing topic")
	}
	if strings.TrimSpace(cfg.StoreURL) == "" {
		return fmt.Errorf("config missing store url")
	}
	if !strings.HasPrefix(cfg.StoreURL, "http://") && !strings.HasPrefix(cfg.StoreURL, "https://") {
		return fmt.Errorf("config store url must be http(s): %q", cfg.StoreURL)
	}
	if cfg.RequestTimeoutSec <= 0 {
		return fmt.Errorf("config request timeout must be positive")
	}
	if strings.TrimSpace(cfg.ListenAddr) == "" {
		return fmt.Errorf("config missing listen addr")
	}
	return nil
}

// BrokerURL renders the MQTT dial target for the configured broker.
func (c Config) BrokerURL() string {
	return fmt.Sprintf("tcp://%s:%d", c.BrokerHost, c.BrokerPort)
}

// RequestTimeout is the bounded per-request deadline for gateway calls.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSec) * time.Second
}
