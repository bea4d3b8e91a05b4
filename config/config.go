package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Push     PushConfig     `yaml:"push"`
}

// ServerConfig holds the HTTP server configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// MQTTConfig holds the broker connection for the device command channel.
type MQTTConfig struct {
	BrokerURL             string        `yaml:"broker_url"`
	ClientID              string        `yaml:"client_id"`
	Username              string        `yaml:"username"`
	Password              string        `yaml:"password"`
	TopicPrefix           string        `yaml:"topic_prefix"`
	QoS                   byte          `yaml:"qos"`
	ConnectTimeoutSeconds int           `yaml:"connect_timeout_seconds"`
	ConnectTimeout        time.Duration `yaml:"-"` // Ignored by YAML parser
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 60
	}

	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = "ecoshower"
	}
	if cfg.MQTT.ClientID == "" {
		log.Printf("mqtt.client_id is not set; defaulting to ecoshower-backend")
		cfg.MQTT.ClientID = "ecoshower-backend"
	}
	if cfg.MQTT.QoS > 2 {
		cfg.MQTT.QoS = 1
	}
	if cfg.MQTT.ConnectTimeoutSeconds <= 0 {
		cfg.MQTT.ConnectTimeoutSeconds = 10
	}
	cfg.MQTT.ConnectTimeout = time.Duration(cfg.MQTT.ConnectTimeoutSeconds) * time.Second

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	return &cfg, nil
}
