package config

import (
	"fmt"
	"os"
	"strconv"

	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"lead-response-engine/pkg/constants"
	"lead-response-engine/pkg/models"
)

type Config struct {
	RedisURL          string   `yaml:"redis_url"`
	Port              string   `yaml:"port"`
	LogLevel          string   `yaml:"log_level"`
	StoreBackend      string   `yaml:"store_backend"` // memory | redis
	PodID             string   `yaml:"-"`
	SweepIntervalSec  int      `yaml:"sweep_interval_seconds"`
	LeaderTTLSec      int      `yaml:"leader_ttl_seconds"`
	LeaderIntervalSec int      `yaml:"leader_interval_seconds"`
	ConsumerGroup     string   `yaml:"consumer_group"`
	Chain             []string `yaml:"chain"`
	Channels          []string `yaml:"channels"`
}

// Load builds configuration from defaults, an optional config.yaml, and
// environment overrides, in that order.
func Load() (*Config, error) {
	cfg := &Config{
		RedisURL:          "redis://localhost:6379",
		Port:              "8080",
		LogLevel:          "info",
		StoreBackend:      "memory",
		PodID:             generatePodID(),
		SweepIntervalSec:  constants.DefaultSweepIntervalSeconds,
		LeaderTTLSec:      constants.DefaultLeaderElectionTTLSeconds,
		LeaderIntervalSec: constants.DefaultLeaderElectionIntervalSeconds,
		ConsumerGroup:     "lead-event-processors",
	}

	if data, err := os.ReadFile("config.yaml"); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config.yaml: %w", err)
		}
	}

	cfg.RedisURL = getEnv(constants.EnvRedisURL, cfg.RedisURL)
	cfg.Port = getEnv(constants.EnvPort, cfg.Port)
	cfg.LogLevel = getEnv(constants.EnvLogLevel, cfg.LogLevel)
	cfg.StoreBackend = getEnv(constants.EnvStoreBackend, cfg.StoreBackend)
	cfg.PodID = getEnv(constants.EnvPodID, cfg.PodID)
	cfg.SweepIntervalSec = getEnvInt(constants.EnvSweepInterval, cfg.SweepIntervalSec)
	cfg.LeaderTTLSec = getEnvInt(constants.EnvLeaderTTL, cfg.LeaderTTLSec)
	cfg.ConsumerGroup = getEnv(constants.EnvConsumerGroup, cfg.ConsumerGroup)

	if cfg.StoreBackend != "memory" && cfg.StoreBackend != "redis" {
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	return cfg, nil
}

// EscalationChain returns the configured role chain, falling back to the
// standard four-tier order
func (c *Config) EscalationChain() []models.Role {
	if len(c.Chain) == 0 {
		return models.DefaultChain()
	}
	chain := make([]models.Role, len(c.Chain))
	for i, role := range c.Chain {
		chain[i] = models.Role(role)
	}
	return chain
}

// NotificationChannels returns the configured channels, defaulting to all
// four transports
func (c *Config) NotificationChannels() []models.Channel {
	if len(c.Channels) == 0 {
		return []models.Channel{models.ChannelEmail, models.ChannelSMS, models.ChannelPush, models.ChannelVoice}
	}
	channels := make([]models.Channel, len(c.Channels))
	for i, ch := range c.Channels {
		channels[i] = models.Channel(ch)
	}
	return channels
}

func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSec) * time.Second
}

func (c *Config) LeaderTTL() time.Duration {
	return time.Duration(c.LeaderTTLSec) * time.Second
}

func (c *Config) LeaderInterval() time.Duration {
	return time.Duration(c.LeaderIntervalSec) * time.Second
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func generatePodID() string {
	hostname, err := os.Hostname()
	if err != nil {
		return uuid.New().String()
	}
	return hostname + "-" + uuid.New().String()[:8]
}
