package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mcdev12/gameday/go/internal/periods"
)

type Config struct {
	Authority struct {
		BaseURL     string `yaml:"base_url"`
		SyncEnabled bool   `yaml:"sync_enabled"`
		PollMillis  int    `yaml:"poll_interval_ms"`
		PushMillis  int    `yaml:"push_delay_ms"`
	} `yaml:"authority"`

	Slot struct {
		// Backend selects where the record persists: "nats", "postgres"
		// or "memory".
		Backend string `yaml:"backend"`
	} `yaml:"slot"`

	NATS struct {
		URL     string `yaml:"url"`
		Enabled bool   `yaml:"enabled"`
	} `yaml:"nats"`

	Periods struct {
		Timezone       string `yaml:"timezone"`
		RefreshMinutes int    `yaml:"refresh_interval_min"`
		NoticeSeconds  int    `yaml:"notice_duration_sec"`
	} `yaml:"periods"`
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults(&config)
	return &config, nil
}

// defaultConfig is the configuration used when no file is present: memory
// slot, no NATS, authority sync off. Good enough to run standalone.
func defaultConfig() *Config {
	var config Config
	applyDefaults(&config)
	return &config
}

func applyDefaults(config *Config) {
	if config.Slot.Backend == "" {
		config.Slot.Backend = "memory"
	}
	if config.NATS.URL == "" {
		config.NATS.URL = getEnv("NATS_URL", "nats://localhost:4222")
	}
	if config.Authority.BaseURL == "" {
		config.Authority.BaseURL = getEnv("AUTHORITY_URL", "")
	}
	if config.Periods.Timezone == "" {
		config.Periods.Timezone = periods.DefaultTimezone
	}
	if config.Periods.RefreshMinutes <= 0 {
		config.Periods.RefreshMinutes = 3
	}
	if config.Periods.NoticeSeconds <= 0 {
		config.Periods.NoticeSeconds = 10
	}
}

func (c *Config) pollInterval() time.Duration {
	if c.Authority.PollMillis <= 0 {
		return 0 // syncer default
	}
	return time.Duration(c.Authority.PollMillis) * time.Millisecond
}

func (c *Config) pushDelay() time.Duration {
	if c.Authority.PushMillis <= 0 {
		return 0
	}
	return time.Duration(c.Authority.PushMillis) * time.Millisecond
}
