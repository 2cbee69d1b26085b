// Package config loads and validates the watcher configuration.
package config

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/slice/havoc/internal/discord"
)

const defaultMaxConnections = 10

// Subscription fans a branch set out to a webhook URL.
type Subscription struct {
	Branches   []discord.Branch `yaml:"branches"`
	WebhookURL string           `yaml:"webhook_url"`
}

// NATSConfig enables the optional deploy event bus.
type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// Config is the top-level configuration file.
type Config struct {
	IntervalMilliseconds     uint64         `yaml:"interval_milliseconds"`
	DatabaseURL              string         `yaml:"database_url"`
	MaxConnections           uint32         `yaml:"max_connections"`
	HTTPAPIServerBindAddress string         `yaml:"http_api_server_bind_address"`
	NATS                     *NATSConfig    `yaml:"nats,omitempty"`
	Subscriptions            []Subscription `yaml:"subscriptions"`
}

// Load reads the configuration file at path. A .env file in the working
// directory is loaded first, and environment variables are expanded inside
// the file's contents before parsing.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "note: .env not loaded: %v\n", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{MaxConnections: defaultMaxConnections}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Interval returns the poll period.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.IntervalMilliseconds) * time.Millisecond
}

// Validate checks the configuration's invariants.
func (c *Config) Validate() error {
	if c.IntervalMilliseconds == 0 {
		return fmt.Errorf("interval_milliseconds must be > 0")
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("database_url is required")
	}
	if c.HTTPAPIServerBindAddress != "" {
		if _, _, err := net.SplitHostPort(c.HTTPAPIServerBindAddress); err != nil {
			return fmt.Errorf("invalid http_api_server_bind_address: %w", err)
		}
	}
	for i, sub := range c.Subscriptions {
		if sub.WebhookURL == "" {
			return fmt.Errorf("subscription %d: webhook_url is required", i)
		}
		if len(sub.Branches) == 0 {
			return fmt.Errorf("subscription %d: at least one branch is required", i)
		}
		for _, branch := range sub.Branches {
			if _, err := discord.ParseBranch(string(branch)); err != nil {
				return fmt.Errorf("subscription %d: %w", i, err)
			}
			if !branch.HasFrontend() {
				return fmt.Errorf("subscription %d: branch %s has no frontend", i, branch)
			}
		}
	}
	return nil
}
