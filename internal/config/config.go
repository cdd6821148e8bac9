// Package config provides YAML-based configuration loading for Cadence.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level Cadence configuration, loaded from cadence.yaml.
type Config struct {
	Actor    string       `yaml:"actor"`
	Database Database     `yaml:"database"`
	Server   ServerConfig `yaml:"server"`
	Notify   NotifyConfig `yaml:"notify"`
	GitHub   GitHubConfig `yaml:"github"`
}

// Database holds connection settings. Driver "sqlite" uses Path; "mysql"
// uses Host/Port/Name/User/Password.
type Database struct {
	Driver   string `yaml:"driver"`
	Path     string `yaml:"path"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// NotifyConfig holds notifier daemon settings.
type NotifyConfig struct {
	Platform        string       `yaml:"platform"` // slack, discord, or none
	Channel         string       `yaml:"channel"`
	SlackBotToken   string       `yaml:"slack_bot_token"`
	DiscordToken    string       `yaml:"discord_token"`
	PollIntervalSec int          `yaml:"poll_interval_sec"`
	Events          EventsConfig `yaml:"events"`
	Digest          DigestConfig `yaml:"digest"`
}

// EventsConfig toggles which lifecycle events are delivered.
type EventsConfig struct {
	SprintLifecycle bool `yaml:"sprint_lifecycle"`
	RecycleBin      bool `yaml:"recycle_bin"`
	OverdueSprints  bool `yaml:"overdue_sprints"`
}

// DigestConfig holds scheduled digest settings.
type DigestConfig struct {
	Daily  DigestSchedule `yaml:"daily"`
	Weekly DigestSchedule `yaml:"weekly"`
}

// DigestSchedule is one digest timer. Cron is a standard 5-field expression.
type DigestSchedule struct {
	Enabled bool   `yaml:"enabled"`
	Cron    string `yaml:"cron"`
}

// GitHubConfig holds defaults for `cad import github`.
type GitHubConfig struct {
	Owner string `yaml:"owner"`
	Repo  string `yaml:"repo"`
	Token string `yaml:"token"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		c.Database.Path = "cadence.db"
	}
	if c.Database.Driver == "mysql" {
		if c.Database.Host == "" {
			c.Database.Host = "127.0.0.1"
		}
		if c.Database.Port == 0 {
			c.Database.Port = 3306
		}
		if c.Database.User == "" {
			c.Database.User = "root"
		}
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8330"
	}
	if c.Notify.PollIntervalSec == 0 {
		c.Notify.PollIntervalSec = 15
	}
	if c.Notify.Digest.Daily.Cron == "" {
		c.Notify.Digest.Daily.Cron = "0 9 * * *"
	}
	if c.Notify.Digest.Weekly.Cron == "" {
		c.Notify.Digest.Weekly.Cron = "0 9 * * 1"
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			errs = append(errs, "database.path is required for sqlite")
		}
	case "mysql":
		if c.Database.Name == "" {
			errs = append(errs, "database.name is required for mysql")
		}
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q is not supported (sqlite, mysql)", c.Database.Driver))
	}

	switch c.Notify.Platform {
	case "", "none":
	case "slack":
		if c.Notify.SlackBotToken == "" {
			errs = append(errs, "notify.slack_bot_token is required for platform slack")
		}
		if c.Notify.Channel == "" {
			errs = append(errs, "notify.channel is required for platform slack")
		}
	case "discord":
		if c.Notify.DiscordToken == "" {
			errs = append(errs, "notify.discord_token is required for platform discord")
		}
		if c.Notify.Channel == "" {
			errs = append(errs, "notify.channel is required for platform discord")
		}
	default:
		errs = append(errs, fmt.Sprintf("notify.platform %q is not supported (slack, discord, none)", c.Notify.Platform))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
