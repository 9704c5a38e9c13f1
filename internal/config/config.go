// Package config provides YAML-based configuration loading for Tourdesk.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// cronParser accepts standard 5-field cron expressions (minute, hour, dom,
// month, dow), used for the maintenance sweep schedule.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Config is the top-level Tourdesk configuration, loaded from config.yaml.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Server    ServerConfig    `yaml:"server"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Identity  IdentityConfig  `yaml:"identity"`
	Notify    NotifyConfig    `yaml:"notify"`
}

// DatabaseConfig holds connection settings for the MySQL server.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// RedisConfig holds connection settings for the optional Redis queue backend.
// When Addr is empty the queue runs on the primary database instead.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// SchedulerConfig holds allocation and maintenance policy.
type SchedulerConfig struct {
	// MaxCapacity is the per-hour seat ceiling for a shared tour.
	MaxCapacity int `yaml:"max_capacity"`
	// SweepSchedule is a 5-field cron expression for the maintenance sweeps.
	SweepSchedule string `yaml:"sweep_schedule"`
}

// IdentityConfig holds settings for the external identity provider.
type IdentityConfig struct {
	// BaseURL of the provider's lookup endpoint; empty disables external
	// resolution and only the local user store is consulted.
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

// NotifyConfig holds outbound notification settings. Empty sections disable
// the corresponding channel.
type NotifyConfig struct {
	SMTP  SMTPConfig  `yaml:"smtp"`
	Slack SlackConfig `yaml:"slack"`
}

// SMTPConfig holds settings for participant confirmation email.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// SlackConfig holds settings for the ops notification channel.
type SlackConfig struct {
	WebhookURL string `yaml:"webhook_url"`
	Channel    string `yaml:"channel"`
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
	if c.Database.Host == "" {
		c.Database.Host = "127.0.0.1"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 3306
	}
	if c.Database.User == "" {
		c.Database.User = "root"
	}
	if c.Database.Database == "" {
		c.Database.Database = "tourdesk"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Scheduler.MaxCapacity == 0 {
		c.Scheduler.MaxCapacity = 8
	}
	if c.Scheduler.SweepSchedule == "" {
		c.Scheduler.SweepSchedule = "*/5 * * * *"
	}
	if c.Notify.SMTP.Port == 0 {
		c.Notify.SMTP.Port = 587
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.Scheduler.MaxCapacity < 1 {
		errs = append(errs, "scheduler.max_capacity must be positive")
	}
	if _, err := cronParser.Parse(c.Scheduler.SweepSchedule); err != nil {
		errs = append(errs, fmt.Sprintf("scheduler.sweep_schedule %q is not a valid cron expression", c.Scheduler.SweepSchedule))
	}
	if c.Notify.SMTP.Host != "" && c.Notify.SMTP.From == "" {
		errs = append(errs, "notify.smtp.from is required when notify.smtp.host is set")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: invalid: %s", strings.Join(errs, "; "))
	}
	return nil
}
