// Package config loads and validates runtime configuration at startup.
//
// Sources, later ones winning: built-in defaults, a .env file in the working
// directory, the YAML file named by CONFIG_FILE, then process environment.
// Fail-fast: an unparsable value or an invalid combination is returned as an
// error and the process exits.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all runtime configuration for the workforce service.
type Config struct {
	Port     string `yaml:"port"`
	GRPCPort string `yaml:"grpc_port"`

	// DatabaseURL is optional: without it the service runs on the in-memory store.
	DatabaseURL string `yaml:"database_url"`
	DBMaxConns  int32  `yaml:"db_max_conns"`
	// RedisURL is optional: without it notifications are delivered in-process
	// and rate limits are per instance.
	RedisURL string `yaml:"redis_url"`

	// TimeZone decides which calendar day a check-in belongs to and when a
	// job's end date has passed.
	TimeZone string         `yaml:"time_zone"`
	Location *time.Location `yaml:"-"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	RequestTimeout time.Duration `yaml:"request_timeout"`
	NotifyTimeout  time.Duration `yaml:"notify_timeout"`

	SweepSchedule string        `yaml:"sweep_schedule"`
	SweepThrottle time.Duration `yaml:"sweep_throttle"`

	RateLimit  int           `yaml:"rate_limit"`
	RateWindow time.Duration `yaml:"rate_window"`

	TelegramToken  string `yaml:"telegram_token"`
	TelegramChatID int64  `yaml:"telegram_chat_id"`
}

func defaults() *Config {
	return &Config{
		Port:           "8083",
		GRPCPort:       "9083",
		DBMaxConns:     10,
		TimeZone:       "Asia/Ho_Chi_Minh",
		LogLevel:       "info",
		LogFormat:      "json",
		RequestTimeout: 10 * time.Second,
		NotifyTimeout:  10 * time.Second,
		SweepSchedule:  "@every 1h",
		SweepThrottle:  time.Minute,
		RateLimit:      30,
		RateWindow:     time.Minute,
	}
}

// Load reads every source and returns a validated Config.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadEnv() error {
	var errs []error
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str("WORKFORCE_PORT", &c.Port)
	str("WORKFORCE_GRPC_PORT", &c.GRPCPort)
	str("DATABASE_URL", &c.DatabaseURL)
	str("REDIS_URL", &c.RedisURL)
	str("TIME_ZONE", &c.TimeZone)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FORMAT", &c.LogFormat)
	str("SWEEP_SCHEDULE", &c.SweepSchedule)
	str("TELEGRAM_BOT_TOKEN", &c.TelegramToken)
	dur("REQUEST_TIMEOUT", &c.RequestTimeout)
	dur("NOTIFY_TIMEOUT", &c.NotifyTimeout)
	dur("SWEEP_THROTTLE", &c.SweepThrottle)
	dur("RATE_WINDOW", &c.RateWindow)

	if v := os.Getenv("RATE_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid RATE_LIMIT: %w", err))
		} else {
			c.RateLimit = n
		}
	}
	if v := os.Getenv("DB_MAX_CONNS"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid DB_MAX_CONNS: %w", err))
		} else {
			c.DBMaxConns = int32(n)
		}
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err))
		} else {
			c.TelegramChatID = id
		}
	}
	return errors.Join(errs...)
}

func (c *Config) validate() error {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return fmt.Errorf("invalid TIME_ZONE %q: %w", c.TimeZone, err)
	}
	c.Location = loc

	switch strings.ToLower(c.LogFormat) {
	case "json", "text":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.LogFormat)
	}
	if c.Port == "" {
		return fmt.Errorf("WORKFORCE_PORT is required")
	}
	if c.DBMaxConns <= 0 {
		return fmt.Errorf("DB_MAX_CONNS must be positive")
	}
	if c.SweepSchedule == "" {
		return fmt.Errorf("SWEEP_SCHEDULE is required")
	}
	if c.RequestTimeout <= 0 || c.NotifyTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT and NOTIFY_TIMEOUT must be positive")
	}
	if c.TelegramToken != "" && c.TelegramChatID == 0 {
		return fmt.Errorf("TELEGRAM_CHAT_ID is required when TELEGRAM_BOT_TOKEN is set")
	}
	return nil
}
