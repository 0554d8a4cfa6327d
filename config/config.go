// Package config loads the single configuration value threaded through the
// rest of the pipeline: chat credentials, scheduler knobs, alert thresholds,
// and digest defaults.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	// Chat
	TelegramToken string `yaml:"telegram_token"`
	ChannelID     int64  `yaml:"channel_id"`

	// Scheduling (spec section 6)
	IntervalSec     int    `yaml:"interval_sec"`
	MaxPerHour      int    `yaml:"max_per_hour"`
	MaxPerDay       int    `yaml:"max_per_day"`
	QuietHours      string `yaml:"quiet_hours"` // "HH-HH"
	Timezone        string `yaml:"timezone"`
	DedupWindowDays int    `yaml:"dedup_window_days"`

	// Alerts
	AlertEnabled    bool  `yaml:"alert_enabled"`
	AlertNewsMin1h  int   `yaml:"alert_news_min_1h"`
	AlertQueueMax   int   `yaml:"alert_queue_max"`
	AlertSentMin24h int   `yaml:"alert_sent_min_24h"`
	AlertChatID     int64 `yaml:"alert_chat_id"`

	// Digest
	DigestDefaultLimit int `yaml:"digest_default_limit"`
	DigestThreadChunk  int `yaml:"digest_thread_chunk"`

	// Crawl / fetch
	BaseURL          string `yaml:"base_url"`
	FetchTimeoutSecs int    `yaml:"fetch_timeout_secs"`

	DBPath   string `yaml:"db_path"`
	LogLevel string `yaml:"log_level"`
}

var quietHoursRegex = regexp.MustCompile(`^([01]?[0-9]|2[0-3])-([01]?[0-9]|2[0-3])$`)

// Load reads configuration from a YAML file (if present) and applies
// environment overrides, then defaults, then validation — matching the
// teacher's Load pipeline shape.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config yaml: %w", err)
		}
	case os.IsNotExist(err):
		// A config file is optional; env vars and defaults can fully configure.
	default:
		return nil, fmt.Errorf("read config file: %w", err)
	}

	applyEnvironmentOverrides(cfg)
	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// GetConfigPath returns the config file path from environment or default.
func GetConfigPath() string {
	if path := os.Getenv("SPORTBOT_CONFIG"); path != "" {
		return path
	}
	return "./config.yaml"
}

func applyDefaults(cfg *Config) {
	if cfg.IntervalSec == 0 {
		cfg.IntervalSec = 300
	}
	if cfg.MaxPerHour == 0 {
		cfg.MaxPerHour = 8
	}
	if cfg.MaxPerDay == 0 {
		cfg.MaxPerDay = 40
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "UTC"
	}
	if cfg.DedupWindowDays == 0 {
		cfg.DedupWindowDays = 3
	}
	if cfg.AlertQueueMax == 0 {
		cfg.AlertQueueMax = 200
	}
	if cfg.DigestDefaultLimit == 0 {
		cfg.DigestDefaultLimit = 10
	}
	if cfg.DigestThreadChunk == 0 {
		cfg.DigestThreadChunk = 4096
	}
	if cfg.FetchTimeoutSecs == 0 {
		cfg.FetchTimeoutSecs = 25
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "./sportbot.db"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
}

func applyEnvironmentOverrides(cfg *Config) {
	strVar(&cfg.TelegramToken, "TG_BOT_TOKEN")
	int64Var(&cfg.ChannelID, "TG_CHANNEL_ID")

	intVar(&cfg.IntervalSec, "PUBLISH_INTERVAL_SEC")
	intVar(&cfg.MaxPerHour, "PUBLISH_MAX_PER_HOUR")
	intVar(&cfg.MaxPerDay, "PUBLISH_MAX_PER_DAY")
	strVar(&cfg.QuietHours, "PUBLISH_QUIET_HOURS")
	strVar(&cfg.Timezone, "TZ")
	intVar(&cfg.DedupWindowDays, "DEDUP_WINDOW_DAYS")

	boolVar(&cfg.AlertEnabled, "ALERT_ENABLED")
	intVar(&cfg.AlertNewsMin1h, "ALERT_NEWS_MIN_1H")
	intVar(&cfg.AlertQueueMax, "ALERT_QUEUE_MAX")
	intVar(&cfg.AlertSentMin24h, "ALERT_SENT_MIN_24H")
	int64Var(&cfg.AlertChatID, "ALERT_CHAT_ID")

	intVar(&cfg.DigestDefaultLimit, "DIGEST_DEFAULT_LIMIT")
	intVar(&cfg.DigestThreadChunk, "DIGEST_THREAD_CHUNK")

	if dbPath := os.Getenv("SPORTBOT_DB"); dbPath != "" {
		cfg.DBPath = dbPath
	}
}

func strVar(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

func intVar(dst *int, env string) {
	if v := os.Getenv(env); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func int64Var(dst *int64, env string) {
	if v := os.Getenv(env); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func boolVar(dst *bool, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = strings.EqualFold(v, "true") || v == "1"
	}
}

func validate(cfg *Config) error {
	if cfg.TelegramToken == "" {
		return fmt.Errorf("telegram_token (TG_BOT_TOKEN) is required")
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}
	if cfg.QuietHours != "" && !quietHoursRegex.MatchString(cfg.QuietHours) {
		return fmt.Errorf("quiet_hours must be HH-HH, got %q", cfg.QuietHours)
	}
	if cfg.IntervalSec <= 0 {
		return fmt.Errorf("interval_sec must be positive")
	}
	return nil
}

// QuietHoursRange parses "HH-HH" into (start, end) hours. ok is false when
// quiet hours are not configured.
func (c *Config) QuietHoursRange() (start, end int, ok bool) {
	if c.QuietHours == "" {
		return 0, 0, false
	}
	matches := quietHoursRegex.FindStringSubmatch(c.QuietHours)
	if len(matches) != 3 {
		return 0, 0, false
	}
	start, _ = strconv.Atoi(matches[1])
	end, _ = strconv.Atoi(matches[2])
	return start, end, true
}

// Location resolves the configured IANA timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
