package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	content := `
telegram_token: "test-token"
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.IntervalSec != 300 {
		t.Errorf("IntervalSec = %d, want %d", cfg.IntervalSec, 300)
	}
	if cfg.MaxPerHour != 8 {
		t.Errorf("MaxPerHour = %d, want %d", cfg.MaxPerHour, 8)
	}
	if cfg.MaxPerDay != 40 {
		t.Errorf("MaxPerDay = %d, want %d", cfg.MaxPerDay, 40)
	}
	if cfg.Timezone != "UTC" {
		t.Errorf("Timezone = %q, want %q", cfg.Timezone, "UTC")
	}
	if cfg.DedupWindowDays != 3 {
		t.Errorf("DedupWindowDays = %d, want %d", cfg.DedupWindowDays, 3)
	}
	if cfg.AlertQueueMax != 200 {
		t.Errorf("AlertQueueMax = %d, want %d", cfg.AlertQueueMax, 200)
	}
	if cfg.DigestDefaultLimit != 10 {
		t.Errorf("DigestDefaultLimit = %d, want %d", cfg.DigestDefaultLimit, 10)
	}
	if cfg.DigestThreadChunk != 4096 {
		t.Errorf("DigestThreadChunk = %d, want %d", cfg.DigestThreadChunk, 4096)
	}
	if cfg.FetchTimeoutSecs != 25 {
		t.Errorf("FetchTimeoutSecs = %d, want %d", cfg.FetchTimeoutSecs, 25)
	}
	if cfg.DBPath != "./sportbot.db" {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, "./sportbot.db")
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
}

func TestLoadOverrideDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	content := `
telegram_token: "test-token"
channel_id: 123456
interval_sec: 120
max_per_hour: 4
max_per_day: 20
quiet_hours: "23-7"
timezone: "Europe/Moscow"
dedup_window_days: 5
alert_enabled: true
alert_news_min_1h: 2
alert_queue_max: 300
alert_sent_min_24h: 5
alert_chat_id: 777
digest_default_limit: 15
digest_thread_chunk: 2048
base_url: "https://example-sport-portal.test"
fetch_timeout_secs: 30
db_path: "/data/bot.db"
log_level: "debug"
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.TelegramToken != "test-token" {
		t.Errorf("TelegramToken = %q, want %q", cfg.TelegramToken, "test-token")
	}
	if cfg.ChannelID != 123456 {
		t.Errorf("ChannelID = %d, want %d", cfg.ChannelID, 123456)
	}
	if cfg.IntervalSec != 120 {
		t.Errorf("IntervalSec = %d, want %d", cfg.IntervalSec, 120)
	}
	if cfg.MaxPerHour != 4 {
		t.Errorf("MaxPerHour = %d, want %d", cfg.MaxPerHour, 4)
	}
	if cfg.MaxPerDay != 20 {
		t.Errorf("MaxPerDay = %d, want %d", cfg.MaxPerDay, 20)
	}
	if cfg.QuietHours != "23-7" {
		t.Errorf("QuietHours = %q, want %q", cfg.QuietHours, "23-7")
	}
	if cfg.Timezone != "Europe/Moscow" {
		t.Errorf("Timezone = %q, want %q", cfg.Timezone, "Europe/Moscow")
	}
	if cfg.DedupWindowDays != 5 {
		t.Errorf("DedupWindowDays = %d, want %d", cfg.DedupWindowDays, 5)
	}
	if !cfg.AlertEnabled {
		t.Errorf("AlertEnabled = %v, want true", cfg.AlertEnabled)
	}
	if cfg.AlertNewsMin1h != 2 {
		t.Errorf("AlertNewsMin1h = %d, want %d", cfg.AlertNewsMin1h, 2)
	}
	if cfg.AlertQueueMax != 300 {
		t.Errorf("AlertQueueMax = %d, want %d", cfg.AlertQueueMax, 300)
	}
	if cfg.AlertSentMin24h != 5 {
		t.Errorf("AlertSentMin24h = %d, want %d", cfg.AlertSentMin24h, 5)
	}
	if cfg.AlertChatID != 777 {
		t.Errorf("AlertChatID = %d, want %d", cfg.AlertChatID, 777)
	}
	if cfg.DigestDefaultLimit != 15 {
		t.Errorf("DigestDefaultLimit = %d, want %d", cfg.DigestDefaultLimit, 15)
	}
	if cfg.DigestThreadChunk != 2048 {
		t.Errorf("DigestThreadChunk = %d, want %d", cfg.DigestThreadChunk, 2048)
	}
	if cfg.FetchTimeoutSecs != 30 {
		t.Errorf("FetchTimeoutSecs = %d, want %d", cfg.FetchTimeoutSecs, 30)
	}
	if cfg.DBPath != "/data/bot.db" {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, "/data/bot.db")
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}
}

func TestLoadMissingTelegramToken(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	content := `
db_path: "/data/bot.db"
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("expected error for missing telegram_token")
	}
}

func TestLoadInvalidQuietHours(t *testing.T) {
	tests := []struct {
		name  string
		hours string
	}{
		{"missing dash", "2300"},
		{"out of range hour", "25-7"},
		{"text", "night-day"},
		{"three parts", "1-2-3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			configPath := filepath.Join(tmpDir, "config.yaml")
			content := `
telegram_token: "test-token"
quiet_hours: "` + tt.hours + `"
`
			if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
				t.Fatal(err)
			}

			_, err := Load(configPath)
			if err == nil {
				t.Errorf("expected error for invalid quiet_hours %q", tt.hours)
			}
		})
	}
}

func TestLoadValidQuietHours(t *testing.T) {
	tests := []string{"0-0", "23-7", "9-18", "00-23"}

	for _, tt := range tests {
		t.Run(tt, func(t *testing.T) {
			tmpDir := t.TempDir()
			configPath := filepath.Join(tmpDir, "config.yaml")
			content := `
telegram_token: "test-token"
quiet_hours: "` + tt + `"
`
			if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
				t.Fatal(err)
			}

			cfg, err := Load(configPath)
			if err != nil {
				t.Errorf("unexpected error for quiet_hours %q: %v", tt, err)
			}
			if cfg.QuietHours != tt {
				t.Errorf("QuietHours = %q, want %q", cfg.QuietHours, tt)
			}
		})
	}
}

func TestQuietHoursRange(t *testing.T) {
	cfg := &Config{QuietHours: "23-7"}
	start, end, ok := cfg.QuietHoursRange()
	if !ok {
		t.Fatal("expected ok=true")
	}
	if start != 23 || end != 7 {
		t.Errorf("QuietHoursRange() = (%d, %d), want (23, 7)", start, end)
	}

	empty := &Config{}
	if _, _, ok := empty.QuietHoursRange(); ok {
		t.Error("expected ok=false for empty QuietHours")
	}
}

func TestLoadInvalidTimezone(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	content := `
telegram_token: "test-token"
timezone: "Invalid/Zone"
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("expected error for invalid timezone")
	}
}

func TestLocationFallsBackToUTC(t *testing.T) {
	cfg := &Config{Timezone: "Invalid/Zone"}
	if loc := cfg.Location(); loc != time.UTC {
		t.Errorf("Location() = %v, want UTC", loc)
	}
}

func TestLoadFileNotFound(t *testing.T) {
	cfg, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("expected error for missing file (no telegram_token)")
	}
	_ = cfg
}

func TestLoadInvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	content := `invalid: yaml: content:`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestEnvironmentVariableOverride(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	content := `
telegram_token: "test-token"
db_path: "/original/path.db"
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	os.Setenv("SPORTBOT_DB", "/override/path.db")
	defer os.Unsetenv("SPORTBOT_DB")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.DBPath != "/override/path.db" {
		t.Errorf("DBPath = %q, want %q (from env)", cfg.DBPath, "/override/path.db")
	}
}

func TestEnvironmentVariableOverrideTelegramToken(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(""), 0644); err != nil {
		t.Fatal(err)
	}

	os.Setenv("TG_BOT_TOKEN", "env-token")
	defer os.Unsetenv("TG_BOT_TOKEN")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.TelegramToken != "env-token" {
		t.Errorf("TelegramToken = %q, want %q", cfg.TelegramToken, "env-token")
	}
}

func TestGetConfigPath(t *testing.T) {
	os.Unsetenv("SPORTBOT_CONFIG")
	path := GetConfigPath()
	if path != "./config.yaml" {
		t.Errorf("GetConfigPath() = %q, want %q", path, "./config.yaml")
	}

	os.Setenv("SPORTBOT_CONFIG", "/custom/config.yaml")
	defer os.Unsetenv("SPORTBOT_CONFIG")
	path = GetConfigPath()
	if path != "/custom/config.yaml" {
		t.Errorf("GetConfigPath() = %q, want %q", path, "/custom/config.yaml")
	}
}
