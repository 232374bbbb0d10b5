package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Accounts.DailyLimitPerAccount != 80 {
		t.Errorf("expected daily limit 80, got %d", cfg.Accounts.DailyLimitPerAccount)
	}
	if cfg.Scraper.UpdateThresholdDays != 180 {
		t.Errorf("expected update threshold 180 days, got %d", cfg.Scraper.UpdateThresholdDays)
	}
	if cfg.Pacing.MinDelay != 5*time.Second {
		t.Errorf("expected min delay 5s, got %v", cfg.Pacing.MinDelay)
	}
	if cfg.Pacing.MaxDelay != 15*time.Second {
		t.Errorf("expected max delay 15s, got %v", cfg.Pacing.MaxDelay)
	}
	if !cfg.Scraper.Headless {
		t.Error("expected headless browsing by default")
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	envVars := map[string]string{
		"SCRAPER_DAILY_LIMIT_PER_ACCOUNT": "25",
		"SCRAPER_MIN_DELAY_SECONDS":       "2.5",
		"SCRAPER_MAX_DELAY_SECONDS":       "8",
		"SCRAPER_MAX_RETRIES":             "5",
		"SCRAPER_UPDATE_THRESHOLD_DAYS":   "90",
		"SCRAPER_HEADLESS":                "false",
		"LISCRAPER_DATABASE_DSN":          "postgres://scraper:secret@db:5432/scraper",
		"LISCRAPER_STORAGE_BUCKET":        "profile-pdfs",
		"LISCRAPER_LOG_LEVEL":             "debug",
	}
	for k, v := range envVars {
		t.Setenv(k, v)
	}

	cfg := DefaultConfig()
	if err := cfg.LoadFromEnv(); err != nil {
		t.Fatalf("LoadFromEnv failed: %v", err)
	}

	if cfg.Accounts.DailyLimitPerAccount != 25 {
		t.Errorf("expected daily limit 25, got %d", cfg.Accounts.DailyLimitPerAccount)
	}
	if cfg.Pacing.MinDelay != 2500*time.Millisecond {
		t.Errorf("expected min delay 2.5s, got %v", cfg.Pacing.MinDelay)
	}
	if cfg.Pacing.MaxDelay != 8*time.Second {
		t.Errorf("expected max delay 8s, got %v", cfg.Pacing.MaxDelay)
	}
	if cfg.Scraper.NavigationMaxRetries != 5 {
		t.Errorf("expected 5 retries, got %d", cfg.Scraper.NavigationMaxRetries)
	}
	if cfg.Scraper.UpdateThresholdDays != 90 {
		t.Errorf("expected threshold 90, got %d", cfg.Scraper.UpdateThresholdDays)
	}
	if cfg.Scraper.Headless {
		t.Error("expected headless disabled")
	}
	if cfg.Database.DSN != "postgres://scraper:secret@db:5432/scraper" {
		t.Errorf("unexpected DSN: %s", cfg.Database.DSN)
	}
	if cfg.Storage.Bucket != "profile-pdfs" {
		t.Errorf("unexpected bucket: %s", cfg.Storage.Bucket)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("unexpected log level: %s", cfg.Logging.Level)
	}
}

func TestLoadFromEnvIgnoresInvalidValues(t *testing.T) {
	t.Setenv("SCRAPER_DAILY_LIMIT_PER_ACCOUNT", "not-a-number")
	t.Setenv("SCRAPER_MIN_DELAY_SECONDS", "-3")

	cfg := DefaultConfig()
	if err := cfg.LoadFromEnv(); err != nil {
		t.Fatalf("LoadFromEnv failed: %v", err)
	}

	if cfg.Accounts.DailyLimitPerAccount != 80 {
		t.Errorf("invalid limit should keep default, got %d", cfg.Accounts.DailyLimitPerAccount)
	}
	if cfg.Pacing.MinDelay != 5*time.Second {
		t.Errorf("negative delay should keep default, got %v", cfg.Pacing.MinDelay)
	}
}

func TestLoadFromFile(t *testing.T) {
	content := `
scraper:
  update_threshold_days: 30
  headless: false
accounts:
  daily_limit_per_account: 10
pacing:
  min_delay: 1s
  max_delay: 4s
storage:
  bucket: snapshots
  endpoint: http://minio:9000
  path_style: true
`
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := DefaultConfig()
	if err := cfg.LoadFromFile(path); err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if cfg.Scraper.UpdateThresholdDays != 30 {
		t.Errorf("expected threshold 30, got %d", cfg.Scraper.UpdateThresholdDays)
	}
	if cfg.Accounts.DailyLimitPerAccount != 10 {
		t.Errorf("expected limit 10, got %d", cfg.Accounts.DailyLimitPerAccount)
	}
	if cfg.Pacing.MinDelay != time.Second {
		t.Errorf("expected min delay 1s, got %v", cfg.Pacing.MinDelay)
	}
	if !cfg.Storage.PathStyle {
		t.Error("expected path-style storage addressing")
	}
	// File must not clobber defaults it does not mention.
	if cfg.Database.DSN == "" {
		t.Error("database DSN default was lost")
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing explicit config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid defaults",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "zero daily limit",
			mutate:  func(c *Config) { c.Accounts.DailyLimitPerAccount = 0 },
			wantErr: true,
		},
		{
			name:    "max delay below min delay",
			mutate:  func(c *Config) { c.Pacing.MaxDelay = c.Pacing.MinDelay - time.Second },
			wantErr: true,
		},
		{
			name:    "negative retries",
			mutate:  func(c *Config) { c.Scraper.NavigationMaxRetries = -1 },
			wantErr: true,
		},
		{
			name:    "zero retries",
			mutate:  func(c *Config) { c.Scraper.NavigationMaxRetries = 0 },
			wantErr: true,
		},
		{
			name:    "zero update threshold",
			mutate:  func(c *Config) { c.Scraper.UpdateThresholdDays = 0 },
			wantErr: true,
		},
		{
			name:    "empty DSN",
			mutate:  func(c *Config) { c.Database.DSN = "" },
			wantErr: true,
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "chatty" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSaveAndReload(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.Bucket = "alumni-pdfs"
	cfg.Accounts.DailyLimitPerAccount = 42

	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	reloaded := DefaultConfig()
	if err := reloaded.LoadFromFile(path); err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if reloaded.Storage.Bucket != "alumni-pdfs" {
		t.Errorf("bucket not round-tripped: %s", reloaded.Storage.Bucket)
	}
	if reloaded.Accounts.DailyLimitPerAccount != 42 {
		t.Errorf("limit not round-tripped: %d", reloaded.Accounts.DailyLimitPerAccount)
	}
}
