package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the profile scraper.
type Config struct {
	// Scraper behavior (navigation retries, staleness threshold, browser mode)
	Scraper ScraperConfig `yaml:"scraper" json:"scraper"`

	// Account pool settings
	Accounts AccountsConfig `yaml:"accounts" json:"accounts"`

	// Human-timing contract bounds
	Pacing PacingConfig `yaml:"pacing" json:"pacing"`

	// Postgres persistence
	Database DatabaseConfig `yaml:"database" json:"database"`

	// Redis control switch
	Redis RedisConfig `yaml:"redis" json:"redis"`

	// Object storage for PDF snapshots
	Storage StorageConfig `yaml:"storage" json:"storage"`

	// Background scheduling
	Scheduler SchedulerConfig `yaml:"scheduler" json:"scheduler"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// ScraperConfig holds scraping behavior configuration.
type ScraperConfig struct {
	NavigationMaxRetries int           `yaml:"navigation_max_retries" json:"navigation_max_retries"`
	NavigationTimeout    time.Duration `yaml:"navigation_timeout" json:"navigation_timeout"`
	UpdateThresholdDays  int           `yaml:"update_threshold_days" json:"update_threshold_days"`
	Headless             bool          `yaml:"headless" json:"headless"`
	BrowserBin           string        `yaml:"browser_bin" json:"browser_bin"`
	UserAgent            string        `yaml:"user_agent" json:"user_agent"`
}

// AccountsConfig holds account pool configuration. The credential pairs
// themselves come from numbered environment variables (LINKEDIN_EMAIL_n /
// LINKEDIN_PASSWORD_n) resolved by pkg/auth.
type AccountsConfig struct {
	DailyLimitPerAccount int `yaml:"daily_limit_per_account" json:"daily_limit_per_account"`
}

// PacingConfig bounds the randomized delays between browser actions.
type PacingConfig struct {
	MinDelay time.Duration `yaml:"min_delay" json:"min_delay"`
	MaxDelay time.Duration `yaml:"max_delay" json:"max_delay"`
}

// DatabaseConfig holds Postgres connection configuration.
type DatabaseConfig struct {
	DSN string `yaml:"dsn" json:"dsn"`
}

// RedisConfig holds the connection for the pause/stop control switch.
type RedisConfig struct {
	Addr     string `yaml:"addr" json:"addr"`
	Password string `yaml:"password" json:"password"`
	DB       int    `yaml:"db" json:"db"`
}

// StorageConfig holds S3-compatible object storage configuration.
type StorageConfig struct {
	Bucket    string `yaml:"bucket" json:"bucket"`
	Region    string `yaml:"region" json:"region"`
	Endpoint  string `yaml:"endpoint" json:"endpoint"`
	PathStyle bool   `yaml:"path_style" json:"path_style"`
	PublicURL string `yaml:"public_url" json:"public_url"`
}

// SchedulerConfig holds cron specs for background jobs. Specs use the
// standard five-field cron syntax, evaluated in UTC.
type SchedulerConfig struct {
	DailyResetSpec  string `yaml:"daily_reset_spec" json:"daily_reset_spec"`
	QueueDrainSpec  string `yaml:"queue_drain_spec" json:"queue_drain_spec"`
	QueueDrainBatch int    `yaml:"queue_drain_batch" json:"queue_drain_batch"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Scraper: ScraperConfig{
			NavigationMaxRetries: 3,
			NavigationTimeout:    45 * time.Second,
			UpdateThresholdDays:  180,
			Headless:             true,
			UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
				"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		},
		Accounts: AccountsConfig{
			DailyLimitPerAccount: 80,
		},
		Pacing: PacingConfig{
			MinDelay: 5 * time.Second,
			MaxDelay: 15 * time.Second,
		},
		Database: DatabaseConfig{
			DSN: "postgres://localhost:5432/liscraper?sslmode=disable",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Storage: StorageConfig{
			Region: "us-east-1",
		},
		Scheduler: SchedulerConfig{
			DailyResetSpec:  "0 0 * * *",
			QueueDrainBatch: 50,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv loads configuration overrides from environment variables.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("SCRAPER_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.Scraper.NavigationMaxRetries = n
		}
	}
	if v := os.Getenv("SCRAPER_UPDATE_THRESHOLD_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Scraper.UpdateThresholdDays = n
		}
	}
	if v := os.Getenv("SCRAPER_HEADLESS"); v != "" {
		c.Scraper.Headless = strings.ToLower(v) != "false"
	}
	if v := os.Getenv("SCRAPER_DAILY_LIMIT_PER_ACCOUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Accounts.DailyLimitPerAccount = n
		}
	}
	if v := os.Getenv("SCRAPER_MIN_DELAY_SECONDS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			c.Pacing.MinDelay = time.Duration(f * float64(time.Second))
		}
	}
	if v := os.Getenv("SCRAPER_MAX_DELAY_SECONDS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			c.Pacing.MaxDelay = time.Duration(f * float64(time.Second))
		}
	}
	if v := os.Getenv("LISCRAPER_DATABASE_DSN"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("LISCRAPER_REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("LISCRAPER_REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("LISCRAPER_STORAGE_BUCKET"); v != "" {
		c.Storage.Bucket = v
	}
	if v := os.Getenv("LISCRAPER_STORAGE_REGION"); v != "" {
		c.Storage.Region = v
	}
	if v := os.Getenv("LISCRAPER_STORAGE_ENDPOINT"); v != "" {
		c.Storage.Endpoint = v
	}
	if v := os.Getenv("LISCRAPER_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file. An empty path searches
// the standard locations and is not an error when nothing is found.
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for a config file in standard locations.
func (c *Config) findConfigFile() string {
	locations := []string{
		".liscraper.yaml",
		".liscraper.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "liscraper", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".liscraper.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	var errs []error

	// Zero would mean an unbounded retry loop, not zero retries.
	if c.Scraper.NavigationMaxRetries <= 0 {
		errs = append(errs, errors.New("navigation max retries must be positive"))
	}
	if c.Scraper.NavigationTimeout <= 0 {
		errs = append(errs, errors.New("navigation timeout must be positive"))
	}
	if c.Scraper.UpdateThresholdDays <= 0 {
		errs = append(errs, errors.New("update threshold days must be positive"))
	}
	if c.Accounts.DailyLimitPerAccount <= 0 {
		errs = append(errs, errors.New("daily limit per account must be positive"))
	}
	if c.Pacing.MinDelay < 0 {
		errs = append(errs, errors.New("minimum delay cannot be negative"))
	}
	if c.Pacing.MaxDelay < c.Pacing.MinDelay {
		errs = append(errs, errors.New("maximum delay must be at least the minimum delay"))
	}
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database DSN is required"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Load loads configuration from all sources with proper precedence.
// Precedence order: environment variables > .env file > config file > defaults.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".liscraper.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
