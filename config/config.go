/*
Package config loads server configuration.

SOURCES (later wins):
  1. DefaultConfig()
  2. TOML file (optional)
  3. .env file, if present, loaded into the process environment
  4. CB_* environment variables
  5. Command-line flags (applied by cmd/server)

EXAMPLE creative-boost.toml:

  [server]
  host = "0.0.0.0"
  port = 8080
  cors_origins = ["http://localhost:5173"]

  [database]
  path = "./data/creative-boost.db"

  [credits]
  default_min_credits = "30"
  default_max_credits = "50"
  default_price_per_credit = "1500"
  boost_service_id = "creative_boost"
  strict_updates = false
  summary_cache_ttl = "5m"

  [scheduler]
  enabled = true
  interval = "1h"
*/
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/warp/creative-boost/credits"
)

type Config struct {
	Server    ServerConfig    `toml:"server"`
	Database  DatabaseConfig  `toml:"database"`
	Log       LogConfig       `toml:"log"`
	Credits   CreditsConfig   `toml:"credits"`
	Scheduler SchedulerConfig `toml:"scheduler"`
}

type ServerConfig struct {
	Host        string   `toml:"host"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type LogConfig struct {
	Level      string `toml:"level"`
	File       string `toml:"file"`
	Production bool   `toml:"production"`
}

// CreditsConfig holds accounting settings. Amounts are strings so they parse
// as exact decimals.
type CreditsConfig struct {
	DefaultMinCredits     string        `toml:"default_min_credits"`
	DefaultMaxCredits     string        `toml:"default_max_credits"`
	DefaultPricePerCredit string        `toml:"default_price_per_credit"`
	BoostServiceID        string        `toml:"boost_service_id"`
	StrictUpdates         bool          `toml:"strict_updates"`
	SummaryCacheTTL       time.Duration `toml:"summary_cache_ttl"`
}

type SchedulerConfig struct {
	Enabled  bool          `toml:"enabled"`
	Interval time.Duration `toml:"interval"`
}

func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8080,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Database: DatabaseConfig{
			Path: "./data/creative-boost.db",
		},
		Log: LogConfig{
			Level: "info",
		},
		Credits: CreditsConfig{
			DefaultMinCredits:     "30",
			DefaultMaxCredits:     "50",
			DefaultPricePerCredit: "1500",
			BoostServiceID:        credits.DefaultBoostServiceID,
			SummaryCacheTTL:       5 * time.Minute,
		},
		Scheduler: SchedulerConfig{
			Enabled:  true,
			Interval: time.Hour,
		},
	}
}

// Load builds the configuration from defaults, an optional TOML file and the
// environment. An empty path skips the file; a missing file is an error.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Server.Host = getEnv("CB_HOST", c.Server.Host)
	c.Database.Path = getEnv("CB_DB_PATH", c.Database.Path)
	c.Log.Level = getEnv("CB_LOG_LEVEL", c.Log.Level)
	c.Log.File = getEnv("CB_LOG_FILE", c.Log.File)
	c.Credits.DefaultMinCredits = getEnv("CB_DEFAULT_MIN_CREDITS", c.Credits.DefaultMinCredits)
	c.Credits.DefaultMaxCredits = getEnv("CB_DEFAULT_MAX_CREDITS", c.Credits.DefaultMaxCredits)
	c.Credits.DefaultPricePerCredit = getEnv("CB_DEFAULT_PRICE_PER_CREDIT", c.Credits.DefaultPricePerCredit)
	c.Credits.BoostServiceID = getEnv("CB_BOOST_SERVICE_ID", c.Credits.BoostServiceID)

	if v, ok := os.LookupEnv("CB_CORS_ORIGINS"); ok {
		c.Server.CORSOrigins = splitList(v)
	}

	var err error
	if c.Server.Port, err = getEnvAsInt("CB_PORT", c.Server.Port); err != nil {
		return err
	}
	if c.Log.Production, err = getEnvAsBool("CB_LOG_PRODUCTION", c.Log.Production); err != nil {
		return err
	}
	if c.Credits.StrictUpdates, err = getEnvAsBool("CB_STRICT_UPDATES", c.Credits.StrictUpdates); err != nil {
		return err
	}
	if c.Credits.SummaryCacheTTL, err = getEnvAsDuration("CB_SUMMARY_CACHE_TTL", c.Credits.SummaryCacheTTL); err != nil {
		return err
	}
	if c.Scheduler.Enabled, err = getEnvAsBool("CB_SCHEDULER_ENABLED", c.Scheduler.Enabled); err != nil {
		return err
	}
	if c.Scheduler.Interval, err = getEnvAsDuration("CB_SCHEDULER_INTERVAL", c.Scheduler.Interval); err != nil {
		return err
	}
	return nil
}

// Validate checks ranges and that the credit defaults parse.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}
	if c.Scheduler.Enabled && c.Scheduler.Interval <= 0 {
		return fmt.Errorf("invalid scheduler interval %s", c.Scheduler.Interval)
	}
	if c.Credits.SummaryCacheTTL < 0 {
		return fmt.Errorf("invalid summary cache ttl %s", c.Credits.SummaryCacheTTL)
	}
	_, err := c.CreditOptions()
	return err
}

// Addr is the listen address.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// CreditOptions converts the credits section to service options.
func (c Config) CreditOptions() (credits.Options, error) {
	opts := credits.DefaultOptions()
	opts.StrictUpdates = c.Credits.StrictUpdates
	if c.Credits.BoostServiceID != "" {
		opts.BoostServiceID = c.Credits.BoostServiceID
	}

	fields := []struct {
		name  string
		value string
		dst   *decimal.Decimal
	}{
		{"default_min_credits", c.Credits.DefaultMinCredits, &opts.Defaults.MinCredits},
		{"default_max_credits", c.Credits.DefaultMaxCredits, &opts.Defaults.MaxCredits},
		{"default_price_per_credit", c.Credits.DefaultPricePerCredit, &opts.Defaults.PricePerCredit},
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		d, err := decimal.NewFromString(f.value)
		if err != nil {
			return credits.Options{}, fmt.Errorf("invalid %s %q: %w", f.name, f.value, err)
		}
		if d.IsNegative() {
			return credits.Options{}, fmt.Errorf("invalid %s %q: negative", f.name, f.value)
		}
		*f.dst = d
	}
	return opts, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getEnvAsBool(key string, fallback bool) (bool, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func getEnvAsDuration(key string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
