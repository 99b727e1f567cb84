/*
config.go - Application configuration

PURPOSE:
  Loads the settings shared by the server and the report CLI.

LOAD ORDER (later wins):
  1. Defaults()
  2. Optional config file, by extension: .yaml/.yml, .toml, .json
  3. .env in the working directory (never overrides real env vars)
  4. SHIFT_* environment variables
  5. Validate()

  Command-line flags are applied by the binaries after Load.

ENVIRONMENT:
  SHIFT_ENV                 development | production
  SHIFT_LOG_LEVEL           debug | info | warn | error
  SHIFT_ADDR                HTTP listen address (PORT is accepted too)
  SHIFT_DB_PATH             SQLite file, or :memory:
  SHIFT_ALLOWED_ORIGINS     Comma-separated CORS origins
  SHIFT_ENABLE_SCENARIOS    true to mount /api/scenarios
  SHIFT_REDIS_ADDR          Empty keeps the latest-month cache in process
  SHIFT_REDIS_PASSWORD
  SHIFT_REDIS_DB
  SHIFT_CACHE_TTL           e.g. 1h
  SHIFT_REFRESH_INTERVAL    e.g. 15m
  SHIFT_REFRESH_DISABLED    true to skip the background refresher
  SHIFT_STRICT_SHIFT_TYPES  true to fail reports on unknown shifts or missing rates

SEE ALSO:
  - cmd/server/main.go
  - cmd/allowance-report/main.go
*/
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Environment string          `yaml:"environment" toml:"environment" json:"environment"`
	LogLevel    string          `yaml:"log_level" toml:"log_level" json:"log_level"`
	Server      ServerConfig    `yaml:"server" toml:"server" json:"server"`
	Database    DatabaseConfig  `yaml:"database" toml:"database" json:"database"`
	Redis       RedisConfig     `yaml:"redis" toml:"redis" json:"redis"`
	Refresh     RefreshConfig   `yaml:"refresh" toml:"refresh" json:"refresh"`
	Allowance   AllowanceConfig `yaml:"allowance" toml:"allowance" json:"allowance"`
}

type ServerConfig struct {
	Addr            string   `yaml:"addr" toml:"addr" json:"addr"`
	AllowedOrigins  []string `yaml:"allowed_origins" toml:"allowed_origins" json:"allowed_origins"`
	EnableScenarios bool     `yaml:"enable_scenarios" toml:"enable_scenarios" json:"enable_scenarios"`
	ReadTimeout     string   `yaml:"read_timeout" toml:"read_timeout" json:"read_timeout"`
	WriteTimeout    string   `yaml:"write_timeout" toml:"write_timeout" json:"write_timeout"`
	IdleTimeout     string   `yaml:"idle_timeout" toml:"idle_timeout" json:"idle_timeout"`
	ShutdownTimeout string   `yaml:"shutdown_timeout" toml:"shutdown_timeout" json:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Path string `yaml:"path" toml:"path" json:"path"`
}

// RedisConfig enables the shared latest-month cache when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr" toml:"addr" json:"addr"`
	Password string `yaml:"password" toml:"password" json:"password"`
	DB       int    `yaml:"db" toml:"db" json:"db"`
	Key      string `yaml:"key" toml:"key" json:"key"`
	TTL      string `yaml:"ttl" toml:"ttl" json:"ttl"`
}

type RefreshConfig struct {
	Disabled bool   `yaml:"disabled" toml:"disabled" json:"disabled"`
	Interval string `yaml:"interval" toml:"interval" json:"interval"`
}

type AllowanceConfig struct {
	StrictShiftTypes bool `yaml:"strict_shift_types" toml:"strict_shift_types" json:"strict_shift_types"`
	// ClientAliases maps short client codes to full client names.
	ClientAliases map[string]string `yaml:"client_aliases" toml:"client_aliases" json:"client_aliases"`
}

// Defaults returns a development configuration.
func Defaults() *Config {
	return &Config{
		Environment: "development",
		LogLevel:    "info",
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     "15s",
			WriteTimeout:    "15s",
			IdleTimeout:     "60s",
			ShutdownTimeout: "30s",
		},
		Database: DatabaseConfig{Path: "shift_allowance.db"},
		Redis: RedisConfig{
			Key: "shift-allowance:latest-month",
			TTL: "1h",
		},
		Refresh: RefreshConfig{Interval: "15m"},
	}
}

// Load builds the configuration. path may be empty.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
		cfg.fillDefaults()
	}

	// .env is optional
	_ = godotenv.Load()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("error accessing config file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory, not a file", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if err := toml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("error parsing TOML file: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("error parsing YAML file: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, c); err != nil {
			return fmt.Errorf("error parsing JSON file: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config file format: %s", ext)
	}
	return nil
}

// fillDefaults restores defaults for string settings a file left empty.
func (c *Config) fillDefaults() {
	d := Defaults()
	setIfEmpty := func(dst *string, def string) {
		if *dst == "" {
			*dst = def
		}
	}
	setIfEmpty(&c.Environment, d.Environment)
	setIfEmpty(&c.LogLevel, d.LogLevel)
	setIfEmpty(&c.Server.Addr, d.Server.Addr)
	setIfEmpty(&c.Server.ReadTimeout, d.Server.ReadTimeout)
	setIfEmpty(&c.Server.WriteTimeout, d.Server.WriteTimeout)
	setIfEmpty(&c.Server.IdleTimeout, d.Server.IdleTimeout)
	setIfEmpty(&c.Server.ShutdownTimeout, d.Server.ShutdownTimeout)
	setIfEmpty(&c.Database.Path, d.Database.Path)
	setIfEmpty(&c.Redis.Key, d.Redis.Key)
	setIfEmpty(&c.Redis.TTL, d.Redis.TTL)
	setIfEmpty(&c.Refresh.Interval, d.Refresh.Interval)
}

func (c *Config) applyEnv() {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := os.LookupEnv(key); ok {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}

	str("SHIFT_ENV", &c.Environment)
	str("SHIFT_LOG_LEVEL", &c.LogLevel)
	if port := os.Getenv("PORT"); port != "" {
		c.Server.Addr = ":" + port
	}
	str("SHIFT_ADDR", &c.Server.Addr)
	str("SHIFT_DB_PATH", &c.Database.Path)
	if v := os.Getenv("SHIFT_ALLOWED_ORIGINS"); v != "" {
		c.Server.AllowedOrigins = splitList(v)
	}
	boolean("SHIFT_ENABLE_SCENARIOS", &c.Server.EnableScenarios)
	str("SHIFT_REDIS_ADDR", &c.Redis.Addr)
	str("SHIFT_REDIS_PASSWORD", &c.Redis.Password)
	if v := os.Getenv("SHIFT_REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Redis.DB = n
		}
	}
	str("SHIFT_CACHE_TTL", &c.Redis.TTL)
	str("SHIFT_REFRESH_INTERVAL", &c.Refresh.Interval)
	boolean("SHIFT_REFRESH_DISABLED", &c.Refresh.Disabled)
	boolean("SHIFT_STRICT_SHIFT_TYPES", &c.Allowance.StrictShiftTypes)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// =============================================================================
// VALIDATION
// =============================================================================

var logLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate checks every setting and reports all problems at once.
func (c *Config) Validate() error {
	var problems []string

	if c.Environment != "development" && c.Environment != "production" {
		problems = append(problems, fmt.Sprintf("environment must be development or production, got %q", c.Environment))
	}
	if !logLevels[strings.ToLower(c.LogLevel)] {
		problems = append(problems, fmt.Sprintf("log_level %q is not one of debug, info, warn, error", c.LogLevel))
	}
	if c.Server.Addr == "" {
		problems = append(problems, "server.addr is required")
	}
	if c.Database.Path == "" {
		problems = append(problems, "database.path is required")
	}
	if c.Redis.DB < 0 {
		problems = append(problems, "redis.db must be >= 0")
	}

	durations := map[string]string{
		"server.read_timeout":     c.Server.ReadTimeout,
		"server.write_timeout":    c.Server.WriteTimeout,
		"server.idle_timeout":     c.Server.IdleTimeout,
		"server.shutdown_timeout": c.Server.ShutdownTimeout,
		"redis.ttl":               c.Redis.TTL,
		"refresh.interval":        c.Refresh.Interval,
	}
	for _, name := range []string{
		"server.read_timeout", "server.write_timeout", "server.idle_timeout",
		"server.shutdown_timeout", "redis.ttl", "refresh.interval",
	} {
		d, err := time.ParseDuration(durations[name])
		if err != nil || d <= 0 {
			problems = append(problems, fmt.Sprintf("%s must be a positive duration, got %q", name, durations[name]))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// duration parses a value already checked by Validate.
func duration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}

func (s ServerConfig) Timeouts() (read, write, idle, shutdown time.Duration) {
	return duration(s.ReadTimeout), duration(s.WriteTimeout), duration(s.IdleTimeout), duration(s.ShutdownTimeout)
}

func (r RedisConfig) Enabled() bool            { return r.Addr != "" }
func (r RedisConfig) TTLDuration() time.Duration { return duration(r.TTL) }

func (r RefreshConfig) IntervalDuration() time.Duration { return duration(r.Interval) }

func (c *Config) IsProduction() bool { return c.Environment == "production" }
