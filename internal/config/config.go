// Package config assembles and validates scoutmcpd's runtime options.
// Assembly order is defaults, then an optional JSON file, then SCOUT_*
// environment overrides. Validation uses struct tags via
// github.com/go-playground/validator/v10, distinct from the
// internal/validate package: that package vets individual request values
// against shell-injection rules; this one checks that the assembled Config
// itself is internally consistent (ranges, required fields).
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds every recognized runtime option. Unknown options in a loaded
// file are rejected by Load.
type Config struct {
	MaxPoolSize        int           `json:"max_pool_size" validate:"min=1"`
	IdleTimeout        time.Duration `json:"idle_timeout" validate:"min=1000000000"`
	MaxLifetime        time.Duration `json:"max_lifetime"`
	ConnectTimeout     time.Duration `json:"connect_timeout" validate:"min=1000000000"`
	CommandTimeout     time.Duration `json:"command_timeout" validate:"min=1000000000"`
	MaxFileBytes        int64        `json:"max_file_bytes" validate:"min=1"`
	MaxOutputBytes       int64       `json:"max_output_bytes" validate:"min=1"`
	KnownHostsPath      string       `json:"known_hosts_path" validate:"required"`
	RateLimitPerMinute  int          `json:"rate_limit_per_minute" validate:"min=0"`
	RateLimitBurst      int          `json:"rate_limit_burst" validate:"min=1"`
	APIKeys             []string     `json:"api_keys"`
	HealthMethodName    string       `json:"health_method_name" validate:"required"`
	InventoryPath       string       `json:"inventory_path" validate:"required"`
}

// Default returns the built-in defaults. KnownHostsPath has no sane
// built-in default (a missing trust anchor must fail closed), so Default
// leaves it empty; Load requires the caller (or the "none" sentinel) to
// set it explicitly.
func Default() Config {
	return Config{
		MaxPoolSize:        100,
		IdleTimeout:        60 * time.Second,
		MaxLifetime:        0,
		ConnectTimeout:     10 * time.Second,
		CommandTimeout:     30 * time.Second,
		MaxFileBytes:       1_048_576,
		MaxOutputBytes:     10_000_000,
		KnownHostsPath:     "",
		RateLimitPerMinute: 60,
		RateLimitBurst:     10,
		APIKeys:            nil,
		HealthMethodName:   "health",
		InventoryPath:      "",
	}
}

// Load builds a Config from defaults, an optional JSON file at path (skipped
// if path is empty), and SCOUT_* environment variables, then validates it.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config file %q: %w", path, err)
		}
		defer f.Close()

		dec := json.NewDecoder(f)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config file %q: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v, ok := envInt("SCOUT_MAX_POOL_SIZE"); ok {
		cfg.MaxPoolSize = v
	}
	if v, ok := envDuration("SCOUT_IDLE_TIMEOUT"); ok {
		cfg.IdleTimeout = v
	}
	if v, ok := envDuration("SCOUT_MAX_LIFETIME"); ok {
		cfg.MaxLifetime = v
	}
	if v, ok := envDuration("SCOUT_CONNECT_TIMEOUT"); ok {
		cfg.ConnectTimeout = v
	}
	if v, ok := envDuration("SCOUT_COMMAND_TIMEOUT"); ok {
		cfg.CommandTimeout = v
	}
	if v, ok := envInt64("SCOUT_MAX_FILE_BYTES"); ok {
		cfg.MaxFileBytes = v
	}
	if v, ok := envInt64("SCOUT_MAX_OUTPUT_BYTES"); ok {
		cfg.MaxOutputBytes = v
	}
	if v, ok := os.LookupEnv("SCOUT_KNOWN_HOSTS_PATH"); ok {
		cfg.KnownHostsPath = v
	}
	if v, ok := envInt("SCOUT_RATE_LIMIT_PER_MINUTE"); ok {
		cfg.RateLimitPerMinute = v
	}
	if v, ok := envInt("SCOUT_RATE_LIMIT_BURST"); ok {
		cfg.RateLimitBurst = v
	}
	if v, ok := os.LookupEnv("SCOUT_HEALTH_METHOD_NAME"); ok {
		cfg.HealthMethodName = v
	}
	if v, ok := os.LookupEnv("SCOUT_INVENTORY_PATH"); ok {
		cfg.InventoryPath = v
	}
}

func envInt(key string) (int, bool) {
	s, ok := os.LookupEnv(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envInt64(key string) (int64, bool) {
	s, ok := os.LookupEnv(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envDuration(key string) (time.Duration, bool) {
	s, ok := os.LookupEnv(key)
	if !ok {
		return 0, false
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, false
	}
	return d, true
}

var structValidator = validator.New()

// Validate checks Config's struct tags and the fields validator/v10 tags
// can't express (the "none" sentinel and the KnownHostsPath fail-closed
// rule).
func Validate(cfg Config) error {
	if cfg.KnownHostsPath == "" {
		return fmt.Errorf("known_hosts_path is required (set to %q to explicitly disable host key verification)", "none")
	}
	if err := structValidator.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// KnownHostsDisabled reports whether the configured trust anchor is the
// explicit opt-out sentinel.
func (c Config) KnownHostsDisabled() bool {
	return c.KnownHostsPath == "none"
}
