// Package config loads WARK's configuration: a config.yaml overlay for
// deployment-pinned settings, layered under environment-variable
// overrides for the values that actually vary per run (notably
// secrets, which never belong in the YAML file).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// CORSConfig controls the gateway's CORS middleware.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// CallbackRetryConfig controls the judge callback redelivery sweep.
type CallbackRetryConfig struct {
	MaxAttempts     int `yaml:"max_attempts"`
	BaseBackoffSecs int `yaml:"base_backoff_seconds"`
}

// OTelConfig controls telemetry export.
type OTelConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"` // "otlp-http", "stdout", or "none"
	Endpoint string `yaml:"endpoint"`
}

// Config is WARK's full runtime configuration.
type Config struct {
	HomeDir string `yaml:"-"`

	ServerPort int    `yaml:"server_port"`
	AppSecret  string `yaml:"-"` // env-only, never written to YAML

	MaxCost     uint64 `yaml:"max_cost"`
	MaxMemoryMB uint32 `yaml:"max_memory_mb"`

	JudgeMaxCost     uint64 `yaml:"judge_max_cost"`
	JudgeMaxMemoryMB uint32 `yaml:"judge_max_memory_mb"`

	LogLevel string `yaml:"log_level"`

	CORS     CORSConfig          `yaml:"cors"`
	Callback CallbackRetryConfig `yaml:"callback_retry"`
	OTel     OTelConfig          `yaml:"otel"`
}

func defaultConfig() Config {
	return Config{
		ServerPort:       8080,
		MaxCost:          100_000_000,
		MaxMemoryMB:      256,
		JudgeMaxCost:     1_000_000_000,
		JudgeMaxMemoryMB: 2048,
		LogLevel:         "info",
		CORS:             CORSConfig{AllowedOrigins: []string{"*"}},
		Callback: CallbackRetryConfig{
			MaxAttempts:     5,
			BaseBackoffSecs: 60,
		},
		OTel: OTelConfig{Exporter: "none"},
	}
}

// HomeDir resolves the directory WARK stores its config and persistence
// files under, overridable for tests and alternate deployments.
func HomeDir() string {
	if override := os.Getenv("WARK_HOME"); override != "" {
		return override
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "."
	}
	return filepath.Join(home, ".wark")
}

// Load reads config.yaml from HomeDir (if present), applies environment
// overrides, fills defaults, and validates the result.
func Load() (Config, error) {
	cfg := defaultConfig()
	cfg.HomeDir = HomeDir()

	if err := os.MkdirAll(cfg.HomeDir, 0o755); err != nil {
		return cfg, fmt.Errorf("create wark home: %w", err)
	}

	configPath := filepath.Join(cfg.HomeDir, "config.yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("read config.yaml: %w", err)
		}
	} else if len(data) > 0 {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config.yaml: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	normalize(&cfg)
	return cfg, validate(cfg)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("WARK_APP_SECRET"); v != "" {
		cfg.AppSecret = v
	} else if v := os.Getenv("APP_SECRET"); v != "" {
		cfg.AppSecret = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ServerPort = n
		}
	}
	if v := os.Getenv("MAX_COST"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.MaxCost = n
		}
	}
	if v := os.Getenv("MAX_MEMORY"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			cfg.MaxMemoryMB = uint32(n)
		}
	}
	if v := os.Getenv("WARK_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("WARK_OTEL_EXPORTER"); v != "" {
		cfg.OTel.Exporter = v
	}
	if v := os.Getenv("WARK_OTEL_ENDPOINT"); v != "" {
		cfg.OTel.Endpoint = v
	}
	if v := os.Getenv("WARK_CORS_ORIGINS"); v != "" {
		cfg.CORS.AllowedOrigins = strings.Split(v, ",")
	}
}

func normalize(cfg *Config) {
	if cfg.ServerPort <= 0 {
		cfg.ServerPort = 8080
	}
	if cfg.MaxCost == 0 {
		cfg.MaxCost = 100_000_000
	}
	if cfg.MaxMemoryMB == 0 {
		cfg.MaxMemoryMB = 256
	}
	if cfg.JudgeMaxCost == 0 {
		cfg.JudgeMaxCost = 1_000_000_000
	}
	if cfg.JudgeMaxMemoryMB == 0 {
		cfg.JudgeMaxMemoryMB = 2048
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Callback.MaxAttempts <= 0 {
		cfg.Callback.MaxAttempts = 5
	}
	if cfg.Callback.BaseBackoffSecs <= 0 {
		cfg.Callback.BaseBackoffSecs = 60
	}
	if cfg.OTel.Exporter == "" {
		cfg.OTel.Exporter = "none"
	}
}

func validate(cfg Config) error {
	if cfg.AppSecret == "" {
		return fmt.Errorf("config: APP_SECRET (or WARK_APP_SECRET) must be set")
	}
	return nil
}

// BaseBackoff returns the base retry backoff as a time.Duration
// convenience, used by internal/judge's retry sweep when it reschedules
// a failed delivery.
func (c CallbackRetryConfig) BaseBackoff() time.Duration {
	return time.Duration(c.BaseBackoffSecs) * time.Second
}
