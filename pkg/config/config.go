// Package config loads the thingctl configuration file and Thing profiles.
//
// Values are read from YAML, then overridden from SAFETHING_* environment
// variables, then validated. Durations are strings in time.ParseDuration
// form.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/safething/safething-go/pkg/action"
	"github.com/safething/safething-go/pkg/subscription"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendNATS   = "nats"
	BackendSQLite = "sqlite"
)

// Config is the thingctl configuration.
type Config struct {
	Thing struct {
		ID      string `yaml:"id"`
		Profile string `yaml:"profile"`
	} `yaml:"thing"`
	Store struct {
		Backend string `yaml:"backend"`
		NATS    struct {
			URL     string `yaml:"url"`
			Bucket  string `yaml:"bucket"`
			Timeout string `yaml:"timeout"`
		} `yaml:"nats"`
		SQLite struct {
			Path string `yaml:"path"`
		} `yaml:"sqlite"`
		OpsPerSecond     float64 `yaml:"ops_per_second"`
		Burst            int     `yaml:"burst"`
		FailureThreshold int     `yaml:"failure_threshold"`
		InitialBackoff   string  `yaml:"initial_backoff"`
		MaxBackoff       string  `yaml:"max_backoff"`
	} `yaml:"store"`
	Polling struct {
		Subscription   string `yaml:"subscription"`
		Receiver       string `yaml:"receiver"`
		Monitor        string `yaml:"monitor"`
		RequestTimeout string `yaml:"request_timeout"`
		NotifyTimeout  bool   `yaml:"notify_timeout"`
		ForceDone      bool   `yaml:"force_done"`
	} `yaml:"polling"`
	Logging struct {
		Level       string `yaml:"level"`
		Format      string `yaml:"format"`
		ProtocolLog string `yaml:"protocol_log"`
	} `yaml:"logging"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Listen  string `yaml:"listen"`
	} `yaml:"metrics"`
	Ledger struct {
		Path      string `yaml:"path"`
		Retention string `yaml:"retention"`
	} `yaml:"ledger"`
}

// Default returns the built-in configuration.
func Default() Config {
	var cfg Config
	cfg.Store.Backend = BackendMemory
	cfg.Store.NATS.URL = "nats://127.0.0.1:4222"
	cfg.Store.NATS.Bucket = "safething"
	cfg.Store.NATS.Timeout = "5s"
	cfg.Store.SQLite.Path = "./safething.db"
	cfg.Store.FailureThreshold = 3
	cfg.Store.InitialBackoff = "500ms"
	cfg.Store.MaxBackoff = "30s"
	cfg.Polling.Subscription = subscription.DefaultPollInterval.String()
	cfg.Polling.Receiver = action.DefaultReceiveInterval.String()
	cfg.Polling.Monitor = action.DefaultMonitorInterval.String()
	cfg.Polling.RequestTimeout = action.DefaultTimeout.String()
	cfg.Logging.Level = "info"
	cfg.Logging.Format = "text"
	cfg.Metrics.Enabled = true
	cfg.Metrics.Listen = "127.0.0.1:9417"
	cfg.Ledger.Retention = "24h"
	return cfg
}

// Load reads the file at path over the defaults. An empty path uses the
// defaults alone.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}
	overrideFromEnv(&cfg)
	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func overrideFromEnv(cfg *Config) {
	if v := os.Getenv("SAFETHING_THING_ID"); v != "" {
		cfg.Thing.ID = v
	}
	if v := os.Getenv("SAFETHING_PROFILE"); v != "" {
		cfg.Thing.Profile = v
	}
	if v := os.Getenv("SAFETHING_STORE_BACKEND"); v != "" {
		cfg.Store.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("SAFETHING_NATS_URL"); v != "" {
		cfg.Store.NATS.URL = v
	}
	if v := os.Getenv("SAFETHING_NATS_BUCKET"); v != "" {
		cfg.Store.NATS.Bucket = v
	}
	if v := os.Getenv("SAFETHING_SQLITE_PATH"); v != "" {
		cfg.Store.SQLite.Path = v
	}
	if v := os.Getenv("SAFETHING_OPS_PER_SECOND"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Store.OpsPerSecond = f
		}
	}
	if v := os.Getenv("SAFETHING_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SAFETHING_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("SAFETHING_PROTOCOL_LOG"); v != "" {
		cfg.Logging.ProtocolLog = v
	}
	if v := os.Getenv("SAFETHING_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("SAFETHING_METRICS_LISTEN"); v != "" {
		cfg.Metrics.Listen = v
	}
	if v := os.Getenv("SAFETHING_LEDGER_PATH"); v != "" {
		cfg.Ledger.Path = v
	}
}

func validate(cfg Config) error {
	switch cfg.Store.Backend {
	case BackendMemory:
	case BackendNATS:
		if strings.TrimSpace(cfg.Store.NATS.URL) == "" {
			return errors.New("store.nats.url is required for the nats backend")
		}
	case BackendSQLite:
		if strings.TrimSpace(cfg.Store.SQLite.Path) == "" {
			return errors.New("store.sqlite.path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("invalid store.backend: %s", cfg.Store.Backend)
	}
	if cfg.Store.OpsPerSecond < 0 {
		return errors.New("store.ops_per_second must be >= 0")
	}
	if cfg.Store.FailureThreshold < 0 {
		return errors.New("store.failure_threshold must be >= 0")
	}
	durations := []struct {
		name, value string
	}{
		{"store.nats.timeout", cfg.Store.NATS.Timeout},
		{"store.initial_backoff", cfg.Store.InitialBackoff},
		{"store.max_backoff", cfg.Store.MaxBackoff},
		{"polling.subscription", cfg.Polling.Subscription},
		{"polling.receiver", cfg.Polling.Receiver},
		{"polling.monitor", cfg.Polling.Monitor},
		{"polling.request_timeout", cfg.Polling.RequestTimeout},
		{"ledger.retention", cfg.Ledger.Retention},
	}
	for _, d := range durations {
		if _, err := parseDuration(d.value); err != nil {
			return fmt.Errorf("%s: %w", d.name, err)
		}
	}
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level: %s", cfg.Logging.Level)
	}
	switch strings.ToLower(cfg.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("invalid logging.format: %s", cfg.Logging.Format)
	}
	if cfg.Metrics.Enabled && strings.TrimSpace(cfg.Metrics.Listen) == "" {
		return errors.New("metrics.listen is required when metrics are enabled")
	}
	return nil
}

// parseDuration accepts an empty string as zero. Negative values are
// rejected.
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %s", s)
	}
	return d, nil
}

// Duration returns a validated duration field. Invalid values yield zero,
// which the runtime replaces with its default.
func Duration(s string) time.Duration {
	d, _ := parseDuration(s)
	return d
}
