// Package config loads engine configuration from the environment, with an
// optional YAML file override pointed at by SPANLIGHT_CONFIG.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all engine configuration.
type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	Analyzer  AnalyzerConfig
	Monitor   MonitorConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
	Stream    StreamConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"SPANLIGHT_PORT" default:"8090" yaml:"port"`
	Host string `envconfig:"SPANLIGHT_HOST" default:"0.0.0.0" yaml:"host"`
}

// StoreConfig holds trace store retention configuration.
type StoreConfig struct {
	MaxTraces     int           `envconfig:"SPANLIGHT_STORE_MAX_TRACES" default:"2000" yaml:"max_traces"`
	TraceTTL      time.Duration `envconfig:"SPANLIGHT_STORE_TRACE_TTL" default:"2h" yaml:"trace_ttl"`
	SweepInterval time.Duration `envconfig:"SPANLIGHT_STORE_SWEEP_INTERVAL" default:"5m" yaml:"sweep_interval"`
}

// AnalyzerConfig holds analysis thresholds.
type AnalyzerConfig struct {
	SlowThreshold     time.Duration `envconfig:"SPANLIGHT_ANALYZER_SLOW_THRESHOLD" default:"1s" yaml:"slow_threshold"`
	VerySlowThreshold time.Duration `envconfig:"SPANLIGHT_ANALYZER_VERY_SLOW_THRESHOLD" default:"5s" yaml:"very_slow_threshold"`
	MemoryConcernMB   float64       `envconfig:"SPANLIGHT_ANALYZER_MEMORY_CONCERN_MB" default:"100" yaml:"memory_concern_mb"`
	MemoryPoorMB      float64       `envconfig:"SPANLIGHT_ANALYZER_MEMORY_POOR_MB" default:"500" yaml:"memory_poor_mb"`
}

// MonitorConfig holds aggregate monitor window sizes.
type MonitorConfig struct {
	HistorySize  int `envconfig:"SPANLIGHT_MONITOR_HISTORY_SIZE" default:"100" yaml:"history_size"`
	HealthWindow int `envconfig:"SPANLIGHT_MONITOR_HEALTH_WINDOW" default:"50" yaml:"health_window"`
	TrendWindow  int `envconfig:"SPANLIGHT_MONITOR_TREND_WINDOW" default:"5" yaml:"trend_window"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"SPANLIGHT_LOG_LEVEL" default:"info" yaml:"level"`
	Development bool   `envconfig:"SPANLIGHT_LOG_DEV" default:"false" yaml:"development"`
}

// RateLimitConfig holds rate limiting configuration for the query surface.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"SPANLIGHT_RATE_LIMIT_RPS" default:"100" yaml:"requests_per_second"`
	Burst             int  `envconfig:"SPANLIGHT_RATE_LIMIT_BURST" default:"200" yaml:"burst"`
	Enabled           bool `envconfig:"SPANLIGHT_RATE_LIMIT_ENABLED" default:"true" yaml:"enabled"`
}

// StreamConfig holds websocket streaming configuration.
type StreamConfig struct {
	PushInterval time.Duration `envconfig:"SPANLIGHT_STREAM_PUSH_INTERVAL" default:"5s" yaml:"push_interval"`
}

// Load loads configuration from environment variables, then applies the YAML
// file named by SPANLIGHT_CONFIG on top, if set. Variable names are spelled
// out in full in the struct tags; envconfig ignores its prefix argument for
// fields with an explicit tag.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if path := os.Getenv("SPANLIGHT_CONFIG"); path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return nil, err
		}
	}

	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns defaults.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8090",
			Host: "0.0.0.0",
		},
		Store: StoreConfig{
			MaxTraces:     2000,
			TraceTTL:      2 * time.Hour,
			SweepInterval: 5 * time.Minute,
		},
		Analyzer: AnalyzerConfig{
			SlowThreshold:     time.Second,
			VerySlowThreshold: 5 * time.Second,
			MemoryConcernMB:   100,
			MemoryPoorMB:      500,
		},
		Monitor: MonitorConfig{
			HistorySize:  100,
			HealthWindow: 50,
			TrendWindow:  5,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
		Stream: StreamConfig{
			PushInterval: 5 * time.Second,
		},
	}
}

// applyFile overlays YAML file values onto cfg.
func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}
