// Package config loads and validates docfetch configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/docfetch/docfetch/internal/doctype"
	"github.com/docfetch/docfetch/internal/search"
)

// Config captures every tunable loaded via Viper. CLI flags override these
// values per session.
type Config struct {
	Search  SearchConfig  `mapstructure:"search"`
	Fetch   FetchConfig   `mapstructure:"fetch"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// SearchConfig governs search backend behavior.
type SearchConfig struct {
	Engine       string   `mapstructure:"engine"`
	MaxPages     int      `mapstructure:"max_pages"`
	PauseSeconds int      `mapstructure:"pause_seconds"`
	UserAgents   []string `mapstructure:"user_agents"`
}

// FetchConfig governs the download pipeline.
type FetchConfig struct {
	MaxDocuments int `mapstructure:"max_documents"`
	Workers      int `mapstructure:"workers"`
	SampleBytes  int `mapstructure:"sample_bytes"`
	MaxRetries   int `mapstructure:"max_retries"`
	BackoffBaseS int `mapstructure:"backoff_base_seconds"`
}

// HTTPConfig configures outbound HTTP client behavior.
type HTTPConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// LoggingConfig selects the logger profile and verbosity.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// MetricsConfig controls the optional Prometheus listener.
type MetricsConfig struct {
	Listen string `mapstructure:"listen"`
}

// defaultUserAgents is a small pool of realistic browser User-Agents rotated
// across outbound requests.
var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/115.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 13_4) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.5 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/114.0 Safari/537.36",
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("DOCFETCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("search.engine", search.EngineDuckDuckGo)
	v.SetDefault("search.max_pages", 3)
	v.SetDefault("search.pause_seconds", 2)
	v.SetDefault("search.user_agents", defaultUserAgents)
	v.SetDefault("fetch.max_documents", 5)
	v.SetDefault("fetch.workers", 5)
	v.SetDefault("fetch.sample_bytes", 3072)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.backoff_base_seconds", 1)
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if !search.ValidEngine(c.Search.Engine) {
		return fmt.Errorf("search.engine %q is not a known engine", c.Search.Engine)
	}
	if c.Search.MaxPages <= 0 {
		return fmt.Errorf("search.max_pages must be > 0")
	}
	if len(c.Search.UserAgents) == 0 {
		return fmt.Errorf("search.user_agents must not be empty")
	}
	if c.Fetch.MaxDocuments <= 0 {
		return fmt.Errorf("fetch.max_documents must be > 0")
	}
	if c.Fetch.Workers <= 0 {
		return fmt.Errorf("fetch.workers must be > 0")
	}
	if c.Fetch.SampleBytes <= 0 {
		return fmt.Errorf("fetch.sample_bytes must be > 0")
	}
	if c.Fetch.MaxRetries < 0 {
		return fmt.Errorf("fetch.max_retries must be >= 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	return nil
}

// RequestTimeout converts the HTTP timeout into a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// SearchPause converts the inter-query pause into a duration.
func (c Config) SearchPause() time.Duration {
	return time.Duration(c.Search.PauseSeconds) * time.Second
}

// BackoffBase converts the retry base delay into a duration.
func (c Config) BackoffBase() time.Duration {
	return time.Duration(c.Fetch.BackoffBaseS) * time.Second
}

// SessionConfig is the immutable per-session input shared by all components.
type SessionConfig struct {
	Subject      string
	MaxDocuments int
	WorkerCount  int
	AllowedTypes []doctype.Type
	Engine       string
	OutputDir    string
}

// Validate rejects sessions that must not start.
func (s SessionConfig) Validate() error {
	if strings.TrimSpace(s.Subject) == "" {
		return fmt.Errorf("subject must not be empty")
	}
	if s.MaxDocuments <= 0 {
		return fmt.Errorf("max documents must be > 0")
	}
	if s.WorkerCount <= 0 {
		return fmt.Errorf("worker count must be > 0")
	}
	if !search.ValidEngine(s.Engine) {
		return fmt.Errorf("unknown search engine %q", s.Engine)
	}
	if s.OutputDir == "" {
		return fmt.Errorf("output directory must be set")
	}
	return nil
}
