package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Subscription gate modes.
const (
	GateOff      = "off"      // never verify
	GateOptional = "optional" // verify only when user_id is present
	GateRequired = "required" // user_id is mandatory
)

// DefaultThreshold is used when filter.threshold is absent or empty.
const DefaultThreshold = 0.85

// Config holds the tenderfilter API configuration.
type Config struct {
	HTTP         HTTPConfig         `yaml:"http"`
	Dataset      DatasetConfig      `yaml:"dataset"`
	Filter       FilterConfig       `yaml:"filter"`
	Subscription SubscriptionConfig `yaml:"subscription"`
	Cache        CacheConfig        `yaml:"cache"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatasetConfig holds the remote tender source settings.
type DatasetConfig struct {
	URL        string        `yaml:"url"`
	TimeoutSec int           `yaml:"timeout_sec"`
	Breaker    BreakerConfig `yaml:"breaker"`
}

// FilterConfig holds relevance filter settings.
type FilterConfig struct {
	Threshold        *float64 `yaml:"threshold"` // nil = DefaultThreshold; 0 is a valid value
	MinKeywordLength int      `yaml:"min_keyword_length"`
	MaxResults       int      `yaml:"max_results"`
	// KeepDuplicates counts a repeated query token once per occurrence.
	KeepDuplicates bool `yaml:"keep_duplicate_keywords"`
}

// SubscriptionConfig holds Razorpay subscription gate settings.
type SubscriptionConfig struct {
	Mode        string        `yaml:"mode"` // off, optional, required (default: optional)
	BaseURL     string        `yaml:"base_url"`
	KeyID       string        `yaml:"key_id"`
	KeySecret   string        `yaml:"key_secret"`
	PlanID      string        `yaml:"plan_id"`
	AccessURL   string        `yaml:"access_url"`
	TimeoutSec  int           `yaml:"timeout_sec"`
	CacheTTLSec int           `yaml:"cache_ttl_sec"` // 0 = verification results are not cached
	Breaker     BreakerConfig `yaml:"breaker"`
}

// BreakerConfig holds circuit breaker settings for an outbound dependency.
type BreakerConfig struct {
	MaxFailures uint32 `yaml:"max_failures"`
	OpenSec     int    `yaml:"open_sec"`
}

// CacheConfig holds the optional Valkey/Redis connection settings.
type CacheConfig struct {
	Driver           string   `yaml:"driver"` // none, valkey (default: none)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse decodes YAML config bytes, expanding ${VAR} references, then applies defaults and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Dataset.TimeoutSec <= 0 {
		c.Dataset.TimeoutSec = 10
	}
	c.Dataset.Breaker.applyDefaults()
	if c.Filter.Threshold == nil {
		th := DefaultThreshold
		c.Filter.Threshold = &th
	}
	if c.Filter.MinKeywordLength <= 0 {
		c.Filter.MinKeywordLength = 3
	}
	if c.Filter.MaxResults <= 0 {
		c.Filter.MaxResults = 10
	}
	if c.Subscription.Mode == "" {
		c.Subscription.Mode = GateOptional
	}
	if c.Subscription.BaseURL == "" {
		c.Subscription.BaseURL = "https://api.razorpay.com"
	}
	if c.Subscription.TimeoutSec <= 0 {
		c.Subscription.TimeoutSec = 5
	}
	c.Subscription.Breaker.applyDefaults()
	if c.Cache.Driver == "" {
		c.Cache.Driver = "none"
	}
	if c.Cache.ReadinessTimeout <= 0 {
		c.Cache.ReadinessTimeout = 10
	}
}

func (b *BreakerConfig) applyDefaults() {
	if b.MaxFailures == 0 {
		b.MaxFailures = 5
	}
	if b.OpenSec <= 0 {
		b.OpenSec = 30
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Filter.Threshold == nil {
		return fmt.Errorf("filter.threshold is required")
	}
	if th := *c.Filter.Threshold; th < 0 || th > 1 {
		return fmt.Errorf("filter.threshold must be between 0 and 1, got %g", th)
	}
	if err := validateURL("dataset.url", c.Dataset.URL); err != nil {
		return err
	}

	switch c.Subscription.Mode {
	case GateOff:
	case GateOptional, GateRequired:
		if c.Subscription.KeyID == "" || c.Subscription.KeySecret == "" {
			return fmt.Errorf("subscription.key_id and subscription.key_secret are required when mode is %q",
				c.Subscription.Mode)
		}
		if c.Subscription.PlanID == "" {
			return fmt.Errorf("subscription.plan_id is required when mode is %q", c.Subscription.Mode)
		}
		if err := validateURL("subscription.base_url", c.Subscription.BaseURL); err != nil {
			return err
		}
	default:
		return fmt.Errorf(
			"subscription.mode must be %q, %q or %q, got %q",
			GateOff, GateOptional, GateRequired, c.Subscription.Mode,
		)
	}
	if c.Subscription.CacheTTLSec < 0 {
		return fmt.Errorf("subscription.cache_ttl_sec must not be negative, got %d", c.Subscription.CacheTTLSec)
	}

	switch c.Cache.Driver {
	case "none":
	case "valkey":
		if len(c.Cache.Addrs) == 0 {
			return fmt.Errorf("cache.addrs is required when cache.driver is valkey")
		}
	default:
		return fmt.Errorf("cache.driver must be \"none\" or \"valkey\", got %q", c.Cache.Driver)
	}
	return nil
}

func validateURL(name, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", name)
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%s must be an absolute http(s) URL, got %q", name, raw)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
