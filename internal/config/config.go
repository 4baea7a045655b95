package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kjstillabower/hoosier-weekend-helper/internal/validation"
)

// Config holds service configuration loaded from YAML and env.
type Config struct {
	ServerPort string

	WeatherAPIURL     string
	WeatherAPITimeout time.Duration
	WeatherUserAgent  string

	RateLimitRPS   int // 0 when rate limiting is disabled
	RateLimitBurst int

	CircuitBreakerEnabled          bool
	CircuitBreakerFailureThreshold int
	CircuitBreakerSuccessThreshold int
	CircuitBreakerTimeout          time.Duration

	ShutdownTimeout               time.Duration
	ShutdownInFlightTimeout       time.Duration
	ShutdownInFlightCheckInterval time.Duration

	OverloadWindow       time.Duration
	OverloadThresholdPct int
	DegradedWindow       time.Duration
	DegradedFallbackPct  int

	TownMinLength int
	TownMaxLength int
}

type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	WeatherAPI struct {
		URL       string `yaml:"url"`
		Timeout   string `yaml:"timeout"`
		UserAgent string `yaml:"user_agent"`
	} `yaml:"weather_api"`

	Reliability struct {
		RateLimitRPS   *int `yaml:"rate_limit_rps"` // 0 disables; unset uses the default
		RateLimitBurst int  `yaml:"rate_limit_burst"`
		CircuitBreaker struct {
			Enabled          bool   `yaml:"enabled"`
			FailureThreshold int    `yaml:"failure_threshold"`
			SuccessThreshold int    `yaml:"success_threshold"`
			Timeout          string `yaml:"timeout"`
		} `yaml:"circuit_breaker"`
	} `yaml:"reliability"`

	Shutdown struct {
		Timeout               string `yaml:"timeout"`
		InFlightTimeout       string `yaml:"in_flight_timeout"`
		InFlightCheckInterval string `yaml:"in_flight_check_interval"`
	} `yaml:"shutdown"`

	Lifecycle struct {
		OverloadWindow       string `yaml:"overload_window"`
		OverloadThresholdPct int    `yaml:"overload_threshold_pct"`
		DegradedWindow       string `yaml:"degraded_window"`
		DegradedFallbackPct  int    `yaml:"degraded_fallback_pct"`
	} `yaml:"lifecycle"`

	Validation struct {
		TownMinLength int `yaml:"town_min_length"`
		TownMaxLength int `yaml:"town_max_length"`
	} `yaml:"validation"`
}

// Load reads configuration from config/{ENV_NAME}.yaml (default dev) relative to the
// working directory. Call from project root.
func Load() (*Config, error) {
	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	return LoadFile(filepath.Join(cwd, "config", env+".yaml"))
}

// LoadFile reads configuration from path and applies env overrides.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return build(fc)
}

// Defaults returns the configuration used when no file is present (e.g. the CLI).
// Env overrides still apply.
func Defaults() (*Config, error) {
	return build(fileConfig{})
}

func build(fc fileConfig) (*Config, error) {
	cfg := &Config{}

	cfg.ServerPort = envOr("SERVER_PORT", fc.Server.Port)
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}

	cfg.WeatherAPIURL = envOr("WEATHER_API_URL", fc.WeatherAPI.URL)
	if cfg.WeatherAPIURL == "" {
		cfg.WeatherAPIURL = "https://api.weather.gov"
	}
	cfg.WeatherAPITimeout = parseDurationOrZero(fc.WeatherAPI.Timeout, 10*time.Second)
	cfg.WeatherUserAgent = envOr("WEATHER_USER_AGENT", fc.WeatherAPI.UserAgent)
	if cfg.WeatherUserAgent == "" {
		cfg.WeatherUserAgent = "hoosier-weekend-helper (weekend.introindianapolis.com)"
	}

	cfg.RateLimitRPS = 20
	if rps := fc.Reliability.RateLimitRPS; rps != nil {
		cfg.RateLimitRPS = max(*rps, 0)
	}
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 40
	}

	cb := fc.Reliability.CircuitBreaker
	cfg.CircuitBreakerEnabled = cb.Enabled
	if v, ok := envBool("CIRCUIT_BREAKER_ENABLED"); ok {
		cfg.CircuitBreakerEnabled = v
	}
	cfg.CircuitBreakerFailureThreshold = cb.FailureThreshold
	if cfg.CircuitBreakerFailureThreshold <= 0 {
		cfg.CircuitBreakerFailureThreshold = 5
	}
	cfg.CircuitBreakerSuccessThreshold = cb.SuccessThreshold
	if cfg.CircuitBreakerSuccessThreshold <= 0 {
		cfg.CircuitBreakerSuccessThreshold = 2
	}
	cfg.CircuitBreakerTimeout = parseDuration(cb.Timeout, 30*time.Second)

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)
	cfg.ShutdownInFlightTimeout = parseDuration(fc.Shutdown.InFlightTimeout, 15*time.Second)
	cfg.ShutdownInFlightCheckInterval = parseDuration(fc.Shutdown.InFlightCheckInterval, 100*time.Millisecond)

	cfg.OverloadWindow = parseDuration(fc.Lifecycle.OverloadWindow, 60*time.Second)
	cfg.OverloadThresholdPct = fc.Lifecycle.OverloadThresholdPct
	if cfg.OverloadThresholdPct <= 0 {
		cfg.OverloadThresholdPct = 80
	}
	cfg.DegradedWindow = parseDuration(fc.Lifecycle.DegradedWindow, 60*time.Second)
	cfg.DegradedFallbackPct = fc.Lifecycle.DegradedFallbackPct
	if cfg.DegradedFallbackPct <= 0 {
		cfg.DegradedFallbackPct = 50
	}

	cfg.TownMinLength = fc.Validation.TownMinLength
	if cfg.TownMinLength <= 0 {
		cfg.TownMinLength = validation.DefaultMinLength
	}
	cfg.TownMaxLength = fc.Validation.TownMaxLength
	if cfg.TownMaxLength <= 0 {
		cfg.TownMaxLength = validation.DefaultMaxLength
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func envOr(key, fileVal string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return strings.TrimSpace(fileVal)
}

func envBool(key string) (bool, bool) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Zero or negative durations are returned as-is so validate can reject them.
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// validate performs post-load validation of configuration values.
func validate(cfg *Config) error {
	if cfg.WeatherAPITimeout <= 0 {
		return fmt.Errorf("weather_api.timeout must be positive")
	}
	if !strings.HasPrefix(cfg.WeatherAPIURL, "http://") && !strings.HasPrefix(cfg.WeatherAPIURL, "https://") {
		return fmt.Errorf("weather_api.url must be an http(s) URL, got %q", cfg.WeatherAPIURL)
	}
	if cfg.TownMinLength > cfg.TownMaxLength {
		return fmt.Errorf("validation.town_min_length (%d) exceeds town_max_length (%d)", cfg.TownMinLength, cfg.TownMaxLength)
	}
	if cfg.DegradedFallbackPct > 100 || cfg.OverloadThresholdPct > 100 {
		return fmt.Errorf("lifecycle percentages must be <= 100")
	}
	if cfg.ShutdownInFlightTimeout > cfg.ShutdownTimeout {
		cfg.ShutdownInFlightTimeout = cfg.ShutdownTimeout
	}
	return nil
}
