package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kjstillabower/hoosier-weekend-helper/internal/validation"
)

const minimalEnvYAML = `
server:
  port: "9090"
weather_api:
  url: "https://api.weather.test"
  timeout: "3s"
  user_agent: "test-agent (ops@example.com)"
`

func writeEnvFile(t *testing.T, dir, env, content string) string {
	t.Helper()
	configDir := filepath.Join(dir, "config")
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	path := filepath.Join(configDir, env+".yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(origWd) })
}

func clearOverrides(t *testing.T) {
	t.Helper()
	for _, key := range []string{"SERVER_PORT", "WEATHER_API_URL", "WEATHER_USER_AGENT", "CIRCUIT_BREAKER_ENABLED"} {
		t.Setenv(key, "")
	}
}

func TestLoad_ReadsEnvFile(t *testing.T) {
	clearOverrides(t)
	t.Setenv("ENV_NAME", "staging")
	dir := t.TempDir()
	writeEnvFile(t, dir, "staging", minimalEnvYAML)
	chdir(t, dir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ServerPort != "9090" {
		t.Errorf("ServerPort = %q, want 9090", cfg.ServerPort)
	}
	if cfg.WeatherAPIURL != "https://api.weather.test" {
		t.Errorf("WeatherAPIURL = %q", cfg.WeatherAPIURL)
	}
	if cfg.WeatherAPITimeout != 3*time.Second {
		t.Errorf("WeatherAPITimeout = %v, want 3s", cfg.WeatherAPITimeout)
	}
	if cfg.WeatherUserAgent != "test-agent (ops@example.com)" {
		t.Errorf("WeatherUserAgent = %q", cfg.WeatherUserAgent)
	}
}

func TestLoad_EnvFileNotFound(t *testing.T) {
	clearOverrides(t)
	t.Setenv("ENV_NAME", "nonexistent")
	chdir(t, t.TempDir())

	cfg, err := Load()
	if err == nil {
		t.Fatal("Load() expected error for missing env file, got nil")
	}
	if cfg != nil {
		t.Fatalf("Load() expected nil config on error, got %+v", cfg)
	}
	if !strings.Contains(err.Error(), "config file not found") {
		t.Errorf("Load() error = %v, want message about config file not found", err)
	}
}

func TestLoadFile_InvalidYAML(t *testing.T) {
	clearOverrides(t)
	path := writeEnvFile(t, t.TempDir(), "dev", "server: [unclosed")

	if _, err := LoadFile(path); err == nil || !strings.Contains(err.Error(), "parse config file") {
		t.Errorf("LoadFile() error = %v, want parse error", err)
	}
}

func TestDefaults(t *testing.T) {
	clearOverrides(t)
	cfg, err := Defaults()
	if err != nil {
		t.Fatalf("Defaults() error = %v", err)
	}

	checks := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"ServerPort", cfg.ServerPort, "8080"},
		{"WeatherAPIURL", cfg.WeatherAPIURL, "https://api.weather.gov"},
		{"WeatherAPITimeout", cfg.WeatherAPITimeout, 10 * time.Second},
		{"RateLimitRPS", cfg.RateLimitRPS, 20},
		{"RateLimitBurst", cfg.RateLimitBurst, 40},
		{"CircuitBreakerEnabled", cfg.CircuitBreakerEnabled, false},
		{"CircuitBreakerFailureThreshold", cfg.CircuitBreakerFailureThreshold, 5},
		{"CircuitBreakerTimeout", cfg.CircuitBreakerTimeout, 30 * time.Second},
		{"ShutdownTimeout", cfg.ShutdownTimeout, 30 * time.Second},
		{"ShutdownInFlightTimeout", cfg.ShutdownInFlightTimeout, 15 * time.Second},
		{"DegradedFallbackPct", cfg.DegradedFallbackPct, 50},
		{"OverloadThresholdPct", cfg.OverloadThresholdPct, 80},
		{"TownMinLength", cfg.TownMinLength, 2},
		{"TownMaxLength", cfg.TownMaxLength, 64},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
	if cfg.WeatherUserAgent == "" {
		t.Error("WeatherUserAgent should have a default")
	}
}

func TestBuild_EnvOverrides(t *testing.T) {
	clearOverrides(t)
	t.Setenv("SERVER_PORT", "7000")
	t.Setenv("WEATHER_API_URL", "http://localhost:9999")
	t.Setenv("WEATHER_USER_AGENT", "override-agent")
	t.Setenv("CIRCUIT_BREAKER_ENABLED", "true")

	path := writeEnvFile(t, t.TempDir(), "dev", minimalEnvYAML)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.ServerPort != "7000" {
		t.Errorf("ServerPort = %q, want env override 7000", cfg.ServerPort)
	}
	if cfg.WeatherAPIURL != "http://localhost:9999" {
		t.Errorf("WeatherAPIURL = %q, want env override", cfg.WeatherAPIURL)
	}
	if cfg.WeatherUserAgent != "override-agent" {
		t.Errorf("WeatherUserAgent = %q, want env override", cfg.WeatherUserAgent)
	}
	if !cfg.CircuitBreakerEnabled {
		t.Error("CircuitBreakerEnabled should be true from env")
	}
}

func TestBuild_InvalidCircuitBreakerEnvIgnored(t *testing.T) {
	clearOverrides(t)
	t.Setenv("CIRCUIT_BREAKER_ENABLED", "maybe")
	cfg, err := Defaults()
	if err != nil {
		t.Fatalf("Defaults() error = %v", err)
	}
	if cfg.CircuitBreakerEnabled {
		t.Error("unparseable CIRCUIT_BREAKER_ENABLED should leave default false")
	}
}

func TestLoadFile_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "non-positive timeout",
			yaml:    "weather_api:\n  timeout: \"0s\"\n",
			wantErr: "timeout must be positive",
		},
		{
			name:    "negative timeout",
			yaml:    "weather_api:\n  timeout: \"-1s\"\n",
			wantErr: "timeout must be positive",
		},
		{
			name:    "non-http url",
			yaml:    "weather_api:\n  url: \"ftp://weather\"\n",
			wantErr: "http(s) URL",
		},
		{
			name:    "min exceeds max",
			yaml:    "validation:\n  town_min_length: 10\n  town_max_length: 5\n",
			wantErr: "exceeds town_max_length",
		},
		{
			name:    "percentage over 100",
			yaml:    "lifecycle:\n  degraded_fallback_pct: 150\n",
			wantErr: "<= 100",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearOverrides(t)
			path := writeEnvFile(t, t.TempDir(), "dev", tt.yaml)
			cfg, err := LoadFile(path)
			if err == nil {
				t.Fatalf("LoadFile() expected error, got config %+v", cfg)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("LoadFile() error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_ClampsInFlightTimeout(t *testing.T) {
	clearOverrides(t)
	yaml := "shutdown:\n  timeout: \"5s\"\n  in_flight_timeout: \"20s\"\n"
	path := writeEnvFile(t, t.TempDir(), "dev", yaml)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.ShutdownInFlightTimeout != 5*time.Second {
		t.Errorf("ShutdownInFlightTimeout = %v, want clamped to 5s", cfg.ShutdownInFlightTimeout)
	}
}

func TestLoadFile_RateLimit(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want int
	}{
		{"unset uses default", "server:\n  port: \"8080\"\n", 20},
		{"explicit value", "reliability:\n  rate_limit_rps: 7\n", 7},
		{"zero disables", "reliability:\n  rate_limit_rps: 0\n", 0},
		{"negative disables", "reliability:\n  rate_limit_rps: -3\n", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearOverrides(t)
			path := writeEnvFile(t, t.TempDir(), "dev", tt.yaml)
			cfg, err := LoadFile(path)
			if err != nil {
				t.Fatalf("LoadFile() error = %v", err)
			}
			if cfg.RateLimitRPS != tt.want {
				t.Errorf("RateLimitRPS = %d, want %d", cfg.RateLimitRPS, tt.want)
			}
		})
	}
}

func TestDefaults_TownLengthsMatchValidation(t *testing.T) {
	clearOverrides(t)
	cfg, err := Defaults()
	if err != nil {
		t.Fatalf("Defaults() error = %v", err)
	}
	if cfg.TownMinLength != validation.DefaultMinLength || cfg.TownMaxLength != validation.DefaultMaxLength {
		t.Errorf("town lengths = %d..%d, want %d..%d", cfg.TownMinLength, cfg.TownMaxLength,
			validation.DefaultMinLength, validation.DefaultMaxLength)
	}
}

// TestParseDuration verifies fallback to default on empty, invalid and non-positive input.
func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"", time.Minute},
		{"  ", time.Minute},
		{"garbage", time.Minute},
		{"0s", time.Minute},
		{"-5s", time.Minute},
		{"90s", 90 * time.Second},
		{" 2m ", 2 * time.Minute},
	}
	for _, tt := range tests {
		if got := parseDuration(tt.in, time.Minute); got != tt.want {
			t.Errorf("parseDuration(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseDurationOrZero_KeepsNonPositive(t *testing.T) {
	if got := parseDurationOrZero("0s", time.Minute); got != 0 {
		t.Errorf("parseDurationOrZero(0s) = %v, want 0", got)
	}
	if got := parseDurationOrZero("", time.Minute); got != time.Minute {
		t.Errorf("parseDurationOrZero(empty) = %v, want default", got)
	}
}

// TestDevConfig_Loads verifies the checked-in config/dev.yaml parses and validates.
func TestDevConfig_Loads(t *testing.T) {
	clearOverrides(t)
	cfg, err := LoadFile(filepath.Join("..", "..", "config", "dev.yaml"))
	if err != nil {
		t.Fatalf("LoadFile(dev.yaml) error = %v", err)
	}
	if cfg.WeatherAPIURL != "https://api.weather.gov" {
		t.Errorf("WeatherAPIURL = %q", cfg.WeatherAPIURL)
	}
}
