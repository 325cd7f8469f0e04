package internal

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env      string
	Port     int
	LogLevel string

	// Backend API consumed by the web tier
	APIBaseURL string
	APITimeout time.Duration

	// Registration and login accept only this campus email domain
	AllowedEmailDomain string

	// Page instances are dropped after this much inactivity
	SessionIdleTimeout time.Duration
	SessionSweepEvery  time.Duration

	// Login submissions per client IP within LoginRateWindow; registrations per hour
	LoginRateLimit    int
	LoginRateWindow   time.Duration
	RegisterRateLimit int

	// Metrics endpoint authentication
	// Unless both are set, the /metrics endpoint is unprotected
	MetricsUsername string
	MetricsPassword string
}

// IsDevelopment reports whether the server runs in the development environment.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func NewConfig() (*Config, error) {
	// Load .env file if it exists (ignored in production)
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "debug"),

		APIBaseURL: strings.TrimRight(getEnv("API_BASE_URL", "http://localhost:8010/api"), "/"),
		APITimeout: getEnvDuration("API_TIMEOUT", 15*time.Second),

		AllowedEmailDomain: strings.ToLower(strings.TrimPrefix(getEnv("ALLOWED_EMAIL_DOMAIN", "vinuni.edu.vn"), "@")),

		SessionIdleTimeout: getEnvDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute),
		SessionSweepEvery:  getEnvDuration("SESSION_SWEEP_INTERVAL", time.Minute),

		LoginRateLimit:    getEnvInt("LOGIN_RATE_LIMIT", 5),
		LoginRateWindow:   getEnvDuration("LOGIN_RATE_WINDOW", 15*time.Minute),
		RegisterRateLimit: getEnvInt("REGISTER_RATE_LIMIT", 3),

		MetricsUsername: getEnv("METRICS_USERNAME", ""),
		MetricsPassword: getEnv("METRICS_PASSWORD", ""),
	}

	u, err := url.Parse(cfg.APIBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("API_BASE_URL must be an absolute URL, got: %q", cfg.APIBaseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("API_BASE_URL must use http or https, got: %s", u.Scheme)
	}

	if cfg.AllowedEmailDomain == "" {
		return nil, fmt.Errorf("ALLOWED_EMAIL_DOMAIN is required")
	}
	if cfg.APITimeout <= 0 {
		return nil, fmt.Errorf("API_TIMEOUT must be positive, got: %s", cfg.APITimeout)
	}
	if cfg.SessionIdleTimeout <= 0 {
		return nil, fmt.Errorf("SESSION_IDLE_TIMEOUT must be positive, got: %s", cfg.SessionIdleTimeout)
	}
	if cfg.LoginRateLimit < 1 || cfg.RegisterRateLimit < 1 {
		return nil, fmt.Errorf("LOGIN_RATE_LIMIT and REGISTER_RATE_LIMIT must be at least 1")
	}

	// Only one half of the metrics credentials is almost certainly a mistake
	if (cfg.MetricsUsername == "") != (cfg.MetricsPassword == "") {
		return nil, fmt.Errorf("METRICS_USERNAME and METRICS_PASSWORD must be set together")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
