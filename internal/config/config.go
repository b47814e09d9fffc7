// Package config содержит логику чтения конфигурации сервера личного кабинета.
package config

import (
	"errors"
	"flag"
	"fmt"
	"net/url"
	"strings"

	"github.com/caarlos0/env/v11"
)

const (
	defaultRunAddress     = "localhost:8080"
	defaultAPIBaseURL     = "http://localhost:8000"
	defaultLoginRateLimit = 10
)

// Config содержит параметры конфигурации, вычисляемые один раз при старте.
type Config struct {
	RunAddress     string `env:"RUN_ADDRESS"`
	APIBaseURL     string `env:"API_BASE_URL"`
	LiveFeedURL    string `env:"LIVE_FEED_URL"`
	DatabaseURI    string `env:"DATABASE_URI"`
	RedisAddress   string `env:"REDIS_ADDRESS"`
	MetricsAddress string `env:"METRICS_ADDRESS"`
	SessionSecret  string `env:"SESSION_SECRET"`
	LoginRateLimit int    `env:"LOGIN_RATE_LIMIT"`
	CookieSecure   bool   `env:"COOKIE_SECURE"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Значения из окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	fromEnv := *cfg

	flag.StringVar(&cfg.RunAddress, "a", defaultRunAddress, "address and port for HTTP server")
	flag.StringVar(&cfg.APIBaseURL, "b", defaultAPIBaseURL, "backend API base URL")
	flag.StringVar(&cfg.LiveFeedURL, "f", "", "live transaction feed URL")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI for the session store")
	flag.StringVar(&cfg.RedisAddress, "r", "", "redis address for the login rate limiter")
	flag.StringVar(&cfg.MetricsAddress, "m", "", "separate address for the metrics endpoint")
	flag.StringVar(&cfg.SessionSecret, "s", "", "session cookie signing secret")
	flag.IntVar(&cfg.LoginRateLimit, "l", defaultLoginRateLimit, "login attempts per minute per client")

	flag.Parse()

	if fromEnv.RunAddress != "" {
		cfg.RunAddress = fromEnv.RunAddress
	}
	if fromEnv.APIBaseURL != "" {
		cfg.APIBaseURL = fromEnv.APIBaseURL
	}
	if fromEnv.LiveFeedURL != "" {
		cfg.LiveFeedURL = fromEnv.LiveFeedURL
	}
	if fromEnv.DatabaseURI != "" {
		cfg.DatabaseURI = fromEnv.DatabaseURI
	}
	if fromEnv.RedisAddress != "" {
		cfg.RedisAddress = fromEnv.RedisAddress
	}
	if fromEnv.MetricsAddress != "" {
		cfg.MetricsAddress = fromEnv.MetricsAddress
	}
	if fromEnv.SessionSecret != "" {
		cfg.SessionSecret = fromEnv.SessionSecret
	}
	if fromEnv.LoginRateLimit != 0 {
		cfg.LoginRateLimit = fromEnv.LoginRateLimit
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = defaultRunAddress
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultAPIBaseURL
	}
	if cfg.LoginRateLimit <= 0 {
		cfg.LoginRateLimit = defaultLoginRateLimit
	}

	if err := validateBaseURL(cfg.APIBaseURL); err != nil {
		return nil, err
	}

	return cfg, nil
}

func validateBaseURL(raw string) error {
	base := raw
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	u, err := url.Parse(base)
	if err != nil {
		return fmt.Errorf("invalid API base URL %q: %w", raw, err)
	}
	if u.Host == "" {
		return errors.New("invalid API base URL: empty host")
	}

	return nil
}
