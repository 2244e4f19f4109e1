// Package config loads runtime settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Default allowed origins for development
var defaultOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
}

type Config struct {
	Port           string
	DatabaseURL    string
	SessionSecret  string
	Domain         string
	CookieSecure   bool
	AllowedOrigins []string
	LogLevel       string

	// SprintSweepInterval is how often ended sprints are auto-completed.
	// Zero disables the sweeper.
	SprintSweepInterval time.Duration
}

var ErrMissingSecret = errors.New("SESSION_SECRET environment variable is not set")

// Load reads .env files (if any) and then the process environment.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function.
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		Port:           getenv("PORT"),
		DatabaseURL:    getenv("DATABASE_URL"),
		SessionSecret:  getenv("SESSION_SECRET"),
		Domain:         getenv("DOMAIN"),
		CookieSecure:   true,
		AllowedOrigins: allowedOrigins(getenv),
		LogLevel:       getenv("LOG_LEVEL"),
	}

	if cfg.Port == "" {
		cfg.Port = "3000"
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	// JWT_SECRET is the older name of the session secret.
	if cfg.SessionSecret == "" {
		cfg.SessionSecret = getenv("JWT_SECRET")
	}

	if v := getenv("COOKIE_SECURE"); v != "" {
		secure, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid COOKIE_SECURE %q: %w", v, err)
		}
		cfg.CookieSecure = secure
	}

	cfg.SprintSweepInterval = 10 * time.Minute
	if v := getenv("SPRINT_SWEEP_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid SPRINT_SWEEP_INTERVAL %q: %w", v, err)
		}
		cfg.SprintSweepInterval = d
	}

	return cfg, nil
}

// Validate checks the settings needed to serve requests.
func (c *Config) Validate() error {
	if c.SessionSecret == "" {
		return ErrMissingSecret
	}
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL environment variable is not set")
	}
	return nil
}

func allowedOrigins(getenv func(string) string) []string {
	origins := make([]string, len(defaultOrigins))
	copy(origins, defaultOrigins)

	if clientURL := getenv("CLIENT_URL"); clientURL != "" {
		origins = append(origins, clientURL)
	}

	if allowed := getenv("ALLOWED_ORIGINS"); allowed != "" {
		for _, origin := range strings.Split(allowed, ",") {
			trimmed := strings.TrimSpace(origin)
			if trimmed != "" {
				origins = append(origins, trimmed)
			}
		}
	}

	return origins
}
