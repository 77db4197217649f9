package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config carries every tunable the process reads from the environment.
// Durations and scoring constants are named here once; nothing re-derives
// them at runtime.
type Config struct {
	Port           string
	AllowedOrigins []string
	UpstreamURL    string
	PostgresURL    string
	IdentityKey    string
	IdentityMaxAge time.Duration
	Debug          bool

	RoundDuration        time.Duration
	BetweenRoundDuration time.Duration
	ExtendIncrement      time.Duration
	HostGracePeriod      time.Duration

	BasePoints   int
	MaxTimeBonus int
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:           getString("PORT", "5000"),
		AllowedOrigins: strings.Split(getString("ALLOWED_ORIGINS", "http://localhost:3000"), ","),
		UpstreamURL:    getString("UPSTREAM_URL", "http://localhost:3000"),
		PostgresURL:    os.Getenv("POSTGRES_URL"),
		IdentityKey:    os.Getenv("IDENTITY_KEY"),
		IdentityMaxAge: getDuration("IDENTITY_MAX_AGE", 7*24*time.Hour),
		Debug:          getString("DEBUG", "") == "true",

		RoundDuration:        getDuration("ROUND_DURATION", 30*time.Second),
		BetweenRoundDuration: getDuration("BETWEEN_ROUND_DURATION", 8*time.Second),
		ExtendIncrement:      getDuration("EXTEND_INCREMENT", 15*time.Second),
		HostGracePeriod:      getDuration("HOST_GRACE_PERIOD", 60*time.Second),

		BasePoints:   getInt("BASE_POINTS", 100),
		MaxTimeBonus: getInt("MAX_TIME_BONUS", 900),
	}

	if cfg.PostgresURL == "" {
		return nil, fmt.Errorf("missing POSTGRES_URL")
	}
	if cfg.IdentityKey == "" {
		return nil, fmt.Errorf("missing IDENTITY_KEY")
	}

	return cfg, nil
}

func getString(key, fallback string) string {
	v, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	return v
}

func getInt(key string, fallback int) int {
	v, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
