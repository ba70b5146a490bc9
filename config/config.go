// Package config loads the relay service configuration from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Store drivers.
const (
	StoreDriverSQLite = "sqlite"
	StoreDriverRedis  = "redis"
)

// Config holds application configuration.
type Config struct {
	Port            string        `envconfig:"PORT" default:"3000"`
	AllowedOrigins  string        `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:3000,http://localhost:8080"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`

	StoreDriver string `envconfig:"STORE_DRIVER" default:"sqlite"`
	DBPath      string `envconfig:"DB_PATH" default:"chat.db"`
	DBDebug     bool   `envconfig:"DB_DEBUG" default:"false"`
	RedisAddr   string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisKey    string `envconfig:"REDIS_KEY" default:"chat:messages"`

	// DisplacementPolicy decides what happens when a username that is already
	// online registers from another connection: replace, notify or reject.
	DisplacementPolicy string  `envconfig:"DISPLACEMENT_POLICY" default:"replace"`
	MaxMessageLength   int     `envconfig:"MAX_MESSAGE_LENGTH" default:"4096"`
	RateLimitPerSecond float64 `envconfig:"RATE_LIMIT_PER_SECOND" default:"10"`
	RateLimitBurst     int     `envconfig:"RATE_LIMIT_BURST" default:"20"`
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to process environment: %w", err)
	}
	cfg.DisplacementPolicy = strings.ToLower(strings.TrimSpace(cfg.DisplacementPolicy))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values envconfig cannot express.
func (c Config) Validate() error {
	switch c.StoreDriver {
	case StoreDriverSQLite, StoreDriverRedis:
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q", c.StoreDriver)
	}
	switch strings.ToLower(strings.TrimSpace(c.DisplacementPolicy)) {
	case "replace", "notify", "reject":
	default:
		return fmt.Errorf("unsupported DISPLACEMENT_POLICY %q", c.DisplacementPolicy)
	}
	if c.MaxMessageLength <= 0 {
		return fmt.Errorf("MAX_MESSAGE_LENGTH must be positive")
	}
	if c.RateLimitPerSecond <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("rate limit settings must be positive")
	}
	return nil
}

// Addr returns the listen address for the HTTP server.
func (c Config) Addr() string {
	return ":" + c.Port
}
