package config

import (
	"errors"
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	GatewayModeLive = "live"
	GatewayModeMock = "mock"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Port        int      `env:"PORT" envDefault:"4001"`
	Env         string   `env:"APP_ENV" envDefault:"development"`
	DatabaseURL string   `env:"DATABASE_URL,required,notEmpty"`
	JWTSecret   string   `env:"JWT_SECRET,required,notEmpty"`
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
	RedisURL    string   `env:"REDIS_URL"`

	GatewayMode        string        `env:"GATEWAY_MODE" envDefault:"live"`
	GatewayClientID    string        `env:"GATEWAY_CLIENT_ID"`
	GatewayAPIKey      string        `env:"GATEWAY_API_KEY"`
	GatewayChecksumKey string        `env:"GATEWAY_CHECKSUM_KEY"`
	GatewayBaseURL     string        `env:"GATEWAY_BASE_URL" envDefault:"https://api-merchant.payos.vn/v2"`
	GatewayTimeout     time.Duration `env:"GATEWAY_TIMEOUT" envDefault:"15s"`
	GatewayTimeZone    string        `env:"GATEWAY_TIME_ZONE" envDefault:"Asia/Ho_Chi_Minh"`

	SweepInterval  time.Duration `env:"SWEEP_INTERVAL" envDefault:"24h"`
	OrderNodeID    int64         `env:"ORDER_NODE_ID" envDefault:"0"`
	RateLimitRPS   float64       `env:"RATE_LIMIT_RPS" envDefault:"20"`
	RateLimitBurst int           `env:"RATE_LIMIT_BURST" envDefault:"40"`
}

// Load reads an optional .env file, then the environment.
func Load() (*Config, error) {
	// Missing .env is fine outside development.
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that depend on each other.
func (c *Config) Validate() error {
	switch c.GatewayMode {
	case GatewayModeLive:
		if c.GatewayClientID == "" || c.GatewayAPIKey == "" || c.GatewayChecksumKey == "" {
			return errors.New("GATEWAY_CLIENT_ID, GATEWAY_API_KEY and GATEWAY_CHECKSUM_KEY are required in live mode")
		}
	case GatewayModeMock:
		if c.GatewayChecksumKey == "" {
			return errors.New("GATEWAY_CHECKSUM_KEY is required")
		}
		if c.IsProduction() {
			return errors.New("GATEWAY_MODE=mock is not allowed in production")
		}
	default:
		return fmt.Errorf("GATEWAY_MODE must be %q or %q, got %q", GatewayModeLive, GatewayModeMock, c.GatewayMode)
	}
	if c.GatewayTimeout <= 0 {
		return errors.New("GATEWAY_TIMEOUT must be positive")
	}
	if c.OrderNodeID < 0 || c.OrderNodeID > 15 {
		return fmt.Errorf("ORDER_NODE_ID must be between 0 and 15, got %d", c.OrderNodeID)
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return errors.New("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	if _, err := time.LoadLocation(c.GatewayTimeZone); err != nil {
		return fmt.Errorf("invalid GATEWAY_TIME_ZONE: %w", err)
	}
	return nil
}

// TimeLocation returns the zone for gateway timestamps without an offset.
func (c *Config) TimeLocation() *time.Location {
	loc, err := time.LoadLocation(c.GatewayTimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsProduction reports whether APP_ENV names a production deployment.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}
