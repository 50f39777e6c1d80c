package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/billing")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("GATEWAY_CLIENT_ID", "client")
	t.Setenv("GATEWAY_API_KEY", "api")
	t.Setenv("GATEWAY_CHECKSUM_KEY", "checksum")
}

func TestLoad_Defaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 4001, cfg.Port)
	assert.Equal(t, GatewayModeLive, cfg.GatewayMode)
	assert.Equal(t, 15*time.Second, cfg.GatewayTimeout)
	assert.Equal(t, 24*time.Hour, cfg.SweepInterval)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORSOrigins)
	assert.Equal(t, "Asia/Ho_Chi_Minh", cfg.TimeLocation().String())
	assert.False(t, cfg.IsProduction())
}

func TestLoad_Overrides(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("PORT", "8080")
	t.Setenv("CORS_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("SWEEP_INTERVAL", "1h")
	t.Setenv("ORDER_NODE_ID", "3")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, time.Hour, cfg.SweepInterval)
	assert.Equal(t, int64(3), cfg.OrderNodeID)
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			GatewayMode:        GatewayModeLive,
			GatewayClientID:    "c",
			GatewayAPIKey:      "a",
			GatewayChecksumKey: "k",
			GatewayTimeout:     time.Second,
			GatewayTimeZone:    "UTC",
			RateLimitRPS:       1,
			RateLimitBurst:     1,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid live", mutate: func(*Config) {}},
		{name: "live without credentials", mutate: func(c *Config) { c.GatewayAPIKey = "" }, wantErr: true},
		{name: "mock needs only checksum key", mutate: func(c *Config) {
			c.GatewayMode = GatewayModeMock
			c.GatewayClientID, c.GatewayAPIKey = "", ""
		}},
		{name: "mock refused in production", mutate: func(c *Config) {
			c.GatewayMode = GatewayModeMock
			c.Env = "production"
		}, wantErr: true},
		{name: "live allowed in production", mutate: func(c *Config) { c.Env = "prod" }},
		{name: "unknown mode", mutate: func(c *Config) { c.GatewayMode = "sandbox" }, wantErr: true},
		{name: "node id out of range", mutate: func(c *Config) { c.OrderNodeID = 16 }, wantErr: true},
		{name: "bad time zone", mutate: func(c *Config) { c.GatewayTimeZone = "Mars/Olympus" }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}
