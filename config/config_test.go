package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, ":3000", cfg.Addr())
	assert.Equal(t, StoreDriverSQLite, cfg.StoreDriver)
	assert.Equal(t, "chat.db", cfg.DBPath)
	assert.Equal(t, "replace", cfg.DisplacementPolicy)
	assert.Equal(t, 4096, cfg.MaxMessageLength)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("STORE_DRIVER", "redis")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("DISPLACEMENT_POLICY", "notify")
	t.Setenv("SHUTDOWN_TIMEOUT", "5s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr())
	assert.Equal(t, StoreDriverRedis, cfg.StoreDriver)
	assert.Equal(t, "redis:6379", cfg.RedisAddr)
	assert.Equal(t, "notify", cfg.DisplacementPolicy)
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "unknown store driver", key: "STORE_DRIVER", val: "mysql"},
		{name: "unknown displacement policy", key: "DISPLACEMENT_POLICY", val: "kick"},
		{name: "zero message length", key: "MAX_MESSAGE_LENGTH", val: "0"},
		{name: "negative burst", key: "RATE_LIMIT_BURST", val: "-1"},
		{name: "non-numeric rate", key: "RATE_LIMIT_PER_SECOND", val: "fast"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_NormalizesDisplacementPolicy(t *testing.T) {
	t.Setenv("DISPLACEMENT_POLICY", " Notify ")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "notify", cfg.DisplacementPolicy)
}

func TestValidate_AcceptsPaddedPolicy(t *testing.T) {
	cfg := Config{
		StoreDriver:        StoreDriverSQLite,
		DisplacementPolicy: " reject",
		MaxMessageLength:   10,
		RateLimitPerSecond: 1,
		RateLimitBurst:     1,
	}
	assert.NoError(t, cfg.Validate())
}
