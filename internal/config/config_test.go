package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("HTTP_PORT", "")
	t.Setenv("DATABASE_DSN", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("DASHBOARD_CACHE_TTL", "")

	cfg := FromEnv()

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, defaultDSN, cfg.DatabaseDSN)
	assert.Nil(t, cfg.KafkaBrokers)
	assert.Equal(t, 30*time.Second, cfg.DashboardCacheTTL)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092 ,")
	t.Setenv("TRACING_ENABLED", "true")
	t.Setenv("DASHBOARD_CACHE_TTL", "2m")
	t.Setenv("ENVIRONMENT", "production")

	cfg := FromEnv()

	assert.Equal(t, "9000", cfg.HTTPPort)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.TracingEnabled)
	assert.Equal(t, 2*time.Minute, cfg.DashboardCacheTTL)
	assert.False(t, cfg.IsDevelopment())
}

func TestFromEnvIgnoresMalformedValues(t *testing.T) {
	t.Setenv("TRACING_ENABLED", "maybe")
	t.Setenv("DASHBOARD_CACHE_TTL", "soon")

	cfg := FromEnv()

	assert.False(t, cfg.TracingEnabled)
	assert.Equal(t, 30*time.Second, cfg.DashboardCacheTTL)
}

func TestValidate(t *testing.T) {
	cfg := &Config{HTTPPort: "8080"}
	require.Error(t, cfg.Validate())

	cfg.JWTSecret = "short"
	require.Error(t, cfg.Validate())

	cfg.JWTSecret = "0123456789abcdef0123456789abcdef"
	require.NoError(t, cfg.Validate())

	cfg.HTTPPort = ""
	require.Error(t, cfg.Validate())
}
