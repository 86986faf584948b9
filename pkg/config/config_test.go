package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bowtae-labs/tsrc/pkg/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("TSRC_LOG_LEVEL", "")
	t.Setenv("TSRC_DB_PATH", "")
	t.Setenv("TSRC_POLICY_PATH", "")
	t.Setenv("TSRC_COUNTER_BACKEND", "")
	t.Setenv("TSRC_RATE_PER_SECOND", "")
	t.Setenv("TSRC_OTEL_ENABLED", "")

	cfg := config.Load()

	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Equal(t, "tsrc.db", cfg.DatabasePath)
	assert.Equal(t, "policy.yaml", cfg.PolicyPath)
	assert.Equal(t, "sqlite", cfg.CounterBackend)
	assert.Equal(t, 10.0, cfg.RatePerSecond)
	assert.False(t, cfg.OTelEnabled)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("TSRC_LOG_LEVEL", "DEBUG")
	t.Setenv("TSRC_DB_PATH", "/var/lib/tsrc/gate.db")
	t.Setenv("TSRC_POSTGRES_URL", "postgres://gate:5432/tsrc")
	t.Setenv("TSRC_REDIS_ADDR", "redis:6379")
	t.Setenv("TSRC_COUNTER_BACKEND", "redis")
	t.Setenv("TSRC_RATE_PER_SECOND", "2.5")
	t.Setenv("TSRC_OTEL_ENABLED", "true")

	cfg := config.Load()

	assert.Equal(t, "DEBUG", cfg.LogLevel)
	assert.Equal(t, "/var/lib/tsrc/gate.db", cfg.DatabasePath)
	assert.Equal(t, "postgres://gate:5432/tsrc", cfg.PostgresURL)
	assert.Equal(t, "redis:6379", cfg.RedisAddr)
	assert.Equal(t, "redis", cfg.CounterBackend)
	assert.Equal(t, 2.5, cfg.RatePerSecond)
	assert.True(t, cfg.OTelEnabled)
}

func TestLoad_BadRateFallsBack(t *testing.T) {
	t.Setenv("TSRC_RATE_PER_SECOND", "not-a-number")
	assert.Equal(t, 10.0, config.Load().RatePerSecond)

	t.Setenv("TSRC_RATE_PER_SECOND", "-3")
	assert.Equal(t, 10.0, config.Load().RatePerSecond)
}
