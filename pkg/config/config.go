// Package config loads gate configuration from the environment.
package config

import (
	"os"
	"strconv"
)

// Config holds gate process configuration.
type Config struct {
	LogLevel       string
	DatabasePath   string
	PostgresURL    string
	RedisAddr      string
	PolicyPath     string
	ScoreConfigID  string
	CounterBackend string
	RatePerSecond  float64
	OTLPEndpoint   string
	OTelEnabled    bool
}

// Load loads configuration from TSRC_* environment variables, with
// defaults that boot a single-node sqlite-backed gate.
func Load() *Config {
	logLevel := os.Getenv("TSRC_LOG_LEVEL")
	if logLevel == "" {
		logLevel = "INFO"
	}

	dbPath := os.Getenv("TSRC_DB_PATH")
	if dbPath == "" {
		dbPath = "tsrc.db"
	}

	policyPath := os.Getenv("TSRC_POLICY_PATH")
	if policyPath == "" {
		policyPath = "policy.yaml"
	}

	scoreConfigID := os.Getenv("TSRC_SCORE_CONFIG_ID")
	if scoreConfigID == "" {
		scoreConfigID = "score-config-v1"
	}

	backend := os.Getenv("TSRC_COUNTER_BACKEND")
	if backend == "" {
		backend = "sqlite"
	}

	ratePerSecond := 10.0
	if raw := os.Getenv("TSRC_RATE_PER_SECOND"); raw != "" {
		if parsed, err := strconv.ParseFloat(raw, 64); err == nil && parsed > 0 {
			ratePerSecond = parsed
		}
	}

	otlpEndpoint := os.Getenv("TSRC_OTLP_ENDPOINT")
	if otlpEndpoint == "" {
		otlpEndpoint = "localhost:4317"
	}

	return &Config{
		LogLevel:       logLevel,
		DatabasePath:   dbPath,
		PostgresURL:    os.Getenv("TSRC_POSTGRES_URL"),
		RedisAddr:      os.Getenv("TSRC_REDIS_ADDR"),
		PolicyPath:     policyPath,
		ScoreConfigID:  scoreConfigID,
		CounterBackend: backend,
		RatePerSecond:  ratePerSecond,
		OTLPEndpoint:   otlpEndpoint,
		OTelEnabled:    os.Getenv("TSRC_OTEL_ENABLED") == "true",
	}
}
