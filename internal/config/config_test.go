package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, uint16(8080), cfg.HTTP.Port)
	assert.Equal(t, "postgres", cfg.Tracking.Storage)
	assert.Equal(t, 30*time.Minute, cfg.Tracking.SessionTimeout)
	assert.Equal(t, 720*time.Hour, cfg.Attribution.Lookback)
	assert.Equal(t, 50, cfg.Fraud.Threshold)
	assert.Equal(t, "soft_flag", cfg.Fraud.Policy)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, slog.LevelInfo, cfg.Log.SlogLevel())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("SESSION_TIMEOUT", "10m")
	t.Setenv("FRAUD_POLICY", "hard_block")
	t.Setenv("FRAUD_BLOCKED_NETWORKS", "10.0.0.0/8,192.168.0.0/16")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("ATTRIBUTION_DEFAULT_MODEL", "linear")
	t.Setenv("LOG_FORMAT", "JSON")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Tracking.Storage)
	assert.Equal(t, 10*time.Minute, cfg.Tracking.SessionTimeout)
	assert.Equal(t, "hard_block", cfg.Fraud.Policy)
	assert.Equal(t, []string{"10.0.0.0/8", "192.168.0.0/16"}, cfg.Fraud.BlockedNetworks)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "linear", cfg.Attribution.DefaultModel)
	assert.Equal(t, "json", cfg.Log.SlogFormat())
}

func TestLoadRejectsMalformedDuration(t *testing.T) {
	t.Setenv("STORE_TIMEOUT", "soon")
	_, err := Load()
	assert.Error(t, err)
}
