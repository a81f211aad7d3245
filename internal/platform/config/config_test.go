package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"BILLING_ADDR", "DATABASE_URL", "REDIS_URL", "KAFKA_BROKERS", "BILLING_EVENTS_TOPIC",
		"INVOICE_NUMBERING", "LOG_LEVEL", "TX_TIMEOUT", "OUTBOX_POLL_INTERVAL",
	} {
		t.Setenv(key, "")
	}
}

func TestFromEnvDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, NumberingMemory, cfg.Numbering)
	assert.Equal(t, "billing.events", cfg.Kafka.Topic)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, 5*time.Second, cfg.TxTimeout)
	assert.Equal(t, time.Second, cfg.Outbox.PollInterval)
}

func TestFromEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("BILLING_ADDR", ":9090")
	t.Setenv("DATABASE_URL", "postgres://billing@localhost/billing")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("TX_TIMEOUT", "2s")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, NumberingPostgres, cfg.Numbering, "a database defaults numbering to postgres")
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 2*time.Second, cfg.TxTimeout)
}

func TestFromEnvRejectsInvalidValues(t *testing.T) {
	t.Run("redis numbering without redis", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("INVOICE_NUMBERING", "redis")
		_, err := FromEnv()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "REDIS_URL")
	})

	t.Run("unknown numbering backend", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("INVOICE_NUMBERING", "uuid")
		_, err := FromEnv()
		require.Error(t, err)
	})

	t.Run("bad duration", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("TX_TIMEOUT", "soon")
		_, err := FromEnv()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "TX_TIMEOUT")
	})
}
