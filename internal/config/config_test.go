package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, []string{"kafka:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 4, cfg.PaymentsWorkers)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9999")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092 ,,c:9092")
	t.Setenv("PAYMENTS_WORKERS", "8")

	cfg := Load()
	assert.Equal(t, ":9999", cfg.HTTPAddr)
	assert.Equal(t, []string{"a:9092", "b:9092", "c:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 8, cfg.PaymentsWorkers)
}

func TestLoadBadWorkerCountFallsBack(t *testing.T) {
	t.Setenv("PAYMENTS_WORKERS", "zero")
	assert.Equal(t, 4, Load().PaymentsWorkers)

	t.Setenv("PAYMENTS_WORKERS", "-3")
	assert.Equal(t, 4, Load().PaymentsWorkers)
}
