package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadReadsPrefixedEnv(t *testing.T) {
	t.Setenv("TESTSVC_DB_HOST", "db.internal")
	t.Setenv("TESTSVC_KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("TESTSVC_SERVICE_PORT", "9000")
	t.Setenv("TESTSVC_PAYMENT_TIMEOUT", "48h")

	v, err := Load("TESTSVC")
	require.NoError(t, err)

	assert.Equal(t, "db.internal", LoadDatabaseConfig(v, "DB_NAME").Host)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, LoadKafkaConfig(v).Brokers)
	assert.Equal(t, ":9000", GetServicePort(v, "SERVICE_PORT"))
	assert.Equal(t, 48*time.Hour, GetDuration(v, "PAYMENT_TIMEOUT", time.Hour))
	assert.Equal(t, time.Minute, GetDuration(v, "LOCK_TTL", time.Minute))
	assert.Equal(t, "development", GetAppEnv(v))
}
