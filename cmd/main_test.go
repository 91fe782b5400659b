package main

import (
	"flag"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetFlags resets the global flag.CommandLine to avoid "flag redefined" panic
func resetFlags() {
	flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ExitOnError)
}

// resetEnv clears env vars used by parseConfig
func resetEnv() {
	os.Clearenv()
}

func TestParseFlags_Default(t *testing.T) {
	resetFlags()
	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()

	os.Args = []string{"cmd"}
	configPath := parseFlags()

	assert.Equal(t, "config.env", configPath)
}

func TestParseFlags_Custom(t *testing.T) {
	resetFlags()
	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()

	os.Args = []string{"cmd", "-c", "custom.env"}
	configPath := parseFlags()

	assert.Equal(t, "custom.env", configPath)
}

func TestParseConfig_Defaults(t *testing.T) {
	resetEnv()

	appHost, appPort, logLevel,
		dataDir, storeMaxBytes, backupRetentionHours,
		lockRetries, lockBackoffMs,
		drainIntervalMs, queueMaxAttempts,
		reserveTotal, feePercent,
		jwtSecret, jwtExpSecond,
		redisHost, _, _, _, _,
		kafkaBroker, kafkaTopic,
		err := parseConfig("nonexistent.env")
	require.NoError(t, err)

	assert.Equal(t, "localhost", appHost)
	assert.Equal(t, "8080", appPort)
	assert.Equal(t, "info", logLevel)
	assert.Equal(t, "data", dataDir)
	assert.Equal(t, int64(10485760), storeMaxBytes)
	assert.Equal(t, 168, backupRetentionHours)
	assert.Equal(t, 10, lockRetries)
	assert.Equal(t, 50, lockBackoffMs)
	assert.Equal(t, 1000, drainIntervalMs)
	assert.Equal(t, 3, queueMaxAttempts)
	assert.Equal(t, float64(1000000), reserveTotal)
	assert.Equal(t, 0.02, feePercent)
	assert.NotEmpty(t, jwtSecret)
	assert.Equal(t, 3600, jwtExpSecond)
	assert.Empty(t, redisHost)
	assert.Empty(t, kafkaBroker)
	assert.Equal(t, "ledger-events", kafkaTopic)
}

func TestParseConfig_EnvOverrides(t *testing.T) {
	resetEnv()
	t.Setenv("APP_PORT", "9090")
	t.Setenv("DATA_DIR", "/var/lib/ledger")
	t.Setenv("RESERVE_TOTAL", "250000")
	t.Setenv("QUEUE_MAX_ATTEMPTS", "5")
	t.Setenv("REDIS_HOST", "redis.internal")

	_, appPort, _,
		dataDir, _, _,
		_, _,
		_, queueMaxAttempts,
		reserveTotal, _,
		_, _,
		redisHost, _, _, _, _,
		_, _,
		err := parseConfig("nonexistent.env")
	require.NoError(t, err)

	assert.Equal(t, "9090", appPort)
	assert.Equal(t, "/var/lib/ledger", dataDir)
	assert.Equal(t, float64(250000), reserveTotal)
	assert.Equal(t, 5, queueMaxAttempts)
	assert.Equal(t, "redis.internal", redisHost)
}

func TestParseConfig_InvalidNumber(t *testing.T) {
	resetEnv()
	t.Setenv("QUEUE_MAX_ATTEMPTS", "many")

	_, _, _,
		_, _, _,
		_, _,
		_, _,
		_, _,
		_, _,
		_, _, _, _, _,
		_, _,
		err := parseConfig("nonexistent.env")
	assert.Error(t, err)
}
