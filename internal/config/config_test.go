package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"REDIS_URL", "REDIS_CERT_PATH", "REDIS_MAX_CONNECTIONS", "SERVICE_NAME",
		"LOG_LEVEL", "LOG_FILE", "LOG_RESOURCES", "POLL_INTERVAL", "SLOWLOG_MAX_LEN", "HTTP_ADDR",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultMaxConnections, cfg.Redis.MaxConnections)
	assert.Equal(t, DefaultPollInterval, cfg.Poll.Interval)
	assert.Equal(t, int64(DefaultSlowlogMaxLen), cfg.Poll.SlowlogMaxLen)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, DefaultServiceName, cfg.Service)
	assert.False(t, cfg.Once)
}

func TestLoad_FromEnv(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())
	t.Setenv("REDIS_URL", "rediss://cache.internal:6380/1")
	t.Setenv("REDIS_CERT_PATH", "/tmp/ca.b64")
	t.Setenv("REDIS_MAX_CONNECTIONS", "25")
	t.Setenv("POLL_INTERVAL", "30")
	t.Setenv("SLOWLOG_MAX_LEN", "16")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("LOG_RESOURCES", "true")
	t.Setenv("SERVICE_NAME", "cache-monitor")

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "rediss://cache.internal:6380/1", cfg.Redis.URL)
	assert.Equal(t, "/tmp/ca.b64", cfg.Redis.CertPath)
	assert.Equal(t, 25, cfg.Redis.MaxConnections)
	assert.Equal(t, 30*time.Second, cfg.Poll.Interval)
	assert.Equal(t, int64(16), cfg.Poll.SlowlogMaxLen)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.Resources)
	assert.Equal(t, "cache-monitor", cfg.Service)
}

func writeDotEnv(t *testing.T, content string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(content), 0o600))
	t.Chdir(dir)
}

func TestLoad_FromDotEnv(t *testing.T) {
	clearEnv(t)
	writeDotEnv(t, "REDIS_URL=rediss://dotenv-host:6380/2\n"+
		"REDIS_CERT_PATH=/etc/redis/ca.b64\n"+
		"REDIS_MAX_CONNECTIONS=7\n"+
		"SERVICE_NAME=from-dotenv\n"+
		"POLL_INTERVAL=15s\n"+
		"SLOWLOG_MAX_LEN=32\n")

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "rediss://dotenv-host:6380/2", cfg.Redis.URL)
	assert.Equal(t, "/etc/redis/ca.b64", cfg.Redis.CertPath)
	assert.Equal(t, 7, cfg.Redis.MaxConnections)
	assert.Equal(t, "from-dotenv", cfg.Service)
	assert.Equal(t, 15*time.Second, cfg.Poll.Interval)
	assert.Equal(t, int64(32), cfg.Poll.SlowlogMaxLen)
}

func TestLoad_EnvOverridesDotEnv(t *testing.T) {
	clearEnv(t)
	writeDotEnv(t, "REDIS_URL=rediss://dotenv-host:6380\nSERVICE_NAME=from-dotenv\n")
	t.Setenv("REDIS_URL", "rediss://env-host:6380")

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "rediss://env-host:6380", cfg.Redis.URL)
	assert.Equal(t, "from-dotenv", cfg.Service)
}

func TestLoad_FlagsOverrideEnv(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())
	t.Setenv("REDIS_URL", "rediss://from-env:6380")

	cfg, err := Load([]string{
		"--redis-url", "rediss://from-flag:6380",
		"--redis-cert-path", "/flag/ca.b64",
		"--interval", "5s",
		"--once",
	})
	require.NoError(t, err)

	assert.Equal(t, "rediss://from-flag:6380", cfg.Redis.URL)
	assert.Equal(t, "/flag/ca.b64", cfg.Redis.CertPath)
	assert.Equal(t, 5*time.Second, cfg.Poll.Interval)
	assert.True(t, cfg.Once)
}

func TestLoad_InvalidInterval(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())
	t.Setenv("POLL_INTERVAL", "soon")

	_, err := Load(nil)
	assert.Error(t, err)
}

func TestLoad_UnknownFlag(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())

	_, err := Load([]string{"--nope"})
	assert.Error(t, err)
}
