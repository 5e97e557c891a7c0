package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chichichkin/LogentriesAgent/internal/logging"
)

const testToken = "2bfbea1e-10c3-4419-bdad-7e6435882e1f"

func TestGetConfig_Defaults(t *testing.T) {
	config, err := loadConfig(nil)
	require.NoError(t, err)

	assert.Equal(t, logging.DefaultHost, config.Host)
	assert.Equal(t, 80, config.Port)
	assert.Equal(t, 443, config.TLSPort)
	assert.Equal(t, 32768, config.QueueSize)
	assert.Equal(t, "block", config.QueuePolicy)
	assert.Equal(t, 100*time.Millisecond, config.MinDelay)
	assert.Equal(t, 10*time.Second, config.MaxDelay)
	assert.Equal(t, slog.LevelDebug, config.slogLevel())
}

func TestGetConfig_Environment(t *testing.T) {
	t.Setenv("LOGENTRIES_TOKEN", testToken)
	t.Setenv("LOGENTRIES_USE_TLS", "true")
	t.Setenv("QUEUE_SIZE", "64")
	t.Setenv("QUEUE_POLICY", "drop-newest")
	t.Setenv("RECONNECT_MAX_DELAY", "3s")
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("POLL", "not-a-bool")

	config, err := loadConfig(nil)
	require.NoError(t, err)

	assert.Equal(t, testToken, config.Token)
	assert.True(t, config.UseTLS)
	assert.Equal(t, 64, config.QueueSize)
	assert.Equal(t, 3*time.Second, config.MaxDelay)
	assert.Equal(t, slog.LevelWarn, config.slogLevel())
	assert.True(t, config.Poll, "unparsable values fall back to the default")

	le := config.Logentries()
	assert.NoError(t, le.Validate())
	assert.Equal(t, logging.PolicyDropNewest, le.QueuePolicy)
	assert.Equal(t, "api.logentries.com:443", le.Address())
}

func TestLoadConfig_FileThenFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.yaml")
	content := `
token: 2bfbea1e-10c3-4419-bdad-7e6435882e1f
host: collector.internal
port: 10000
flush_timeout: 3s
log_path: /srv/logs
metrics_addr: ""
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	config, err := loadConfig([]string{"--config", path, "--log-path", "/override", "-v"})
	require.NoError(t, err)

	assert.Equal(t, testToken, config.Token)
	assert.Equal(t, "collector.internal", config.Host)
	assert.Equal(t, 10000, config.Port)
	assert.Equal(t, 3*time.Second, config.FlushTimeout)
	assert.Equal(t, "/override", config.LogRootPath)
	assert.Equal(t, "", config.MetricsAddr)
	assert.True(t, config.Verbose)
	assert.Equal(t, "collector.internal:10000", config.Logentries().Address())
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := loadConfig([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")})
	assert.ErrorContains(t, err, "failed to read config file")

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("port: [1, 2"), 0644))
	_, err = loadConfig([]string{"--config", bad})
	assert.ErrorContains(t, err, "failed to parse config file")

	_, err = loadConfig([]string{"--no-such-flag"})
	assert.Error(t, err)
}
