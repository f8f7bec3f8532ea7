package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := GetDefaultConfig()

	require.NoError(t, Validate(cfg))
	assert.Equal(t, DefaultChatPort, cfg.Server.Port)
	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, "server.log", cfg.Logging.Output)
	assert.True(t, cfg.Logging.Truncate)
	assert.Equal(t, DefaultShutdownTimeout, cfg.ShutdownTimeout)
	assert.False(t, cfg.Metrics.Enabled)
	assert.False(t, cfg.API.Enabled)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))

	require.NoError(t, err)
	assert.Equal(t, DefaultChatPort, cfg.Server.Port)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
logging:
  level: debug
  output: stderr
server:
  port: 7000
  max_connections: 100
  status_log_interval: 1m
shutdown_timeout: 5s
metrics:
  enabled: true
api:
  enabled: true
  port: 9100
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", cfg.Logging.Level, "level is normalized to uppercase")
	assert.Equal(t, "stderr", cfg.Logging.Output)
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, 100, cfg.Server.MaxConnections)
	assert.Equal(t, time.Minute, cfg.Server.StatusLogInterval)
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
	assert.True(t, cfg.Metrics.Enabled)
	assert.True(t, cfg.API.Enabled)
	assert.Equal(t, 9100, cfg.API.Port)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"port out of range", "server:\n  port: 70000\n"},
		{"bad log level", "logging:\n  level: LOUD\nserver:\n  port: 7000\n"},
		{"negative max connections", "server:\n  port: 7000\n  max_connections: -1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0644))

			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestValidateRejectsPortConflict(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.API.Enabled = true
	cfg.API.Port = cfg.Server.Port

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "conflicts")
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := GetDefaultConfig()
	cfg.Server.Port = 7100
	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7100, loaded.Server.Port)
}

func TestEnvironmentOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 7000\n"), 0644))

	t.Setenv("RELAYCHAT_SERVER_PORT", "7200")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7200, cfg.Server.Port)
}
