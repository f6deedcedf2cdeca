package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every NOTISYNC_* override so tests see only what they set.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"NOTISYNC_CONFIG",
		"NOTISYNC_SERVER_URL",
		"NOTISYNC_PUSH_URL",
		"NOTISYNC_TOKEN_FILE",
		"NOTISYNC_SNAPSHOT_DB",
		"NOTISYNC_POLL_INTERVAL",
		"NOTISYNC_ALERT_COMMAND",
		"NOTISYNC_LOG_LEVEL",
		"NOTISYNC_LOG_ENABLED",
	} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFrom_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8000/api", cfg.ServerURL)
	assert.Equal(t, 30*time.Second, cfg.PollInterval)
	assert.Equal(t, 5*time.Second, cfg.CacheTTL)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 5*time.Second, cfg.ReconnectBase)
	assert.Equal(t, 60*time.Second, cfg.ReconnectCap)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.LogEnabled)
	assert.Equal(t, "ws://localhost:8000/api/ws/notifications/", cfg.PushURL)
}

func TestLoadFrom_File(t *testing.T) {
	clearEnv(t)
	path := writeConfigFile(t, `
server_url = "https://portal.example.edu/api"
token_file = "/tmp/notisync-token"
poll_interval = "45s"
cache_ttl = "2s"
log_level = "debug"
log_enabled = false
`)

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, "https://portal.example.edu/api", cfg.ServerURL)
	assert.Equal(t, "/tmp/notisync-token", cfg.TokenFile)
	assert.Equal(t, 45*time.Second, cfg.PollInterval)
	assert.Equal(t, 2*time.Second, cfg.CacheTTL)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.False(t, cfg.LogEnabled)
	// https derives wss.
	assert.Equal(t, "wss://portal.example.edu/api/ws/notifications/", cfg.PushURL)
}

func TestLoadFrom_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeConfigFile(t, `
server_url = "https://file.example.edu/api"
poll_interval = "45s"
`)
	t.Setenv("NOTISYNC_SERVER_URL", "https://env.example.edu/api")
	t.Setenv("NOTISYNC_POLL_INTERVAL", "15s")
	t.Setenv("NOTISYNC_LOG_ENABLED", "false")

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, "https://env.example.edu/api", cfg.ServerURL)
	assert.Equal(t, 15*time.Second, cfg.PollInterval)
	assert.False(t, cfg.LogEnabled)
}

func TestLoadFrom_InvalidValuesFallBack(t *testing.T) {
	clearEnv(t)
	path := writeConfigFile(t, `
poll_interval = "not a duration"
cache_ttl = "-3s"
log_level = "shout"
`)

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.PollInterval)
	assert.Equal(t, 5*time.Second, cfg.CacheTTL)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadFrom_MalformedTOML(t *testing.T) {
	clearEnv(t)
	path := writeConfigFile(t, `server_url = [broken`)

	_, err := LoadFrom(path)
	assert.Error(t, err)
}

func TestLoadFrom_ExplicitPushURLKept(t *testing.T) {
	clearEnv(t)
	path := writeConfigFile(t, `
server_url = "https://portal.example.edu/api"
push_url = "wss://push.example.edu/ws/notifications/"
`)

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "wss://push.example.edu/ws/notifications/", cfg.PushURL)
}

func TestLoadFrom_AlertCommand(t *testing.T) {
	clearEnv(t)
	path := writeConfigFile(t, `
alert_command = "notify-send \"$NOTISYNC_TITLE\""
alert_timeout = "5s"
`)

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, `notify-send "$NOTISYNC_TITLE"`, cfg.AlertCommand)
	assert.Equal(t, 5*time.Second, cfg.AlertTimeout)

	t.Setenv("NOTISYNC_ALERT_COMMAND", "true")
	cfg, err = LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "true", cfg.AlertCommand)
}

func TestDefaultPath_HonorsOverrides(t *testing.T) {
	clearEnv(t)

	t.Setenv("NOTISYNC_CONFIG", "/etc/notisync.toml")
	assert.Equal(t, "/etc/notisync.toml", DefaultPath())

	require.NoError(t, os.Unsetenv("NOTISYNC_CONFIG"))
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	assert.Equal(t, filepath.Join("/xdg", "notisync", "config.toml"), DefaultPath())
}

func TestDerivePushURL(t *testing.T) {
	tests := []struct {
		name   string
		server string
		want   string
	}{
		{"http", "http://localhost:8000", "ws://localhost:8000/ws/notifications/"},
		{"https", "https://portal.example.edu", "wss://portal.example.edu/ws/notifications/"},
		{"no scheme", "portal.example.edu", "portal.example.edu/ws/notifications/"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, derivePushURL(tt.server))
		})
	}
}

func TestNormalize_CapBelowBase(t *testing.T) {
	clearEnv(t)
	path := writeConfigFile(t, `
reconnect_base = "10s"
reconnect_cap = "1s"
`)

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, cfg.ReconnectBase)
	assert.Equal(t, 60*time.Second, cfg.ReconnectCap)
}
