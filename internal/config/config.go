// Package config provides configuration loading for notisync.
//
// Configuration is resolved in three layers: built-in defaults, an optional
// TOML file, and NOTISYNC_* environment variable overrides (env wins).
// Invalid values fall back to their defaults rather than failing startup.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// File permission constants.
const (
	// FileModeDir is the permission for directories (rwxr-xr-x).
	FileModeDir os.FileMode = 0755
	// FileModeFile is the permission for data files (rw-------).
	FileModeFile os.FileMode = 0600
)

// Config holds all notisync settings.
type Config struct {
	// ServerURL is the base URL of the portal REST API.
	ServerURL string
	// PushURL is the websocket URL of the push channel. Derived from
	// ServerURL when empty.
	PushURL string
	// TokenFile is the path of the file holding the bearer token.
	TokenFile string
	// SnapshotDB is the path of the offline snapshot database.
	SnapshotDB string

	// PollInterval is the polling fallback cadence.
	PollInterval time.Duration
	// CacheTTL is how long a cached gateway response stays fresh.
	CacheTTL time.Duration
	// RequestTimeout bounds every REST request.
	RequestTimeout time.Duration
	// ReconnectBase is the first reconnect backoff delay.
	ReconnectBase time.Duration
	// ReconnectCap is the maximum reconnect backoff delay.
	ReconnectCap time.Duration

	// AlertCommand is a shell command run for high-priority arrivals, with
	// the notification passed in NOTISYNC_* environment variables. Empty
	// disables command alerts.
	AlertCommand string
	// AlertTimeout bounds a single alert command run.
	AlertTimeout time.Duration

	// LogLevel is the minimum level to record (debug, info, warn, error).
	LogLevel string
	// LogEnabled toggles logging entirely.
	LogEnabled bool
}

// fileConfig is the TOML shape of the config file. Durations are strings in
// time.ParseDuration syntax ("30s", "1m"); invalid values fall back to the
// defaults.
type fileConfig struct {
	ServerURL      string `toml:"server_url"`
	PushURL        string `toml:"push_url"`
	TokenFile      string `toml:"token_file"`
	SnapshotDB     string `toml:"snapshot_db"`
	PollInterval   string `toml:"poll_interval"`
	CacheTTL       string `toml:"cache_ttl"`
	RequestTimeout string `toml:"request_timeout"`
	ReconnectBase  string `toml:"reconnect_base"`
	ReconnectCap   string `toml:"reconnect_cap"`
	AlertCommand   string `toml:"alert_command"`
	AlertTimeout   string `toml:"alert_timeout"`
	LogLevel       string `toml:"log_level"`
	LogEnabled     *bool  `toml:"log_enabled"`
}

// Default returns the built-in configuration defaults.
func Default() Config {
	return Config{
		ServerURL:      "http://localhost:8000/api",
		TokenFile:      filepath.Join(stateDir(), "token"),
		SnapshotDB:     filepath.Join(stateDir(), "snapshot.db"),
		PollInterval:   30 * time.Second,
		CacheTTL:       5 * time.Second,
		RequestTimeout: 10 * time.Second,
		ReconnectBase:  5 * time.Second,
		ReconnectCap:   60 * time.Second,
		AlertTimeout:   30 * time.Second,
		LogLevel:       "info",
		LogEnabled:     true,
	}
}

// Load resolves configuration from defaults, the config file, and
// environment overrides. A missing config file is not an error.
func Load() (Config, error) {
	return LoadFrom(DefaultPath())
}

// LoadFrom resolves configuration using the given config file path.
func LoadFrom(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Defaults apply.
		case err != nil:
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		default:
			var fc fileConfig
			if err := toml.Unmarshal(data, &fc); err != nil {
				return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
			}
			fc.apply(&cfg)
		}
	}

	cfg.applyEnv()
	cfg.normalize()
	return cfg, nil
}

// DefaultPath returns the default config file location, honoring
// XDG_CONFIG_HOME.
func DefaultPath() string {
	if p := os.Getenv("NOTISYNC_CONFIG"); p != "" {
		return p
	}
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "notisync", "config.toml")
}

// stateDir returns the directory for mutable state, honoring XDG_STATE_HOME.
func stateDir() string {
	base := os.Getenv("XDG_STATE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return os.TempDir()
		}
		base = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(base, "notisync")
}

// apply copies parsed file values onto cfg, skipping empty or invalid ones.
func (fc fileConfig) apply(cfg *Config) {
	if fc.ServerURL != "" {
		cfg.ServerURL = fc.ServerURL
	}
	if fc.PushURL != "" {
		cfg.PushURL = fc.PushURL
	}
	if fc.TokenFile != "" {
		cfg.TokenFile = fc.TokenFile
	}
	if fc.SnapshotDB != "" {
		cfg.SnapshotDB = fc.SnapshotDB
	}
	applyDuration(&cfg.PollInterval, fc.PollInterval)
	applyDuration(&cfg.CacheTTL, fc.CacheTTL)
	applyDuration(&cfg.RequestTimeout, fc.RequestTimeout)
	applyDuration(&cfg.ReconnectBase, fc.ReconnectBase)
	applyDuration(&cfg.ReconnectCap, fc.ReconnectCap)
	if fc.AlertCommand != "" {
		cfg.AlertCommand = fc.AlertCommand
	}
	applyDuration(&cfg.AlertTimeout, fc.AlertTimeout)
	if fc.LogLevel != "" {
		cfg.LogLevel = fc.LogLevel
	}
	if fc.LogEnabled != nil {
		cfg.LogEnabled = *fc.LogEnabled
	}
}

func applyDuration(dst *time.Duration, raw string) {
	if raw == "" {
		return
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		*dst = d
	}
}

// applyEnv overrides values from NOTISYNC_* environment variables.
func (c *Config) applyEnv() {
	if v := os.Getenv("NOTISYNC_SERVER_URL"); v != "" {
		c.ServerURL = v
	}
	if v := os.Getenv("NOTISYNC_PUSH_URL"); v != "" {
		c.PushURL = v
	}
	if v := os.Getenv("NOTISYNC_TOKEN_FILE"); v != "" {
		c.TokenFile = v
	}
	if v := os.Getenv("NOTISYNC_SNAPSHOT_DB"); v != "" {
		c.SnapshotDB = v
	}
	if v := os.Getenv("NOTISYNC_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.PollInterval = d
		}
	}
	if v := os.Getenv("NOTISYNC_ALERT_COMMAND"); v != "" {
		c.AlertCommand = v
	}
	if v := os.Getenv("NOTISYNC_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("NOTISYNC_LOG_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.LogEnabled = b
		}
	}
}

// normalize replaces invalid values with defaults and derives PushURL.
func (c *Config) normalize() {
	def := Default()
	if c.PollInterval <= 0 {
		c.PollInterval = def.PollInterval
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = def.CacheTTL
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = def.RequestTimeout
	}
	if c.ReconnectBase <= 0 {
		c.ReconnectBase = def.ReconnectBase
	}
	if c.ReconnectCap < c.ReconnectBase {
		c.ReconnectCap = def.ReconnectCap
	}
	if c.AlertTimeout <= 0 {
		c.AlertTimeout = def.AlertTimeout
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "warning", "error":
	default:
		c.LogLevel = def.LogLevel
	}
	if c.PushURL == "" {
		c.PushURL = derivePushURL(c.ServerURL)
	}
}

// derivePushURL maps an http(s) base URL to its ws(s) notification endpoint.
func derivePushURL(serverURL string) string {
	switch {
	case len(serverURL) >= 8 && serverURL[:8] == "https://":
		return "wss://" + serverURL[8:] + "/ws/notifications/"
	case len(serverURL) >= 7 && serverURL[:7] == "http://":
		return "ws://" + serverURL[7:] + "/ws/notifications/"
	default:
		return serverURL + "/ws/notifications/"
	}
}
