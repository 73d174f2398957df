package internal

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Environment variables that override the config file
const (
	EnvAPIURL = "CHAT_SESSION_API_URL"
	EnvWSURL  = "CHAT_SESSION_WS_URL"
	EnvStore  = "CHAT_SESSION_STORE"
	EnvScope  = "CHAT_SESSION_SCOPE"
)

// Config is the on-disk configuration (~/.chat-session/config.toml)
type Config struct {
	API      APIConfig      `toml:"api"`
	Realtime RealtimeConfig `toml:"realtime"`
	Storage  StorageConfig  `toml:"storage"`
	Cache    CacheConfig    `toml:"cache"`
	Log      LogConfig      `toml:"log"`
}

type APIConfig struct {
	BaseURL      string        `toml:"base_url"`
	Timeout      time.Duration `toml:"timeout"`
	HistoryLimit int           `toml:"history_limit"`
}

type RealtimeConfig struct {
	URL                  string        `toml:"url"`
	MaxReconnectAttempts int           `toml:"max_reconnect_attempts"`
	BaseDelay            time.Duration `toml:"base_delay"`
}

// StorageConfig locates the tab-scoped store. An empty Scope gets a fresh
// scope per process, which behaves like opening a new tab.
type StorageConfig struct {
	Path  string `toml:"path"`
	Scope string `toml:"scope"`
}

type CacheConfig struct {
	Dir string `toml:"dir"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

// ConfigDir returns ~/.chat-session
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".chat-session"
	}
	return filepath.Join(home, ".chat-session")
}

// DefaultConfigPath returns the config file looked up when --config is not given
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// DefaultConfig returns the built-in configuration
func DefaultConfig() *Config {
	dir := ConfigDir()
	return &Config{
		API: APIConfig{
			BaseURL:      "http://localhost:8000",
			Timeout:      DefaultAPITimeout,
			HistoryLimit: DefaultHistoryLimit,
		},
		Realtime: RealtimeConfig{
			URL:                  "ws://localhost:8000/ws",
			MaxReconnectAttempts: 5,
			BaseDelay:            time.Second,
		},
		Storage: StorageConfig{
			Path: filepath.Join(dir, "storage.db"),
		},
		Cache: CacheConfig{
			Dir: filepath.Join(dir, "transcripts"),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadConfig loads defaults, then the TOML file, then environment overrides,
// and validates the result. An empty path reads the default file if it exists;
// an explicit path must exist.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath()
	}

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config %s: %w", path, err)
		}
		LogDebug("Loaded config from %s", path)
	} else if explicit || !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg.ApplyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ApplyEnvOverrides applies CHAT_SESSION_* environment variables
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv(EnvAPIURL); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv(EnvWSURL); v != "" {
		c.Realtime.URL = v
	}
	if v := os.Getenv(EnvStore); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv(EnvScope); v != "" {
		c.Storage.Scope = v
	}
}

// Validate checks the configuration and returns the first problem as a ValidationError
func (c *Config) Validate() error {
	if err := validateURL("api.base_url", c.API.BaseURL, "http", "https"); err != nil {
		return err
	}
	if c.API.Timeout <= 0 {
		return &ValidationError{Field: "api.timeout", Reason: "must be positive"}
	}
	if c.API.HistoryLimit < 1 || c.API.HistoryLimit > MaxHistoryLimit {
		return &ValidationError{Field: "api.history_limit", Reason: fmt.Sprintf("must be between 1 and %d", MaxHistoryLimit)}
	}
	if c.Realtime.URL != "" {
		if err := validateURL("realtime.url", c.Realtime.URL, "ws", "wss"); err != nil {
			return err
		}
	}
	if c.Realtime.MaxReconnectAttempts < 0 {
		return &ValidationError{Field: "realtime.max_reconnect_attempts", Reason: "must not be negative"}
	}
	if c.Realtime.BaseDelay <= 0 {
		return &ValidationError{Field: "realtime.base_delay", Reason: "must be positive"}
	}
	if c.Storage.Path == "" {
		return &ValidationError{Field: "storage.path", Reason: "must not be empty"}
	}
	switch c.Log.Level {
	case "", "error", "warn", "warning", "info", "debug":
	default:
		return &ValidationError{Field: "log.level", Reason: fmt.Sprintf("unknown level %q", c.Log.Level)}
	}
	return nil
}

func validateURL(field, raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return &ValidationError{Field: field, Reason: fmt.Sprintf("%q is not an absolute URL", raw)}
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return nil
		}
	}
	return &ValidationError{Field: field, Reason: fmt.Sprintf("scheme must be one of %v", schemes)}
}
