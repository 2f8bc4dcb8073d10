package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// ─── Configuration ──────────────────────────────────────────────────────────
// Loaded from $STUDIO_HOME/config.toml. Every field has a default, so a
// missing file is not an error.

// Config is the full studio configuration.
type Config struct {
	Backend       BackendConfig       `toml:"backend"`
	DataStore     DataStoreConfig     `toml:"datastore"`
	Ledger        LedgerConfig        `toml:"ledger"`
	Checkout      CheckoutConfig      `toml:"checkout"`
	Notifications NotificationsConfig `toml:"notifications"`
	API           APIConfig           `toml:"api"`
	Metrics       MetricsConfig       `toml:"metrics"`
	Log           LogConfig           `toml:"log"`
	Session       SessionConfig       `toml:"session"`
}

// BackendConfig points at the generation backend.
type BackendConfig struct {
	BaseURL string `toml:"base_url"`
}

// DataStoreConfig selects the relational data store.
type DataStoreConfig struct {
	Driver    string `toml:"driver"` // "supabase" or "sqlite"
	URL       string `toml:"url"`
	APIKey    string `toml:"api_key"`
	SQLiteDir string `toml:"sqlite_dir"`
}

// LedgerConfig tunes the credit ledger.
type LedgerConfig struct {
	Window          int    `toml:"window"`
	RefreshInterval string `toml:"refresh_interval"`
}

// CheckoutConfig points at the hosted payment link.
type CheckoutConfig struct {
	URL string `toml:"url"`
}

// NotificationsConfig tunes the notification feed.
type NotificationsConfig struct {
	DedupWindow string `toml:"dedup_window"`
	MaxItems    int    `toml:"max_items"`
}

// APIConfig is the local HTTP surface.
type APIConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// MetricsConfig toggles /metrics.
type MetricsConfig struct {
	Enabled bool `toml:"enabled"`
}

// LogConfig selects level and format.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "text" or "json"
}

// SessionConfig carries the pre-authenticated user for CLI and daemon use.
type SessionConfig struct {
	UserID string `toml:"user_id"`
}

// DefaultConfig returns a config with every default filled in.
func DefaultConfig() Config {
	return Config{
		Backend: BackendConfig{
			BaseURL: "http://127.0.0.1:8787/api",
		},
		DataStore: DataStoreConfig{
			Driver:    "sqlite",
			SQLiteDir: filepath.Join(Home(), "data"),
		},
		Ledger: LedgerConfig{
			Window:          100,
			RefreshInterval: "1m",
		},
		Notifications: NotificationsConfig{
			DedupWindow: "3s",
			MaxItems:    50,
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 7878,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Home is the studio home directory: $STUDIO_HOME or ~/.studio.
func Home() string {
	if h := os.Getenv("STUDIO_HOME"); h != "" {
		return h
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".studio"
	}
	return filepath.Join(home, ".studio")
}

// ConfigPath is the config file location.
func ConfigPath() string {
	return filepath.Join(Home(), "config.toml")
}

// LoadConfig reads the config file at path over the defaults and applies
// environment overrides. A missing file yields the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("STUDIO_BACKEND_URL"); v != "" {
		c.Backend.BaseURL = v
	}
	if v := os.Getenv("STUDIO_DATASTORE_URL"); v != "" {
		c.DataStore.URL = v
		c.DataStore.Driver = "supabase"
	}
	if v := os.Getenv("STUDIO_DATASTORE_KEY"); v != "" {
		c.DataStore.APIKey = v
	}
	if v := os.Getenv("STUDIO_USER_ID"); v != "" {
		c.Session.UserID = v
	}
}

// Validate checks values that cannot be defaulted.
func (c Config) Validate() error {
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url is required")
	}
	switch c.DataStore.Driver {
	case "sqlite":
		if c.DataStore.SQLiteDir == "" {
			return fmt.Errorf("datastore.sqlite_dir is required for the sqlite driver")
		}
	case "supabase":
		if c.DataStore.URL == "" || c.DataStore.APIKey == "" {
			return fmt.Errorf("datastore.url and datastore.api_key are required for the supabase driver")
		}
	default:
		return fmt.Errorf("unknown datastore.driver %q", c.DataStore.Driver)
	}
	if _, err := c.RefreshInterval(); err != nil {
		return err
	}
	if _, err := c.DedupWindow(); err != nil {
		return err
	}
	return nil
}

// RefreshInterval parses ledger.refresh_interval. Zero disables re-polling.
func (c Config) RefreshInterval() (time.Duration, error) {
	return parseDuration("ledger.refresh_interval", c.Ledger.RefreshInterval)
}

// DedupWindow parses notifications.dedup_window.
func (c Config) DedupWindow() (time.Duration, error) {
	return parseDuration("notifications.dedup_window", c.Notifications.DedupWindow)
}

func parseDuration(key, s string) (time.Duration, error) {
	if s == "" || s == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative", key)
	}
	return d, nil
}

// Addr is the API listen address.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.API.Host, c.API.Port)
}
