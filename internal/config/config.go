package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Backend BackendConfig `mapstructure:"backend"`
	Feed    FeedConfig    `mapstructure:"feed"`
	Store   StoreConfig   `mapstructure:"store"`
	Session SessionConfig `mapstructure:"session"`
	Log     LogConfig     `mapstructure:"log"`
	UI      UIConfig      `mapstructure:"ui"`
}

// BackendConfig points at the batch and detail fetch endpoints.
type BackendConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	BatchPath  string        `mapstructure:"batch_path"`
	DetailPath string        `mapstructure:"detail_path"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// FeedConfig holds push channel settings.
type FeedConfig struct {
	URL              string        `mapstructure:"url"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
	AckParseFailures bool          `mapstructure:"ack_parse_failures"`
}

// StoreConfig selects where palettes are persisted.
type StoreConfig struct {
	Driver string `mapstructure:"driver"` // sqlite | file | memory
	Path   string `mapstructure:"path"`
	Dir    string `mapstructure:"dir"`
	Key    string `mapstructure:"key"`
}

// SessionConfig scopes persisted palettes. An empty ID means a fresh session per run.
type SessionConfig struct {
	ID  string        `mapstructure:"id"`
	TTL time.Duration `mapstructure:"ttl"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// UIConfig holds presentation settings.
type UIConfig struct {
	ChartHeight int    `mapstructure:"chart_height"`
	Summary     string `mapstructure:"summary"` // bar | table
}

// Load reads configuration from file and env. Env var overrides use prefix SIMDASH_.
func Load() (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("toml")

	cfgPath := os.Getenv("SIMDASH_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "simdash"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("SIMDASH")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// read config file if present
	_ = v.ReadInConfig()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}

func setDefaults(v *viper.Viper) {
	home := os.Getenv("HOME")
	v.SetDefault("backend.base_url", "http://127.0.0.1:8000")
	v.SetDefault("backend.batch_path", "/getcsvdata")
	v.SetDefault("backend.detail_path", "/buildsingledata")
	v.SetDefault("backend.timeout", "10s")
	v.SetDefault("feed.url", "ws://127.0.0.1:3012")
	v.SetDefault("feed.handshake_timeout", "5s")
	v.SetDefault("feed.ack_parse_failures", false)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", filepath.Join(home, ".local", "share", "simdash", "simdash.db"))
	v.SetDefault("store.dir", filepath.Join(home, ".local", "share", "simdash", "prefs"))
	v.SetDefault("store.key", "colors")
	v.SetDefault("session.id", "")
	v.SetDefault("session.ttl", "24h")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", filepath.Join(home, ".local", "state", "simdash", "simdash.log"))
	v.SetDefault("ui.chart_height", 12)
	v.SetDefault("ui.summary", "bar")
}

// Path returns the config file location Save writes to.
func Path() string {
	if p := os.Getenv("SIMDASH_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(os.Getenv("HOME"), ".config", "simdash", "config.toml")
}

// Save writes the provided config to disk, creating the config directory if needed.
func Save(cfg Config) error {
	path := Path()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigType("toml")
	v.Set("backend.base_url", cfg.Backend.BaseURL)
	v.Set("backend.batch_path", cfg.Backend.BatchPath)
	v.Set("backend.detail_path", cfg.Backend.DetailPath)
	v.Set("backend.timeout", cfg.Backend.Timeout.String())
	v.Set("feed.url", cfg.Feed.URL)
	v.Set("feed.handshake_timeout", cfg.Feed.HandshakeTimeout.String())
	v.Set("feed.ack_parse_failures", cfg.Feed.AckParseFailures)
	v.Set("store.driver", cfg.Store.Driver)
	v.Set("store.path", cfg.Store.Path)
	v.Set("store.dir", cfg.Store.Dir)
	v.Set("store.key", cfg.Store.Key)
	v.Set("session.id", cfg.Session.ID)
	v.Set("session.ttl", cfg.Session.TTL.String())
	v.Set("log.level", cfg.Log.Level)
	v.Set("log.file", cfg.Log.File)
	v.Set("ui.chart_height", cfg.UI.ChartHeight)
	v.Set("ui.summary", cfg.UI.Summary)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
