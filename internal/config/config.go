// Package config loads weekplan settings from a YAML file and WEEKPLAN_
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Backend names
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Keyring choices. auto uses the OS keyring when one is available.
const (
	KeyringAuto = "auto"
	KeyringFile = "file"
)

// RedisConfig holds the Redis connection settings
type RedisConfig struct {
	Addr     string `mapstructure:"addr" yaml:"addr"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db" yaml:"db"`
}

// Config is the top-level application configuration
type Config struct {
	DataDir       string        `mapstructure:"data_dir" yaml:"data_dir"`
	DBPath        string        `mapstructure:"db_path" yaml:"db_path"`
	Backend       string        `mapstructure:"backend" yaml:"backend"`
	Redis         RedisConfig   `mapstructure:"redis" yaml:"redis"`
	WatchInterval time.Duration `mapstructure:"watch_interval" yaml:"watch_interval"`
	Keyring       string        `mapstructure:"keyring" yaml:"keyring"`
	Theme         string        `mapstructure:"theme" yaml:"theme"`
	Debug         bool          `mapstructure:"debug" yaml:"debug"`
}

// DefaultPath returns ~/.config/weekplan/config.yaml
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "weekplan", "config.yaml")
}

// DefaultDataDir returns ~/.local/share/weekplan
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".weekplan"
	}
	return filepath.Join(home, ".local", "share", "weekplan")
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("WEEKPLAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults also register the keys AutomaticEnv can override
	v.SetDefault("data_dir", DefaultDataDir())
	v.SetDefault("db_path", "")
	v.SetDefault("backend", BackendSQLite)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("watch_interval", 2*time.Second)
	v.SetDefault("keyring", KeyringAuto)
	v.SetDefault("theme", "catppuccin")
	v.SetDefault("debug", false)
	return v
}

// Load reads the configuration at path. A missing file yields defaults
// (still overridable from the environment).
func Load(path string) (*Config, error) {
	v := newViper(path)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		var pathErr *os.PathError
		if !errors.As(err, &notFound) && !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(cfg.DataDir, "weekplan.db")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks values viper cannot type-check
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendSQLite, BackendRedis, BackendMemory:
	default:
		return fmt.Errorf("unknown backend %q (want sqlite, redis or memory)", c.Backend)
	}
	switch c.Keyring {
	case KeyringAuto, KeyringFile:
	default:
		return fmt.Errorf("unknown keyring %q (want auto or file)", c.Keyring)
	}
	if c.WatchInterval <= 0 {
		return fmt.Errorf("watch_interval must be positive, got %s", c.WatchInterval)
	}
	return nil
}

// LockPath is the single-instance lock file for the TUI
func (c *Config) LockPath() string {
	return filepath.Join(c.DataDir, "weekplan.lock")
}

// KeyringDir is where the file keyring backend keeps the session
func (c *Config) KeyringDir() string {
	return filepath.Join(c.DataDir, "keyring")
}

// LogPath is the debug log file
func (c *Config) LogPath() string {
	return filepath.Join(c.DataDir, "debug.log")
}

// SaveTheme persists the theme choice, keeping the rest of the file
func SaveTheme(path, theme string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	v.Set("theme", theme)
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}
