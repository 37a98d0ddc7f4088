// Package config holds the aclstore configuration and opens the components it
// describes.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/openmined/aclstore/internal/store/btstore"
	"github.com/spf13/viper"
)

const (
	BackendBigtable = "bigtable"
	BackendBadger   = "badger"
	BackendSqlite   = "sqlite"

	CacheNone  = "none"
	CacheLRU   = "lru"
	CacheRedis = "redis"

	EnvPrefix = "ACLSTORE"
)

var (
	home, _           = os.UserHomeDir()
	DefaultDataDir    = filepath.Join(home, ".aclstore")
	DefaultConfigPath = filepath.Join(DefaultDataDir, "config.yaml")
)

type Config struct {
	LogLevel string      `mapstructure:"log_level"`
	LogFile  string      `mapstructure:"log_file"`
	Store    StoreConfig `mapstructure:"store"`
	Cache    CacheConfig `mapstructure:"cache"`
	Path     string      `mapstructure:"-"`
}

type StoreConfig struct {
	Backend  string         `mapstructure:"backend"`
	Bigtable BigtableConfig `mapstructure:"bigtable"`
	Badger   BadgerConfig   `mapstructure:"badger"`
	Sqlite   SqliteConfig   `mapstructure:"sqlite"`
}

type BigtableConfig struct {
	Project         string `mapstructure:"project"`
	Instance        string `mapstructure:"instance"`
	Table           string `mapstructure:"table"`
	Emulator        string `mapstructure:"emulator"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

type BadgerConfig struct {
	Dir      string `mapstructure:"dir"`
	InMemory bool   `mapstructure:"in_memory"`
}

type SqliteConfig struct {
	Path         string `mapstructure:"path"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type CacheConfig struct {
	Backend string        `mapstructure:"backend"`
	Size    int           `mapstructure:"size"`
	TTL     time.Duration `mapstructure:"ttl"`
	Redis   RedisConfig   `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Prefix      string        `mapstructure:"prefix"`
	MaxIdle     int           `mapstructure:"max_idle"`
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
}

// SetDefaults registers the default of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")
	v.SetDefault("store.backend", BackendBadger)
	v.SetDefault("store.bigtable.table", btstore.DefaultTable)
	v.SetDefault("store.badger.dir", filepath.Join(DefaultDataDir, "badger"))
	v.SetDefault("store.sqlite.path", filepath.Join(DefaultDataDir, "acls.db"))
	v.SetDefault("cache.backend", CacheLRU)
	v.SetDefault("cache.size", 10000)
	v.SetDefault("cache.ttl", 10*time.Minute)
	v.SetDefault("cache.redis.prefix", "aclstore:")
	v.SetDefault("cache.redis.max_idle", 8)
	v.SetDefault("cache.redis.idle_timeout", 4*time.Minute)
}

// BindEnv makes every key overridable by ACLSTORE_ variables, with dots replaced
// by underscores (ACLSTORE_STORE_BACKEND).
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// FromViper decodes and validates the configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config decode: %w", err)
	}
	cfg.Path = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if _, err := c.Level(); err != nil {
		return err
	}
	if err := c.Store.Validate(); err != nil {
		return err
	}
	return c.Cache.Validate()
}

// Level returns the configured log level.
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid `log_level` %q", c.LogLevel)
	}
	return level, nil
}

func (c *StoreConfig) Validate() error {
	switch c.Backend {
	case BackendBigtable:
		if c.Bigtable.Project == "" {
			return fmt.Errorf("store `bigtable.project` is required for the bigtable backend")
		}
		if c.Bigtable.Instance == "" {
			return fmt.Errorf("store `bigtable.instance` is required for the bigtable backend")
		}
		if c.Bigtable.Emulator != "" && c.Bigtable.CredentialsFile != "" {
			return fmt.Errorf("store `bigtable.emulator` and `bigtable.credentials_file` are exclusive")
		}
	case BackendBadger:
		if !c.Badger.InMemory && c.Badger.Dir == "" {
			return fmt.Errorf("store `badger.dir` is required unless `badger.in_memory` is set")
		}
	case BackendSqlite:
		if c.Sqlite.Path == "" {
			return fmt.Errorf("store `sqlite.path` is required for the sqlite backend")
		}
		if c.Sqlite.MaxOpenConns < 0 {
			return fmt.Errorf("store `sqlite.max_open_conns` cannot be negative")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Backend)
	}
	return nil
}

func (c *CacheConfig) Validate() error {
	switch c.Backend {
	case "", CacheNone:
	case CacheLRU:
		if c.Size < 0 {
			return fmt.Errorf("cache `size` cannot be negative")
		}
	case CacheRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("cache `redis.addr` is required for the redis cache")
		}
	default:
		return fmt.Errorf("unknown cache backend %q", c.Backend)
	}
	if c.TTL < 0 {
		return fmt.Errorf("cache `ttl` cannot be negative")
	}
	return nil
}
