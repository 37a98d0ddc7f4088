package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cloud.google.com/go/bigtable/bttest"
	"github.com/alicebob/miniredis/v2"
	"github.com/openmined/aclstore/internal/acl"
	"github.com/openmined/aclstore/internal/aclcache"
	"github.com/openmined/aclstore/internal/aclcodec"
	"github.com/openmined/aclstore/internal/aclservice"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	BindEnv(v)
	return v
}

func TestDefaults(t *testing.T) {
	cfg, err := FromViper(newViper())
	require.NoError(t, err)

	assert.Equal(t, BackendBadger, cfg.Store.Backend)
	assert.Equal(t, "acls", cfg.Store.Bigtable.Table)
	assert.Equal(t, CacheLRU, cfg.Cache.Backend)
	assert.Equal(t, 10*time.Minute, cfg.Cache.TTL)

	level, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, level)
}

func TestConfigFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level: debug
store:
  backend: bigtable
  bigtable:
    project: proj
    instance: inst
cache:
  backend: redis
  ttl: 30s
  redis:
    addr: localhost:6379
`), 0o644))

	t.Setenv("ACLSTORE_STORE_BIGTABLE_INSTANCE", "from-env")

	v := newViper()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := FromViper(v)
	require.NoError(t, err)

	assert.Equal(t, path, cfg.Path)
	assert.Equal(t, BackendBigtable, cfg.Store.Backend)
	assert.Equal(t, "proj", cfg.Store.Bigtable.Project)
	assert.Equal(t, "from-env", cfg.Store.Bigtable.Instance)
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL)
	assert.Equal(t, "localhost:6379", cfg.Cache.Redis.Addr)

	level, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Store: StoreConfig{Backend: BackendBadger, Badger: BadgerConfig{InMemory: true}},
			Cache: CacheConfig{Backend: CacheLRU},
		}
	}

	testCases := []struct {
		desc   string
		mutate func(c *Config)
		ok     bool
	}{
		{"valid", func(c *Config) {}, true},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, false},
		{"unknown backend", func(c *Config) { c.Store.Backend = "cassandra" }, false},
		{"bigtable without project", func(c *Config) { c.Store.Backend = BackendBigtable; c.Store.Bigtable.Instance = "i" }, false},
		{"bigtable without instance", func(c *Config) { c.Store.Backend = BackendBigtable; c.Store.Bigtable.Project = "p" }, false},
		{"bigtable emulator and credentials", func(c *Config) {
			c.Store.Backend = BackendBigtable
			c.Store.Bigtable = BigtableConfig{Project: "p", Instance: "i", Emulator: "localhost:8086", CredentialsFile: "key.json"}
		}, false},
		{"badger without dir", func(c *Config) { c.Store.Badger = BadgerConfig{} }, false},
		{"sqlite without path", func(c *Config) { c.Store.Backend = BackendSqlite }, false},
		{"sqlite negative conns", func(c *Config) {
			c.Store.Backend = BackendSqlite
			c.Store.Sqlite = SqliteConfig{Path: "x.db", MaxOpenConns: -1}
		}, false},
		{"no cache", func(c *Config) { c.Cache.Backend = CacheNone }, true},
		{"unknown cache", func(c *Config) { c.Cache.Backend = "memcached" }, false},
		{"redis without addr", func(c *Config) { c.Cache.Backend = CacheRedis }, false},
		{"negative ttl", func(c *Config) { c.Cache.TTL = -time.Second }, false},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			cfg := valid()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

// exercise opens rt, stores a record and reads it back.
func exercise(t *testing.T, rt *Runtime) {
	t.Helper()
	ctx := aclservice.WithPrincipal(context.Background(), "alice")
	require.NoError(t, rt.Store.EnsureSchema(ctx, aclcodec.Families...))

	oid := acl.NewObjectIdentity("Document", int64(42))
	_, err := rt.Service.CreateAcl(ctx, oid)
	require.NoError(t, err)

	_, err = rt.Service.Grant(ctx, oid, acl.PrincipalSid("bob"), acl.PermissionRead, true)
	require.NoError(t, err)

	record, err := rt.Service.ReadAclByID(ctx, oid)
	require.NoError(t, err)
	assert.Equal(t, 1, record.Len())
}

func TestOpenBackends(t *testing.T) {
	testCases := []struct {
		desc  string
		store func(t *testing.T) StoreConfig
	}{
		{"badger", func(t *testing.T) StoreConfig {
			return StoreConfig{Backend: BackendBadger, Badger: BadgerConfig{Dir: filepath.Join(t.TempDir(), "badger")}}
		}},
		{"badger in memory", func(t *testing.T) StoreConfig {
			return StoreConfig{Backend: BackendBadger, Badger: BadgerConfig{InMemory: true}}
		}},
		{"sqlite", func(t *testing.T) StoreConfig {
			return StoreConfig{Backend: BackendSqlite, Sqlite: SqliteConfig{Path: filepath.Join(t.TempDir(), "acls.db")}}
		}},
		{"bigtable emulator", func(t *testing.T) StoreConfig {
			srv, err := bttest.NewServer("localhost:0")
			require.NoError(t, err)
			t.Cleanup(srv.Close)
			return StoreConfig{Backend: BackendBigtable, Bigtable: BigtableConfig{
				Project: "proj", Instance: "inst", Table: "acls", Emulator: srv.Addr,
			}}
		}},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			cfg := &Config{Store: tc.store(t), Cache: CacheConfig{Backend: CacheLRU, Size: 10}}
			require.NoError(t, cfg.Validate())

			rt, err := Open(context.Background(), cfg)
			require.NoError(t, err)
			defer rt.Close()

			exercise(t, rt)
		})
	}
}

func TestOpenWithRedisCache(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	cfg := &Config{
		Store: StoreConfig{Backend: BackendBadger, Badger: BadgerConfig{InMemory: true}},
		Cache: CacheConfig{Backend: CacheRedis, TTL: time.Minute, Redis: RedisConfig{Addr: s.Addr(), Prefix: "t:", MaxIdle: 2}},
	}
	require.NoError(t, cfg.Validate())

	rt, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	defer rt.Close()

	exercise(t, rt)
	assert.NotEmpty(t, s.Keys())
}

func TestNewCache(t *testing.T) {
	codec := aclcodec.New(nil, nil)

	c, closer, err := NewCache(&CacheConfig{Backend: CacheNone}, codec)
	require.NoError(t, err)
	assert.IsType(t, aclcache.Nop{}, c)
	assert.Nil(t, closer)

	c, _, err = NewCache(&CacheConfig{Backend: CacheLRU, Size: 5}, codec)
	require.NoError(t, err)
	assert.IsType(t, &aclcache.LRU{}, c)

	_, _, err = NewCache(&CacheConfig{Backend: "memcached"}, codec)
	assert.Error(t, err)
}
