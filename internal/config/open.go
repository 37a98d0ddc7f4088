package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/openmined/aclstore/internal/acl"
	"github.com/openmined/aclstore/internal/aclcache"
	"github.com/openmined/aclstore/internal/aclcodec"
	"github.com/openmined/aclstore/internal/aclservice"
	"github.com/openmined/aclstore/internal/db"
	"github.com/openmined/aclstore/internal/fsutil"
	"github.com/openmined/aclstore/internal/idcodec"
	"github.com/openmined/aclstore/internal/repository"
	"github.com/openmined/aclstore/internal/store"
	"github.com/openmined/aclstore/internal/store/badgerstore"
	"github.com/openmined/aclstore/internal/store/btstore"
	"github.com/openmined/aclstore/internal/store/sqlstore"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Runtime is the set of components built from a Config.
type Runtime struct {
	Store       store.Store
	Registry    *idcodec.Registry
	Permissions *acl.DefaultPermissionFactory
	Repository  *repository.Repository
	Service     *aclservice.Service

	closers []func() error
}

// Open builds every component cfg describes. The caller must Close the runtime.
func Open(ctx context.Context, cfg *Config) (*Runtime, error) {
	s, err := OpenStore(ctx, &cfg.Store)
	if err != nil {
		return nil, err
	}
	rt := &Runtime{
		Store:       s,
		Registry:    idcodec.NewRegistry(),
		Permissions: acl.NewPermissionFactory(),
		closers:     []func() error{s.Close},
	}

	codec := aclcodec.New(rt.Registry, rt.Permissions)

	cache, closeCache, err := NewCache(&cfg.Cache, codec)
	if err != nil {
		rt.Close()
		return nil, err
	}
	if closeCache != nil {
		rt.closers = append(rt.closers, closeCache)
	}

	rt.Repository = repository.New(s,
		repository.WithCodec(codec),
		repository.WithCache(cache),
		repository.WithLogger(slog.Default().With("component", "repository")),
	)
	rt.Service = aclservice.New(rt.Repository)
	return rt, nil
}

// Close releases the store and the cache.
func (rt *Runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// OpenStore opens the configured store backend.
func OpenStore(ctx context.Context, cfg *StoreConfig) (store.Store, error) {
	switch cfg.Backend {
	case BackendBigtable:
		var opts []option.ClientOption
		switch {
		case cfg.Bigtable.Emulator != "":
			opts = append(opts,
				option.WithEndpoint(cfg.Bigtable.Emulator),
				option.WithoutAuthentication(),
				option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
			)
		case cfg.Bigtable.CredentialsFile != "":
			opts = append(opts, option.WithCredentialsFile(cfg.Bigtable.CredentialsFile))
		}
		return btstore.New(ctx, btstore.Options{
			Project:       cfg.Bigtable.Project,
			Instance:      cfg.Bigtable.Instance,
			Table:         cfg.Bigtable.Table,
			ClientOptions: opts,
		})

	case BackendBadger:
		if cfg.Badger.InMemory {
			return badgerstore.New(badgerstore.WithInMemory())
		}
		dir, err := fsutil.ResolvePath(cfg.Badger.Dir)
		if err != nil {
			return nil, fmt.Errorf("badger dir: %w", err)
		}
		if err := fsutil.EnsureDir(dir); err != nil {
			return nil, fmt.Errorf("badger dir: %w", err)
		}
		return badgerstore.New(badgerstore.WithDir(dir))

	case BackendSqlite:
		path := cfg.Sqlite.Path
		if path != db.MemoryPath {
			var err error
			if path, err = fsutil.ResolvePath(path); err != nil {
				return nil, fmt.Errorf("sqlite path: %w", err)
			}
		}
		opts := []db.SqliteOption{db.WithPath(path)}
		if cfg.Sqlite.MaxOpenConns > 0 {
			opts = append(opts, db.WithMaxOpenConns(cfg.Sqlite.MaxOpenConns))
		}
		return sqlstore.New(opts...)
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
}

// NewCache builds the configured cache. The returned closer is nil when the
// cache holds no resources.
func NewCache(cfg *CacheConfig, codec *aclcodec.Codec) (aclcache.Cache, func() error, error) {
	switch cfg.Backend {
	case "", CacheNone:
		return aclcache.Nop{}, nil, nil
	case CacheLRU:
		return aclcache.NewLRU(cfg.Size, cfg.TTL), nil, nil
	case CacheRedis:
		pool := aclcache.NewPool(cfg.Redis.Addr, cfg.Redis.MaxIdle, cfg.Redis.IdleTimeout)
		opts := []aclcache.RedisOption{
			aclcache.WithTTL(cfg.TTL),
			aclcache.WithLogger(slog.Default().With("component", "cache")),
		}
		if cfg.Redis.Prefix != "" {
			opts = append(opts, aclcache.WithPrefix(cfg.Redis.Prefix))
		}
		return aclcache.NewRedis(pool, codec, opts...), pool.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
}
