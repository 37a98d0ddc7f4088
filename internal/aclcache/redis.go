package aclcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/openmined/aclstore/internal/acl"
	"github.com/openmined/aclstore/internal/aclcodec"
	"github.com/openmined/aclstore/internal/store"
	"github.com/vmihailenco/msgpack/v5"
)

// DefaultPrefix namespaces cache keys in Redis.
const DefaultPrefix = "aclstore:"

// cachedRecord is the Redis value of a record: its row key and cells plus the
// sids it was loaded for.
type cachedRecord struct {
	Key    []byte       `msgpack:"k"`
	Cells  []cachedCell `msgpack:"c"`
	Loaded []cachedSid  `msgpack:"l,omitempty"`
}

type cachedCell struct {
	Family    string `msgpack:"f"`
	Qualifier []byte `msgpack:"q"`
	Value     []byte `msgpack:"v"`
}

type cachedSid struct {
	Authority string `msgpack:"a"`
	Principal bool   `msgpack:"p"`
}

// Redis is a cache shared by every process pointing at the same server. Records
// are stored in their row encoding, so a reader decodes a private copy.
type Redis struct {
	pool   *redis.Pool
	codec  *aclcodec.Codec
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

// RedisOption configures a Redis cache.
type RedisOption func(*Redis)

// WithPrefix namespaces keys. It defaults to DefaultPrefix.
func WithPrefix(prefix string) RedisOption {
	return func(r *Redis) {
		r.prefix = prefix
	}
}

// WithTTL expires records after ttl. Zero keeps them until evicted.
func WithTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) {
		r.ttl = ttl
	}
}

// WithLogger sets the logger for cache failures.
func WithLogger(logger *slog.Logger) RedisOption {
	return func(r *Redis) {
		r.logger = logger
	}
}

// NewRedis returns a cache on pool. codec must match the repository's codec.
func NewRedis(pool *redis.Pool, codec *aclcodec.Codec, opts ...RedisOption) *Redis {
	r := &Redis{
		pool:   pool,
		codec:  codec,
		prefix: DefaultPrefix,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewPool returns a connection pool for addr ("host:port").
func NewPool(addr string, maxIdle int, idleTimeout time.Duration) *redis.Pool {
	return &redis.Pool{
		MaxIdle:     maxIdle,
		IdleTimeout: idleTimeout,
		DialContext: func(ctx context.Context) (redis.Conn, error) {
			return redis.DialContext(ctx, "tcp", addr)
		},
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			if time.Since(t) < time.Minute {
				return nil
			}
			_, err := c.Do("PING")
			return err
		},
	}
}

func (r *Redis) key(key string) string {
	return r.prefix + key
}

func (r *Redis) Get(ctx context.Context, key string, sids []acl.Sid) (*acl.Acl, bool) {
	a, err := r.read(ctx, key)
	switch {
	case errors.Is(err, redis.ErrNil):
		return nil, false
	case err != nil:
		r.logger.Warn("acl cache read", "key", fmt.Sprintf("%x", key), "error", err)
		return nil, false
	case !a.Covers(sids):
		return nil, false
	}
	return a, true
}

func (r *Redis) read(ctx context.Context, key string) (*acl.Acl, error) {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	data, err := redis.Bytes(conn.Do("GET", r.key(key)))
	if err != nil {
		return nil, err
	}

	var rec cachedRecord
	if err := msgpack.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}

	cells := make([]store.Cell, 0, len(rec.Cells))
	for _, c := range rec.Cells {
		cells = append(cells, store.Cell{Family: c.Family, Qualifier: c.Qualifier, Value: c.Value})
	}

	var loaded []acl.Sid
	for _, s := range rec.Loaded {
		loaded = append(loaded, acl.Sid{Authority: s.Authority, Principal: s.Principal})
	}

	rowKey := rec.Key
	if len(rowKey) == 0 {
		// written before row keys were recorded
		rowKey = []byte(key)
	}
	return r.codec.DecodeRow(store.NewRow(rowKey, cells), loaded)
}

func (r *Redis) Put(ctx context.Context, key string, a *acl.Acl) {
	if err := r.write(ctx, key, a); err != nil {
		r.logger.Warn("acl cache write", "key", fmt.Sprintf("%x", key), "error", err)
		// a stale copy must not outlive a failed write
		r.Evict(ctx, key)
	}
}

func (r *Redis) write(ctx context.Context, key string, a *acl.Acl) error {
	rowKey, cells, err := r.codec.EncodeRow(a)
	if err != nil {
		return err
	}

	rec := cachedRecord{Key: rowKey, Cells: make([]cachedCell, 0, len(cells))}
	for _, c := range cells {
		rec.Cells = append(rec.Cells, cachedCell{Family: c.Family, Qualifier: c.Qualifier, Value: c.Value})
	}
	for _, s := range a.LoadedSids() {
		rec.Loaded = append(rec.Loaded, cachedSid{Authority: s.Authority, Principal: s.Principal})
	}

	data, err := msgpack.Marshal(&rec)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if r.ttl > 0 {
		_, err = conn.Do("SET", r.key(key), data, "PX", r.ttl.Milliseconds())
	} else {
		_, err = conn.Do("SET", r.key(key), data)
	}
	return err
}

func (r *Redis) Evict(ctx context.Context, key string) {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		r.logger.Warn("acl cache evict", "key", fmt.Sprintf("%x", key), "error", err)
		return
	}
	defer conn.Close()

	if _, err := conn.Do("DEL", r.key(key)); err != nil {
		r.logger.Warn("acl cache evict", "key", fmt.Sprintf("%x", key), "error", err)
	}
}

// Clear deletes every key under the cache prefix.
func (r *Redis) Clear(ctx context.Context) error {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	cursor := 0
	for {
		reply, err := redis.Values(conn.Do("SCAN", cursor, "MATCH", r.prefix+"*", "COUNT", 100))
		if err != nil {
			return fmt.Errorf("scan: %w", err)
		}

		var keys []string
		if _, err := redis.Scan(reply, &cursor, &keys); err != nil {
			return fmt.Errorf("scan reply: %w", err)
		}

		if len(keys) > 0 {
			if _, err := conn.Do("DEL", redis.Args{}.AddFlat(keys)...); err != nil {
				return fmt.Errorf("delete: %w", err)
			}
		}

		if cursor == 0 {
			return nil
		}
	}
}

var _ Cache = (*Redis)(nil)
