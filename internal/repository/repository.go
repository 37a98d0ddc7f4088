// Package repository persists Acl records in a column-family store.
//
// Each record is one row keyed by the encoded object identifier. Records are
// rewritten as a whole on update, without version checks: concurrent updates of
// the same record race and the last writer wins.
package repository

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"

	"github.com/openmined/aclstore/internal/acl"
	"github.com/openmined/aclstore/internal/aclcache"
	"github.com/openmined/aclstore/internal/aclcodec"
	"github.com/openmined/aclstore/internal/store"
)

// Repository reads and writes Acl records.
type Repository struct {
	store  store.Store
	codec  *aclcodec.Codec
	cache  aclcache.Cache
	logger *slog.Logger
}

// Option configures a Repository.
type Option func(*Repository)

// WithCodec sets the record codec. It defaults to one with the built-in
// identifier codecs and the default permission factory.
func WithCodec(codec *aclcodec.Codec) Option {
	return func(r *Repository) {
		r.codec = codec
	}
}

// WithCache sets the record cache. Without it nothing is cached.
func WithCache(cache aclcache.Cache) Option {
	return func(r *Repository) {
		r.cache = cache
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Repository) {
		r.logger = logger
	}
}

// New returns a repository on s.
func New(s store.Store, opts ...Option) *Repository {
	r := &Repository{
		store:  s,
		cache:  aclcache.Nop{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.codec == nil {
		r.codec = aclcodec.New(nil, nil)
	}
	return r
}

// Codec returns the record codec.
func (r *Repository) Codec() *aclcodec.Codec {
	return r.codec
}

// Create stores an empty record for oid owned by owner. It fails with
// acl.ErrAlreadyExists if a record is already stored under the same identifier.
func (r *Repository) Create(ctx context.Context, oid acl.ObjectIdentity, owner acl.Sid) (*acl.Acl, error) {
	record := acl.New(oid, owner, nil, nil)

	key, err := r.codec.EncodeKey(record.Identity().ID)
	if err != nil {
		return nil, err
	}
	header, err := r.codec.EncodeHeader(record)
	if err != nil {
		return nil, err
	}

	tbl, err := r.table(ctx)
	if err != nil {
		return nil, err
	}
	defer r.release(tbl)

	exists, err := tbl.Exists(ctx, key)
	if err != nil {
		return nil, storageErr("create", oid, err)
	}
	if exists {
		return nil, fmt.Errorf("%w: %s", acl.ErrAlreadyExists, oid)
	}

	if err := tbl.Put(ctx, key, header); err != nil {
		return nil, storageErr("create", oid, err)
	}

	r.cache.Evict(ctx, string(key))
	r.logger.Debug("acl create", "identity", oid, "key", hex.EncodeToString(key), "owner", owner)
	return record, nil
}

// Delete removes the record of oid. Deleting a missing record is not an error.
func (r *Repository) Delete(ctx context.Context, oid acl.ObjectIdentity) error {
	key, err := r.codec.EncodeKey(oid.Normalize().ID)
	if err != nil {
		return err
	}

	tbl, err := r.table(ctx)
	if err != nil {
		return err
	}
	defer r.release(tbl)

	r.cache.Evict(ctx, string(key))
	if err := tbl.DeleteRow(ctx, key); err != nil {
		return storageErr("delete", oid, err)
	}

	r.logger.Debug("acl delete", "identity", oid, "key", hex.EncodeToString(key))
	return nil
}

// Update replaces the stored record with a. It fails with acl.ErrNotFound if no
// record is stored for a's identity. The row is deleted and rewritten, so a
// failure between the two steps leaves the record missing.
func (r *Repository) Update(ctx context.Context, a *acl.Acl) error {
	oid := a.Identity()

	// encode first so a record that cannot be written never costs the stored one
	key, cells, err := r.codec.EncodeRow(a)
	if err != nil {
		return err
	}

	tbl, err := r.table(ctx)
	if err != nil {
		return err
	}
	defer r.release(tbl)

	exists, err := tbl.Exists(ctx, key)
	if err != nil {
		return storageErr("update", oid, err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", acl.ErrNotFound, oid)
	}

	r.cache.Evict(ctx, string(key))

	if err := tbl.DeleteRow(ctx, key); err != nil {
		return storageErr("update", oid, err)
	}
	if err := tbl.Put(ctx, key, cells); err != nil {
		return storageErr("update", oid, err)
	}

	r.cache.Put(ctx, string(key), a)
	r.logger.Debug("acl update", "identity", oid, "key", hex.EncodeToString(key), "entries", a.Len())
	return nil
}

// GetByID returns the record of oid scoped to sids, or nil if none is stored.
func (r *Repository) GetByID(ctx context.Context, oid acl.ObjectIdentity, sids ...acl.Sid) (*acl.Acl, error) {
	oid = oid.Normalize()
	records, err := r.GetByIDs(ctx, []acl.ObjectIdentity{oid}, sids)
	if err != nil {
		return nil, err
	}
	return records[oid], nil
}

// GetByIDs returns the stored records of oids, keyed by the requested identity.
// Identities without a record are absent from the result. Records are scoped to
// sids; no sids loads them fully.
//
// Cached records are used when they cover sids. Everything else is fetched in a
// single batched read.
func (r *Repository) GetByIDs(ctx context.Context, oids []acl.ObjectIdentity, sids []acl.Sid) (map[acl.ObjectIdentity]*acl.Acl, error) {
	result := make(map[acl.ObjectIdentity]*acl.Acl, len(oids))

	// identities sharing an identifier share a row
	misses := make(map[string][]acl.ObjectIdentity)
	var keys [][]byte

	for _, oid := range oids {
		oid = oid.Normalize()
		key, err := r.codec.EncodeKey(oid.ID)
		if err != nil {
			return nil, err
		}

		if cached, ok := r.cache.Get(ctx, string(key), sids); ok {
			result[oid] = cached
			continue
		}

		k := string(key)
		if _, seen := misses[k]; !seen {
			keys = append(keys, key)
		}
		misses[k] = append(misses[k], oid)
	}

	if len(keys) == 0 {
		return result, nil
	}

	tbl, err := r.table(ctx)
	if err != nil {
		return nil, err
	}
	defer r.release(tbl)

	rows, err := tbl.ReadRows(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("%w: read %d rows: %w", acl.ErrStorageIO, len(keys), err)
	}

	for _, row := range rows {
		if row.Empty() {
			continue
		}

		record, err := r.codec.DecodeRow(row, sids)
		if err != nil {
			return nil, fmt.Errorf("row %x: %w", row.Key, err)
		}

		r.cache.Put(ctx, string(row.Key), record)
		for _, oid := range misses[string(row.Key)] {
			result[oid] = record
		}
	}

	r.logger.Debug("acl read", "requested", len(oids), "fetched", len(keys), "found", len(result))
	return result, nil
}

// Exists reports whether a record is stored for oid.
func (r *Repository) Exists(ctx context.Context, oid acl.ObjectIdentity) (bool, error) {
	key, err := r.codec.EncodeKey(oid.Normalize().ID)
	if err != nil {
		return false, err
	}

	tbl, err := r.table(ctx)
	if err != nil {
		return false, err
	}
	defer r.release(tbl)

	exists, err := tbl.Exists(ctx, key)
	if err != nil {
		return false, storageErr("exists", oid, err)
	}
	return exists, nil
}

// ClearCache drops every cached record.
func (r *Repository) ClearCache(ctx context.Context) error {
	return r.cache.Clear(ctx)
}

func (r *Repository) table(ctx context.Context) (store.Table, error) {
	tbl, err := r.store.Table(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: open table: %w", acl.ErrStorageIO, err)
	}
	return tbl, nil
}

func (r *Repository) release(tbl store.Table) {
	if err := tbl.Close(); err != nil {
		r.logger.Warn("acl table close", "error", err)
	}
}

func storageErr(op string, oid acl.ObjectIdentity, err error) error {
	return fmt.Errorf("%w: %s %s: %w", acl.ErrStorageIO, op, oid, err)
}
