package repository

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/openmined/aclstore/internal/acl"
	"github.com/openmined/aclstore/internal/aclcache"
	"github.com/openmined/aclstore/internal/aclcodec"
	"github.com/openmined/aclstore/internal/db"
	"github.com/openmined/aclstore/internal/idcodec"
	"github.com/openmined/aclstore/internal/store"
	"github.com/openmined/aclstore/internal/store/badgerstore"
	"github.com/openmined/aclstore/internal/store/sqlstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = acl.PrincipalSid("alice")
	bob   = acl.PrincipalSid("bob")
)

// countingStore records how the repository uses its store.
type countingStore struct {
	store.Store
	opened   atomic.Int32
	closed   atomic.Int32
	readKeys atomic.Int32
	reads    atomic.Int32
	fail     error
}

func (s *countingStore) Table(ctx context.Context) (store.Table, error) {
	tbl, err := s.Store.Table(ctx)
	if err != nil {
		return nil, err
	}
	s.opened.Add(1)
	return &countingTable{Table: tbl, s: s}, nil
}

type countingTable struct {
	store.Table
	s *countingStore
}

func (t *countingTable) Exists(ctx context.Context, key []byte) (bool, error) {
	if t.s.fail != nil {
		return false, t.s.fail
	}
	return t.Table.Exists(ctx, key)
}

func (t *countingTable) ReadRows(ctx context.Context, keys [][]byte) ([]store.Row, error) {
	if t.s.fail != nil {
		return nil, t.s.fail
	}
	t.s.reads.Add(1)
	t.s.readKeys.Add(int32(len(keys)))
	return t.Table.ReadRows(ctx, keys)
}

func (t *countingTable) DeleteRow(ctx context.Context, key []byte) error {
	if t.s.fail != nil {
		return t.s.fail
	}
	return t.Table.DeleteRow(ctx, key)
}

func (t *countingTable) Close() error {
	t.s.closed.Add(1)
	return t.Table.Close()
}

func newBadger(t *testing.T) store.Store {
	t.Helper()
	s, err := badgerstore.New(badgerstore.WithInMemory())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.EnsureSchema(context.Background(), aclcodec.Families...))
	return s
}

func newSqlite(t *testing.T) store.Store {
	t.Helper()
	s, err := sqlstore.New(db.WithPath(db.MemoryPath))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.EnsureSchema(context.Background(), aclcodec.Families...))
	return s
}

func newTestRepo(t *testing.T, opts ...Option) (*Repository, *countingStore) {
	t.Helper()
	cs := &countingStore{Store: newBadger(t)}
	return New(cs, opts...), cs
}

func document(id any) acl.ObjectIdentity {
	return acl.NewObjectIdentity("Document", id)
}

func TestCreateExistsDelete(t *testing.T) {
	ctx := context.Background()
	repo, cs := newTestRepo(t)
	oid := document(int64(1))

	ok, err := repo.Exists(ctx, oid)
	require.NoError(t, err)
	assert.False(t, ok)

	record, err := repo.Create(ctx, oid, alice)
	require.NoError(t, err)
	assert.Equal(t, oid, record.Identity())
	assert.Equal(t, alice, record.Owner())
	assert.Zero(t, record.Len())

	ok, err = repo.Exists(ctx, oid)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = repo.Create(ctx, oid, bob)
	assert.ErrorIs(t, err, acl.ErrAlreadyExists)

	// the identifier alone addresses the row
	_, err = repo.Create(ctx, acl.NewObjectIdentity("Folder", int64(1)), bob)
	assert.ErrorIs(t, err, acl.ErrAlreadyExists)

	require.NoError(t, repo.Delete(ctx, oid))
	ok, err = repo.Exists(ctx, oid)
	require.NoError(t, err)
	assert.False(t, ok)

	// idempotent
	require.NoError(t, repo.Delete(ctx, oid))

	assert.Equal(t, cs.opened.Load(), cs.closed.Load())
}

func TestUpdateMissingLeavesStoreUnchanged(t *testing.T) {
	ctx := context.Background()
	repo, cs := newTestRepo(t)
	oid := document("never-created")

	record := acl.New(oid, alice, nil, nil)
	require.NoError(t, record.InsertAce(0, acl.PermissionRead, alice, true))

	err := repo.Update(ctx, record)
	assert.ErrorIs(t, err, acl.ErrNotFound)

	ok, err := repo.Exists(ctx, oid)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := repo.GetByID(ctx, oid)
	require.NoError(t, err)
	assert.Nil(t, got)

	assert.Equal(t, cs.opened.Load(), cs.closed.Load())
}

func TestDocument42Scenario(t *testing.T) {
	for name, newStore := range map[string]func(*testing.T) store.Store{"badger": newBadger, "sqlite": newSqlite} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repo := New(newStore(t))
			oid := document(int64(42))

			record, err := repo.Create(ctx, oid, alice)
			require.NoError(t, err)
			require.NoError(t, record.InsertAce(0, acl.PermissionRead, alice, true))
			require.NoError(t, repo.Update(ctx, record))

			got, err := repo.GetByID(ctx, oid)
			require.NoError(t, err)
			require.NotNil(t, got)

			assert.Equal(t, alice, got.Owner())
			entries := got.Entries()
			require.Len(t, entries, 1)
			assert.Equal(t, "alice", entries[0].Sid.Authority)
			assert.True(t, entries[0].Sid.Principal)
			assert.True(t, entries[0].Granting)
			assert.Equal(t, acl.PermissionRead, entries[0].Permission)
		})
	}
}

func TestUpdateRewritesWholeRecord(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)
	oid := document("doc")

	record, err := repo.Create(ctx, oid, alice)
	require.NoError(t, err)
	for i := range 15 {
		require.NoError(t, record.InsertAce(i, acl.BasePermission(1<<(i%5)), acl.PrincipalSid(fmt.Sprintf("u%02d", i)), true))
	}
	require.NoError(t, repo.Update(ctx, record))

	got, err := repo.GetByID(ctx, oid)
	require.NoError(t, err)
	require.Equal(t, 15, got.Len())
	for i, ace := range got.Entries() {
		assert.Equal(t, fmt.Sprintf("u%02d", i), ace.Sid.Authority)
	}

	// shrink and change owner
	shrunk := acl.New(oid, bob, record.Entries()[:2], nil)
	require.NoError(t, repo.Update(ctx, shrunk))

	got, err = repo.GetByID(ctx, oid)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Len())
	assert.Equal(t, bob, got.Owner())
}

func TestUpdateWithUnwritableEntryKeepsStoredRecord(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)
	oid := document("doc")

	_, err := repo.Create(ctx, oid, alice)
	require.NoError(t, err)

	bad := acl.New(oid, alice, []acl.Ace{acl.NewAce(acl.PrincipalSid("urn:x"), acl.PermissionRead, true)}, nil)
	assert.ErrorIs(t, repo.Update(ctx, bad), acl.ErrMalformedEntry)

	got, err := repo.GetByID(ctx, oid)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Zero(t, got.Len())
}

func TestGetByIDsReturnsOnlyStored(t *testing.T) {
	ctx := context.Background()
	repo, cs := newTestRepo(t)

	var oids []acl.ObjectIdentity
	for i := range 5 {
		oid := document(int32(i))
		oids = append(oids, oid)
		if i%2 == 0 {
			_, err := repo.Create(ctx, oid, alice)
			require.NoError(t, err)
		}
	}

	got, err := repo.GetByIDs(ctx, oids, nil)
	require.NoError(t, err)
	assert.Len(t, got, 3)
	for i, oid := range oids {
		_, ok := got[oid]
		assert.Equal(t, i%2 == 0, ok, "identity %s", oid)
	}

	assert.EqualValues(t, 1, cs.reads.Load())
	assert.EqualValues(t, 5, cs.readKeys.Load())
}

func TestGetByIDsDeduplicatesKeys(t *testing.T) {
	ctx := context.Background()
	repo, cs := newTestRepo(t)

	_, err := repo.Create(ctx, document("shared"), alice)
	require.NoError(t, err)

	oids := []acl.ObjectIdentity{
		document("shared"),
		document("shared"),
		acl.NewObjectIdentity("Folder", "shared"),
		document("missing"),
	}

	got, err := repo.GetByIDs(ctx, oids, nil)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Same(t, got[document("shared")], got[acl.NewObjectIdentity("Folder", "shared")])
	assert.EqualValues(t, 2, cs.readKeys.Load())
}

func TestGetByIDsEmpty(t *testing.T) {
	repo, cs := newTestRepo(t)

	got, err := repo.GetByIDs(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, cs.opened.Load())
}

func TestRawByteIdentifiers(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)
	oid := document([]byte{0x00, 0x01, 0xfe})

	_, err := repo.Create(ctx, oid, alice)
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, document([]byte{0x00, 0x01, 0xfe}))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, acl.Bytes("\x00\x01\xfe"), got.Identity().ID)
}

type sku string

type skuCodec struct{}

func (skuCodec) ToBytes(id sku) ([]byte, error)   { return []byte("sku/" + id), nil }
func (skuCodec) FromBytes(b []byte) (sku, error) { return sku(b[len("sku/"):]), nil }

func TestCustomIdentifierCodec(t *testing.T) {
	ctx := context.Background()
	registry := idcodec.NewRegistry()
	repo, _ := newTestRepo(t, WithCodec(aclcodec.New(registry, nil)))
	oid := acl.NewObjectIdentity("Product", sku("A-1"))

	_, err := repo.Create(ctx, oid, alice)
	assert.ErrorIs(t, err, acl.ErrConverterNotFound)

	require.NoError(t, idcodec.Register[sku](registry, "sku", skuCodec{}))

	_, err = repo.Create(ctx, oid, alice)
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, oid)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, sku("A-1"), got.Identity().ID)
}

func TestUnserializableIdentifier(t *testing.T) {
	repo, _ := newTestRepo(t)
	_, err := repo.Exists(context.Background(), document(map[string]string{}))
	assert.ErrorIs(t, err, acl.ErrNotSerializable)
}

func TestStorageErrors(t *testing.T) {
	ctx := context.Background()
	repo, cs := newTestRepo(t)
	oid := document("doc")
	_, err := repo.Create(ctx, oid, alice)
	require.NoError(t, err)

	boom := errors.New("connection reset")
	cs.fail = boom

	_, err = repo.Exists(ctx, oid)
	assert.ErrorIs(t, err, acl.ErrStorageIO)
	assert.ErrorIs(t, err, boom)

	_, err = repo.Create(ctx, document("other"), alice)
	assert.ErrorIs(t, err, acl.ErrStorageIO)

	assert.ErrorIs(t, repo.Update(ctx, acl.New(oid, alice, nil, nil)), acl.ErrStorageIO)
	assert.ErrorIs(t, repo.Delete(ctx, oid), acl.ErrStorageIO)

	_, err = repo.GetByIDs(ctx, []acl.ObjectIdentity{oid, document("x")}, nil)
	assert.ErrorIs(t, err, acl.ErrStorageIO)

	assert.Equal(t, cs.opened.Load(), cs.closed.Load())
}

func TestCacheServesCoveredReads(t *testing.T) {
	ctx := context.Background()
	cache := aclcache.NewLRU(100, 0)
	repo, cs := newTestRepo(t, WithCache(cache))
	oid := document("doc")

	_, err := repo.Create(ctx, oid, alice)
	require.NoError(t, err)

	// scoped read populates a scoped entry
	scoped, err := repo.GetByID(ctx, oid, alice)
	require.NoError(t, err)
	assert.False(t, scoped.IsFullyLoaded())
	assert.EqualValues(t, 1, cs.reads.Load())

	again, err := repo.GetByID(ctx, oid, alice)
	require.NoError(t, err)
	assert.Same(t, scoped, again)
	assert.EqualValues(t, 1, cs.reads.Load())

	// an unscoped read is not covered and replaces the entry
	full, err := repo.GetByID(ctx, oid)
	require.NoError(t, err)
	assert.True(t, full.IsFullyLoaded())
	assert.EqualValues(t, 2, cs.reads.Load())

	// a fully loaded entry covers any scope
	_, err = repo.GetByID(ctx, oid, bob)
	require.NoError(t, err)
	assert.EqualValues(t, 2, cs.reads.Load())
}

func TestCacheWriteThroughAndEviction(t *testing.T) {
	ctx := context.Background()
	cache := aclcache.NewLRU(100, 0)
	repo, cs := newTestRepo(t, WithCache(cache))
	oid := document("doc")

	record, err := repo.Create(ctx, oid, alice)
	require.NoError(t, err)
	require.NoError(t, record.InsertAce(0, acl.PermissionWrite, bob, true))
	require.NoError(t, repo.Update(ctx, record))

	got, err := repo.GetByID(ctx, oid)
	require.NoError(t, err)
	assert.Same(t, record, got)
	assert.Zero(t, cs.reads.Load())

	require.NoError(t, repo.Delete(ctx, oid))
	got, err = repo.GetByID(ctx, oid)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, repo.ClearCache(ctx))
	assert.Zero(t, cache.Len())
}
