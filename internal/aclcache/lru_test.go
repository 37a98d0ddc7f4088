package aclcache

import (
	"context"
	"testing"
	"time"

	"github.com/openmined/aclstore/internal/acl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = acl.PrincipalSid("alice")
	bob   = acl.PrincipalSid("bob")
	admin = acl.AuthoritySid("ROLE_ADMIN")
)

func newRecord(id string, loaded ...acl.Sid) *acl.Acl {
	a := acl.New(acl.NewObjectIdentity("Document", id), alice, nil, loaded)
	_ = a.InsertAce(0, acl.PermissionRead, bob, true)
	return a
}

func TestCoverage(t *testing.T) {
	full := newRecord("full")
	scoped := newRecord("scoped", alice, admin)

	tests := []struct {
		name   string
		record *acl.Acl
		sids   []acl.Sid
		hit    bool
	}{
		{"full answers unscoped", full, nil, true},
		{"full answers scoped", full, []acl.Sid{bob}, true},
		{"scoped answers subset", scoped, []acl.Sid{alice}, true},
		{"scoped answers same set", scoped, []acl.Sid{admin, alice}, true},
		{"scoped misses other sid", scoped, []acl.Sid{alice, bob}, false},
		{"scoped misses unscoped", scoped, nil, false},
	}

	caches := map[string]func(t *testing.T) Cache{
		"lru":   func(t *testing.T) Cache { return NewLRU(10, 0) },
		"redis": func(t *testing.T) Cache { return newTestRedis(t) },
	}

	for cacheName, newCache := range caches {
		for _, tt := range tests {
			t.Run(cacheName+"/"+tt.name, func(t *testing.T) {
				ctx := context.Background()
				c := newCache(t)
				c.Put(ctx, "k", tt.record)

				got, ok := c.Get(ctx, "k", tt.sids)
				assert.Equal(t, tt.hit, ok)
				if tt.hit {
					require.NotNil(t, got)
					assert.Equal(t, tt.record.Identity(), got.Identity())
				}
			})
		}
	}
}

func TestLRUEvictAndClear(t *testing.T) {
	ctx := context.Background()
	c := NewLRU(10, 0)

	c.Put(ctx, "a", newRecord("a"))
	c.Put(ctx, "b", newRecord("b"))
	assert.Equal(t, 2, c.Len())

	c.Evict(ctx, "a")
	_, ok := c.Get(ctx, "a", nil)
	assert.False(t, ok)
	_, ok = c.Get(ctx, "b", nil)
	assert.True(t, ok)

	require.NoError(t, c.Clear(ctx))
	assert.Equal(t, 0, c.Len())
}

func TestLRUSizeBound(t *testing.T) {
	ctx := context.Background()
	c := NewLRU(2, 0)

	c.Put(ctx, "a", newRecord("a"))
	c.Put(ctx, "b", newRecord("b"))
	c.Put(ctx, "c", newRecord("c"))

	assert.Equal(t, 2, c.Len())
	_, ok := c.Get(ctx, "a", nil)
	assert.False(t, ok)
}

func TestLRUExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewLRU(10, 20*time.Millisecond)

	c.Put(ctx, "a", newRecord("a"))
	assert.Eventually(t, func() bool {
		_, ok := c.Get(ctx, "a", nil)
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestNop(t *testing.T) {
	ctx := context.Background()
	var c Cache = Nop{}
	c.Put(ctx, "a", newRecord("a"))
	_, ok := c.Get(ctx, "a", nil)
	assert.False(t, ok)
	assert.NoError(t, c.Clear(ctx))
}
