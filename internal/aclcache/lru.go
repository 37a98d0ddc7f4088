package aclcache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/openmined/aclstore/internal/acl"
)

// LRU is a process-local cache. Cached records are shared with callers.
type LRU struct {
	records *expirable.LRU[string, *acl.Acl]
}

// NewLRU returns a cache holding up to size records for ttl each. A size of 0
// means unbounded and a ttl of 0 means records never expire.
func NewLRU(size int, ttl time.Duration) *LRU {
	return &LRU{
		records: expirable.NewLRU[string, *acl.Acl](size, nil, ttl),
	}
}

func (c *LRU) Get(ctx context.Context, key string, sids []acl.Sid) (*acl.Acl, bool) {
	a, ok := c.records.Get(key)
	if !ok || !a.Covers(sids) {
		return nil, false
	}
	return a, true
}

func (c *LRU) Put(ctx context.Context, key string, a *acl.Acl) {
	c.records.Add(key, a)
}

func (c *LRU) Evict(ctx context.Context, key string) {
	c.records.Remove(key)
}

func (c *LRU) Clear(ctx context.Context) error {
	c.records.Purge()
	return nil
}

// Len returns the number of cached records.
func (c *LRU) Len() int {
	return c.records.Len()
}

var _ Cache = (*LRU)(nil)
