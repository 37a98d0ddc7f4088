// Package aclcache holds recently read Acl records keyed by their encoded row key.
//
// A cached record only answers a read it covers: a fully loaded record answers
// every read, a record scoped to some sids answers reads for a subset of them.
package aclcache

import (
	"context"

	"github.com/openmined/aclstore/internal/acl"
)

// Cache stores records by row key. Implementations are safe for concurrent use
// and never fail a read: a broken cache behaves like an empty one.
type Cache interface {
	// Get returns the record cached under key if it covers sids.
	Get(ctx context.Context, key string, sids []acl.Sid) (*acl.Acl, bool)

	// Put caches a record, replacing any previous one.
	Put(ctx context.Context, key string, a *acl.Acl)

	// Evict drops the record cached under key.
	Evict(ctx context.Context, key string)

	// Clear drops every record.
	Clear(ctx context.Context) error
}

// Nop caches nothing.
type Nop struct{}

func (Nop) Get(context.Context, string, []acl.Sid) (*acl.Acl, bool) { return nil, false }
func (Nop) Put(context.Context, string, *acl.Acl)                  {}
func (Nop) Evict(context.Context, string)                          {}
func (Nop) Clear(context.Context) error                            { return nil }

var _ Cache = Nop{}
