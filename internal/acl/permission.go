package acl

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Permission is a bitmask of one or more grantable capabilities.
type Permission interface {
	Mask() uint32
	String() string
}

// BasePermission represents a permission bit flag.
type BasePermission uint32

const (
	PermissionRead BasePermission = 1 << iota
	PermissionWrite
	PermissionCreate
	PermissionDelete
	PermissionAdminister
)

var basePermissionNames = []struct {
	perm BasePermission
	name string
}{
	{PermissionRead, "Read"},
	{PermissionWrite, "Write"},
	{PermissionCreate, "Create"},
	{PermissionDelete, "Delete"},
	{PermissionAdminister, "Administer"},
}

func (p BasePermission) Mask() uint32 {
	return uint32(p)
}

func (p BasePermission) String() string {
	if p == 0 {
		return "None"
	}

	var parts []string
	rest := p
	for _, bp := range basePermissionNames {
		if p&bp.perm == bp.perm {
			parts = append(parts, bp.name)
			rest &^= bp.perm
		}
	}

	// bits outside the base set are shown raw
	if rest != 0 {
		parts = append(parts, "0x"+strconv.FormatUint(uint64(rest), 16))
	}

	// For multiple permissions, join with "+"
	return strings.Join(parts, "+")
}

// PermissionFactory rebuilds a Permission from its persisted mask.
type PermissionFactory interface {
	BuildFromMask(mask uint32) (Permission, error)
}

// DefaultPermissionFactory resolves masks to registered permissions, falling back to a
// cumulative BasePermission for combinations nobody registered.
type DefaultPermissionFactory struct {
	mu     sync.RWMutex
	byMask map[uint32]Permission
	byName map[string]Permission
}

// NewPermissionFactory creates a factory that knows the base permissions.
func NewPermissionFactory() *DefaultPermissionFactory {
	f := &DefaultPermissionFactory{
		byMask: make(map[uint32]Permission),
		byName: make(map[string]Permission),
	}
	for _, bp := range basePermissionNames {
		f.RegisterPermission(bp.name, bp.perm)
	}
	return f
}

// RegisterPermission makes a custom permission resolvable by mask and by name.
func (f *DefaultPermissionFactory) RegisterPermission(name string, p Permission) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.byMask[p.Mask()] = p
	f.byName[strings.ToLower(name)] = p
}

func (f *DefaultPermissionFactory) BuildFromMask(mask uint32) (Permission, error) {
	f.mu.RLock()
	p, ok := f.byMask[mask]
	f.mu.RUnlock()

	if ok {
		return p, nil
	}
	return BasePermission(mask), nil
}

// ParsePermission resolves a permission by name ("read"), by a "+" separated list of
// names ("read+write") or by a decimal mask ("3").
func (f *DefaultPermissionFactory) ParsePermission(s string) (Permission, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty permission")
	}

	if mask, err := strconv.ParseUint(s, 10, 32); err == nil {
		return f.BuildFromMask(uint32(mask))
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	var mask uint32
	for _, name := range strings.Split(s, "+") {
		p, ok := f.byName[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, fmt.Errorf("unknown permission %q", name)
		}
		mask |= p.Mask()
	}

	if p, ok := f.byMask[mask]; ok {
		return p, nil
	}
	return BasePermission(mask), nil
}

var _ PermissionFactory = (*DefaultPermissionFactory)(nil)
